// Package credentials obtains ephemeral realtime tokens from the platform
// authentication service.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evernorth/melodie/internal/reliability"
)

const sessionPath = "/api/openaiauthentication/post/getopenaisession"

// CredentialError reports a failed token exchange. Callers surface it to the
// user as an authentication failure rather than retrying the session.
type CredentialError struct {
	Status int
	Reason string
}

func (e *CredentialError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("credential exchange failed: status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("credential exchange failed: %s", e.Reason)
}

// Client exchanges a project name for an ephemeral realtime key.
type Client struct {
	baseURL     string
	projectName string
	token       string
	client      *http.Client
}

func NewClient(baseURL, projectName, token string) *Client {
	return &Client{
		baseURL:     baseURL,
		projectName: projectName,
		token:       token,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type sessionRequest struct {
	ProjectName string `json:"ProjectName"`
}

// sessionResponse mirrors the service payload. The misspelled reaponseData
// key is part of the deployed contract.
type sessionResponse struct {
	ResponseData struct {
		ReaponseData struct {
			ClientSecret struct {
				Value string `json:"value"`
			} `json:"client_secret"`
		} `json:"reaponseData"`
	} `json:"ResponseData"`
}

// EphemeralKey requests a short-lived realtime credential. Transient upstream
// failures are retried with capped backoff; terminal failures return a
// CredentialError.
func (c *Client) EphemeralKey(ctx context.Context) (string, error) {
	var key string

	err := reliability.Retry(ctx, 3, 200*time.Millisecond, 2*time.Second, func() (bool, error) {
		body, err := json.Marshal(sessionRequest{ProjectName: c.projectName})
		if err != nil {
			return false, fmt.Errorf("encode session request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionPath, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("build session request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("token", c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return true, &CredentialError{Reason: err.Error()}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return reliability.IsRetryableHTTPStatus(resp.StatusCode),
				&CredentialError{Status: resp.StatusCode, Reason: "unexpected status"}
		}

		var payload sessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return false, &CredentialError{Status: resp.StatusCode, Reason: fmt.Sprintf("decode response: %v", err)}
		}

		key = payload.ResponseData.ReaponseData.ClientSecret.Value
		if key == "" {
			return false, &CredentialError{Status: resp.StatusCode, Reason: "response carried no client secret"}
		}
		return false, nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}
