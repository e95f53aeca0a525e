package chatlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evernorth/melodie/internal/policy"
)

const recorderPath = "/api/voicemessagewithopenai/postvoicemessagewithopenai"

// RecorderStore posts turns to the conversation-log HTTP service.
type RecorderStore struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRecorderStore(baseURL, token string) *RecorderStore {
	return &RecorderStore{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// recorderModel is the service's entity model, field names included.
type recorderModel struct {
	InitiatorID           int    `json:"initiatorId"`
	UserCompanyID         int    `json:"userCompanyId"`
	UserID                int    `json:"userId"`
	InitiatorName         string `json:"initiatorName"`
	IsAnswerByAI          bool   `json:"isAnswerByAI"`
	ResponseID            string `json:"responseId"`
	ResponseStatus        string `json:"responseStatus"`
	ResponseAnswerID      string `json:"responseAnswerId"`
	ResponseAnswerRole    string `json:"responseAnswerRole"`
	ResponseAnswerStatus  string `json:"responseAnswerStatus"`
	ResponseAnswerContent string `json:"responseAnswerContent"`
	ResponseAnswerType    string `json:"responseAnswerType"`
	Remarks               string `json:"remarks"`
}

func (s *RecorderStore) SaveTurn(ctx context.Context, record TurnRecord) error {
	content, _ := policy.RedactTurn(record.ResponseAnswerContent)

	body, err := json.Marshal(recorderModel{
		InitiatorID:           record.InitiatorID,
		UserCompanyID:         record.UserCompanyID,
		UserID:                record.UserID,
		InitiatorName:         record.InitiatorName,
		IsAnswerByAI:          record.AnswerByAI,
		ResponseID:            record.ResponseID,
		ResponseStatus:        record.ResponseStatus,
		ResponseAnswerID:      record.ResponseAnswerID,
		ResponseAnswerRole:    record.ResponseAnswerRole,
		ResponseAnswerStatus:  record.ResponseAnswerStatus,
		ResponseAnswerContent: content,
		ResponseAnswerType:    record.ResponseAnswerType,
		Remarks:               record.Remarks,
	})
	if err != nil {
		return fmt.Errorf("encode turn record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+recorderPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build recorder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("token", s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post turn record: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("recorder returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *RecorderStore) Close() error { return nil }
