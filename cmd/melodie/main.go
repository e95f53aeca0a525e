package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/evernorth/melodie/internal/bridge"
	"github.com/evernorth/melodie/internal/cases"
	"github.com/evernorth/melodie/internal/chatlog"
	"github.com/evernorth/melodie/internal/config"
	"github.com/evernorth/melodie/internal/credentials"
	"github.com/evernorth/melodie/internal/httpapi"
	"github.com/evernorth/melodie/internal/observability"
	"github.com/evernorth/melodie/internal/realtime"
	"github.com/evernorth/melodie/internal/session"
	"github.com/evernorth/melodie/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, storeMode, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("chat store init failed: %v", err)
	}
	defer store.Close()
	log.Printf("chat store: %s", storeMode)

	// Only the database backend can read turns back for session resume.
	var history chatlog.HistorySource
	if pg, ok := store.(*chatlog.PostgresStore); ok {
		history = pg
	}

	if strings.TrimSpace(cfg.AuthBaseURL) == "" {
		log.Printf("AUTH_BASE_URL not set, sessions will run in demo mode")
	}
	creds := credentials.NewClient(cfg.AuthBaseURL, cfg.AuthProjectName, cfg.AuthToken)

	var completer realtime.ChatCompleter
	completions := realtime.NewCompletionsClient(cfg.CompletionsURL, cfg.CompletionsModel, cfg.CompletionsKey, tools.Instructions)
	if completions.Configured() {
		completer = completions
		log.Printf("text fallback: completions (%s)", cfg.CompletionsModel)
	} else {
		log.Printf("text fallback: demo echo (no COMPLETIONS_API_KEY)")
	}

	sessions := session.NewRegistry(cfg.SessionInactivityTimeout)

	factory := func(sessionID string, userID, companyID int) *httpapi.Conversation {
		hub := bridge.NewHub()
		agent := realtime.NewManager(realtime.ManagerConfig{
			SessionID:         sessionID,
			UserID:            userID,
			CompanyID:         companyID,
			InitiatorID:       userID,
			InitiatorName:     "Melodie",
			Voice:             cfg.RealtimeVoice,
			ResponseTimeout:   cfg.ResponseTimeout,
			CommitDelay:       cfg.CommitDelay,
			SwitchSettleDelay: cfg.SwitchSettleDelay,
		}, realtime.ManagerDeps{
			Factory: func() realtime.VoiceTransport {
				return realtime.NewMediaSession(cfg.RealtimeBaseURL, cfg.RealtimeModel, nil, nil)
			},
			Credentials: creds,
			Completer:   completer,
			Log:         chatlog.NewLog(),
			Store:       store,
			History:     history,
			Metrics:     metrics,
		})
		agent.SetToolHandler(tools.NewBridge(tools.Config{
			Session:     agent,
			Notifier:    hub,
			Cases:       cases.NewService(hub),
			Metrics:     metrics,
			UserID:      userID,
			CompanyID:   companyID,
			OutputDelay: cfg.ContinuationDelay,
		}))
		return &httpapi.Conversation{Agent: agent, Host: hub}
	}

	api := httpapi.New(cfg, sessions, factory, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

// buildStore picks the conversation-log backend: Postgres when a database is
// configured, the HTTP recorder when only the recorder service is, otherwise
// a noop.
func buildStore(ctx context.Context, cfg config.Config) (chatlog.Store, string, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		store, err := chatlog.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, "postgres", nil
	}
	if strings.TrimSpace(cfg.RecorderBaseURL) != "" {
		return chatlog.NewRecorderStore(cfg.RecorderBaseURL, cfg.RecorderToken), "recorder", nil
	}
	return chatlog.NoopStore{}, "disabled", nil
}
