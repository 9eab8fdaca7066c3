// Package api provides the HTTP gateway surface for AfyaDial.
//
// It exposes the USSD callback endpoint consumed by aggregator gateways and a
// health endpoint, and wires the storage, session, messaging, and GenAI
// modules into the dialog engine.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/auth"
	"github.com/AfyaLink/AfyaDial/internal/genai"
	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/reminder"
	"github.com/AfyaLink/AfyaDial/internal/scheduler"
	"github.com/AfyaLink/AfyaDial/internal/session"
	"github.com/AfyaLink/AfyaDial/internal/store"
	"github.com/AfyaLink/AfyaDial/internal/ussd"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// DefaultReminderCron runs the reminder sweep every morning at 07:00.
const DefaultReminderCron = "0 7 * * *"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr         string
	ReminderCron string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithReminderCron overrides the reminder sweep schedule.
func WithReminderCron(expr string) Option {
	return func(o *Opts) { o.ReminderCron = expr }
}

// Server serves the USSD gateway endpoints.
type Server struct {
	engine *ussd.Engine
	addr   string
}

// NewServer creates an API server around a dialog engine.
func NewServer(engine *ussd.Engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: engine, addr: cfg.Addr}
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ussd", s.ussdHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run builds every module from its options and serves HTTP until the listener
// fails. Modules without configuration fall back to local defaults: in-memory
// records and sessions, no SMS delivery, no question answering.
func Run(storeOpts []store.Option, sessionOpts []session.RedisOption, msgOpts []messaging.TwilioOption, genaiOpts []genai.Option, apiOpts []Option) error {
	ctx := context.Background()

	records, err := store.NewStore(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize record store: %w", err)
	}
	defer records.Close()

	var sessions session.Store
	if len(sessionOpts) > 0 || os.Getenv("REDIS_ADDR") != "" {
		if len(sessionOpts) == 0 {
			sessionOpts = append(sessionOpts, session.WithRedisAddr(os.Getenv("REDIS_ADDR")))
		}
		rs, err := session.NewRedisStore(ctx, sessionOpts...)
		if err != nil {
			return fmt.Errorf("failed to initialize session store: %w", err)
		}
		defer rs.Close()
		sessions = rs
		slog.Info("Using Redis session store")
	} else {
		sessions = session.NewInMemoryStore()
		slog.Info("Using in-memory session store")
	}

	var notifier messaging.Notifier = messaging.NoopNotifier{}
	if len(msgOpts) > 0 || os.Getenv("TWILIO_ACCOUNT_SID") != "" {
		sms, err := messaging.NewTwilioSMS(msgOpts...)
		if err != nil {
			return fmt.Errorf("failed to initialize SMS notifier: %w", err)
		}
		notifier = sms
		slog.Info("SMS delivery enabled")
	} else {
		slog.Info("SMS delivery disabled, notifications stored only")
	}

	var engineOpts []ussd.Option
	if len(genaiOpts) > 0 || os.Getenv("OPENAI_API_KEY") != "" {
		client, err := genai.NewClient(genaiOpts...)
		if err != nil {
			return fmt.Errorf("failed to initialize GenAI client: %w", err)
		}
		engineOpts = append(engineOpts, ussd.WithAnswerer(client))
		slog.Info("Question answering enabled")
	} else {
		slog.Info("Question answering disabled")
	}

	engine := ussd.NewEngine(sessions, records, auth.NewStoreVerifier(records), notifier, engineOpts...)
	server := NewServer(engine, apiOpts...)

	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.ReminderCron == "" {
		cfg.ReminderCron = DefaultReminderCron
	}
	sched := scheduler.NewScheduler()
	defer sched.Stop()
	sweeper := reminder.NewSweeper(records, notifier, nil)
	if err := sched.AddJob(cfg.ReminderCron, func() { sweeper.Sweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}
	slog.Info("Reminder sweep scheduled", "cron", cfg.ReminderCron)

	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("AfyaDial gateway listening", "addr", server.addr)
	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}
