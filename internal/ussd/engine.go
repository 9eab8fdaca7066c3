package ussd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AfyaLink/AfyaDial/internal/auth"
	"github.com/AfyaLink/AfyaDial/internal/messaging"
	"github.com/AfyaLink/AfyaDial/internal/models"
	"github.com/AfyaLink/AfyaDial/internal/session"
	"github.com/AfyaLink/AfyaDial/internal/store"
)

// Opts holds configuration options for the dialog engine.
type Opts struct {
	answerer Answerer
	now      func() time.Time
}

// Option defines a configuration option for the dialog engine.
type Option func(*Opts)

// WithAnswerer enables the education service's free-text question branch.
func WithAnswerer(a Answerer) Option {
	return func(o *Opts) { o.answerer = a }
}

// WithClock overrides the engine's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.now = now }
}

// Engine is the USSD dialog pipeline: split, resume control, authentication,
// backflow resolution, dispatch, session update.
type Engine struct {
	sessions session.Store
	records  store.Store
	verifier auth.Verifier
	notifier messaging.Notifier
	router   *Router
	now      func() time.Time
}

// NewEngine wires the engine and registers the nine service handlers.
func NewEngine(sessions session.Store, records store.Store, verifier auth.Verifier, notifier messaging.Notifier, opts ...Option) *Engine {
	cfg := Opts{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		sessions: sessions,
		records:  records,
		verifier: verifier,
		notifier: notifier,
		router:   NewRouter(),
		now:      cfg.now,
	}
	e.router.Register(SelectorCycle, &cycleHandler{records: records, notifier: notifier, now: cfg.now})
	e.router.Register(SelectorMeals, &mealHandler{records: records, now: cfg.now})
	e.router.Register(SelectorAppointments, &appointmentHandler{records: records, notifier: notifier, now: cfg.now})
	e.router.Register(SelectorEducation, &educationHandler{answerer: cfg.answerer, now: cfg.now})
	e.router.Register(SelectorNotifications, &notificationsHandler{records: records})
	e.router.Register(SelectorParental, &parentalHandler{records: records, now: cfg.now})
	e.router.Register(SelectorSettings, &settingsHandler{records: records, verifier: verifier, now: cfg.now})
	e.router.Register(SelectorFeedback, &feedbackHandler{records: records, now: cfg.now})
	e.router.Register(SelectorHelp, &helpHandler{})
	return e
}

const (
	promptSecret = "Enter your password or 4-digit PIN:"
	promptResume = "Welcome back. You have an unfinished session.\n1. Resume where I left off\n2. Start fresh"
)

// Handle processes one gateway callback and returns the reply to render.
// Replaying the same request yields a byte-identical reply: the outcome is a
// pure function of identity, entries, and stored records.
func (e *Engine) Handle(ctx context.Context, req models.UssdRequest) (models.UssdResponse, error) {
	now := e.now()
	phone := req.PhoneNumber
	entries := Split(req.Text)
	slog.Debug("Engine.Handle", "phone", phone, "session_id", req.SessionID, "entries", len(entries))

	user, err := e.records.GetUserByPhone(phone)
	if err != nil {
		slog.Error("Engine.Handle: user lookup failed", "error", err, "phone", phone)
		return e.end(ctx, phone, endSystemError()), nil
	}
	if user == nil {
		slog.Debug("Engine.Handle: unregistered phone", "phone", phone)
		return models.UssdResponse{
			Kind: models.KindEnd,
			Text: "This number is not registered with AfyaDial. Please register at your clinic or call " + SupportLine + ".",
		}, nil
	}

	// Fresh contact: the gateway sent an empty entry sequence, so a new
	// logical session starts. A stale prior session with a resume snapshot
	// triggers the resume prompt instead of the credential prompt.
	if len(entries) == 0 {
		return e.startSession(ctx, phone, user, now)
	}

	sess, err := e.sessions.Get(ctx, phone)
	if err != nil {
		slog.Error("Engine.Handle: session load failed", "error", err, "phone", phone)
		return e.end(ctx, phone, endSystemError()), nil
	}
	if sess == nil {
		// The store lost the session mid-dialog; rebuild from the replayed
		// entries without resume handling.
		sess = &models.DialogSession{PhoneNumber: phone, TimeoutMinutes: user.TimeoutMinutes(), CreatedAt: now}
	}
	sess.Entries = entries
	sess.LastActivity = now

	// Resume choice precedes the credential when the resume prompt was shown.
	authIdx := 0
	resumeChoice := ""
	if sess.ResumeOffered {
		idx := -1
		for i, entry := range entries {
			if entry == "1" || entry == "2" {
				idx = i
				resumeChoice = entry
				break
			}
		}
		if idx == -1 {
			e.put(ctx, sess)
			return models.UssdResponse{Kind: models.KindContinue, Text: "Reply 1 to resume your last session or 2 to start fresh."}, nil
		}
		authIdx = idx + 1
		if resumeChoice == "2" {
			sess.Resume = nil
		}
	}

	if len(entries) <= authIdx {
		e.put(ctx, sess)
		return models.UssdResponse{Kind: models.KindContinue, Text: promptSecret}, nil
	}
	secret := entries[authIdx]
	user, err = e.verifier.Verify(ctx, phone, secret)
	if errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrUnknownUser) {
		slog.Warn("Engine.Handle: authentication failed", "phone", phone)
		return e.end(ctx, phone, End("Invalid password or PIN. Please dial again to retry, or call "+SupportLine+" for help.")), nil
	}
	if err != nil {
		slog.Error("Engine.Handle: verification error", "error", err, "phone", phone)
		return e.end(ctx, phone, endSystemError()), nil
	}

	post := entries[authIdx+1:]
	injected := false
	if resumeChoice == "1" && sess.Resume != nil {
		// Re-inject the snapshot as if the gateway had resent those entries.
		post = append(append([]string(nil), sess.Resume.Entries...), post...)
		injected = true
		slog.Debug("Engine.Handle: resumed session", "phone", phone, "service", sess.Resume.Service, "injected", len(sess.Resume.Entries))
	}

	res := Resolve(post)
	if res.WentHome {
		sess.Resume = nil
	}
	if res.Exit {
		return e.end(ctx, phone, End("Thank you for using AfyaDial. Goodbye!")), nil
	}

	outcome := e.router.Dispatch(ctx, user, res.Entries)
	if outcome.Kind == models.KindEnd {
		return e.end(ctx, phone, outcome), nil
	}

	// Cycle tracking is interruptible: keep the snapshot fresh so a timed-out
	// session can pick up exactly here. While a resumed snapshot is in play it
	// must stay fixed at its pre-resume value: the gateway keeps replaying the
	// post-resume keystrokes, so a snapshot that absorbed them would re-inject
	// each one a second time. After a home jump the fold has collapsed the
	// injected prefix, so refreshing is safe again.
	if len(res.Entries) > 0 && res.Entries[0] == SelectorCycle && (!injected || res.WentHome) {
		sess.Resume = &models.ResumeSnapshot{
			Service: "cycle",
			Entries: append([]string(nil), res.Entries...),
		}
	}
	e.put(ctx, sess)
	return models.UssdResponse{Kind: outcome.Kind, Text: outcome.Text}, nil
}

// startSession handles an empty entry sequence: create a fresh session and
// show either the resume prompt or the credential prompt.
func (e *Engine) startSession(ctx context.Context, phone string, user *models.User, now time.Time) (models.UssdResponse, error) {
	prior, err := e.sessions.Get(ctx, phone)
	if err != nil {
		slog.Error("Engine.startSession: session load failed", "error", err, "phone", phone)
		return models.UssdResponse{Kind: models.KindEnd, Text: endSystemError().Text}, nil
	}

	sess := models.DialogSession{
		PhoneNumber:    phone,
		LastActivity:   now,
		TimeoutMinutes: user.TimeoutMinutes(),
		CreatedAt:      now,
	}
	if prior != nil && prior.Stale(now) && prior.Resume != nil {
		sess.ResumeOffered = true
		sess.Resume = prior.Resume
		if err := e.sessions.Put(ctx, phone, sess); err != nil {
			slog.Error("Engine.startSession: session store failed", "error", err, "phone", phone)
			return models.UssdResponse{Kind: models.KindEnd, Text: endSystemError().Text}, nil
		}
		slog.Debug("Engine.startSession: offering resume", "phone", phone, "service", prior.Resume.Service)
		return models.UssdResponse{Kind: models.KindContinue, Text: promptResume}, nil
	}

	if err := e.sessions.Put(ctx, phone, sess); err != nil {
		slog.Error("Engine.startSession: session store failed", "error", err, "phone", phone)
		return models.UssdResponse{Kind: models.KindEnd, Text: endSystemError().Text}, nil
	}
	return models.UssdResponse{Kind: models.KindContinue, Text: "Welcome to AfyaDial.\n" + promptSecret}, nil
}

// end clears the session and converts a terminal outcome to a response.
func (e *Engine) end(ctx context.Context, phone string, o Outcome) models.UssdResponse {
	if err := e.sessions.Clear(ctx, phone); err != nil {
		slog.Error("Engine.end: session clear failed", "error", err, "phone", phone)
	}
	return models.UssdResponse{Kind: o.Kind, Text: o.Text}
}

// put persists the session, logging failures without interrupting the reply.
func (e *Engine) put(ctx context.Context, sess *models.DialogSession) {
	if err := e.sessions.Put(ctx, sess.PhoneNumber, *sess); err != nil {
		slog.Error("Engine.put: session store failed", "error", err, "phone", sess.PhoneNumber)
	}
}
