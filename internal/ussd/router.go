package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

// Router dispatches the backflow-resolved entry sequence to service handlers
// via a fixed selector table.
type Router struct {
	handlers map[string]Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds a root-menu selector to a handler.
func (r *Router) Register(selector string, h Handler) {
	r.handlers[selector] = h
}

// Dispatch routes the entry sequence. An empty sequence renders the root
// menu; an unknown selector is a terminal invalid-selection reply.
func (r *Router) Dispatch(ctx context.Context, user *models.User, entries []string) Outcome {
	if len(entries) == 0 {
		return Continue(r.RootMenu(user))
	}
	h, ok := r.handlers[entries[0]]
	if !ok {
		slog.Warn("Router.Dispatch: unknown selector", "selector", entries[0], "phone", user.PhoneNumber)
		return End("Invalid selection. Please dial again and choose one of the listed options.")
	}
	slog.Debug("Router.Dispatch", "service", h.Name(), "depth", len(entries)-1, "phone", user.PhoneNumber)
	return h.Step(ctx, user, entries[1:])
}

// RootMenu renders the top-level menu for a user.
func (r *Router) RootMenu(user *models.User) string {
	var b strings.Builder
	name := user.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hello %s, welcome to AfyaDial.\n", name)

	selectors := make([]string, 0, len(r.handlers))
	for sel := range r.handlers {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)
	for _, sel := range selectors {
		fmt.Fprintf(&b, "%s. %s\n", sel, r.handlers[sel].Name())
	}
	b.WriteString("0. Exit")
	return b.String()
}
