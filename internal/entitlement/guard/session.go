package guard

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/vyora/internal/entitlement/domain"
	"github.com/felixgeelhaar/vyora/internal/entitlement/prompt"
)

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, route string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, route string) error {
	return f(ctx, route)
}

// Session tracks the upgrade prompt of one interactive session.
type Session struct {
	mu      sync.Mutex
	visible bool
	action  domain.ActionKind
	prompt  prompt.UpgradePrompt
}

// NewSession creates a session with a closed prompt.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) open(action domain.ActionKind, p prompt.UpgradePrompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
	s.action = action
	s.prompt = p
}

// resolve closes the prompt when action is the one that opened it.
func (s *Session) resolve(action domain.ActionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible && s.action == action {
		s.visible = false
		s.action = domain.ActionNone
	}
}

// Visible reports whether the prompt is open.
func (s *Session) Visible() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// BlockedAction returns the action that opened the prompt.
func (s *Session) BlockedAction() domain.ActionKind {
	if s == nil {
		return domain.ActionNone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.action
}

// Prompt returns the prompt contents and whether it is open.
func (s *Session) Prompt() (prompt.UpgradePrompt, bool) {
	if s == nil {
		return prompt.UpgradePrompt{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt, s.visible
}

// Dismiss closes the prompt. The blocked action is not retried.
func (s *Session) Dismiss() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
	s.action = domain.ActionNone
}

// Upgrade closes the prompt and asks nav to open the upgrade route.
func (s *Session) Upgrade(ctx context.Context, nav Navigator) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	route := s.prompt.Route
	s.visible = false
	s.action = domain.ActionNone
	s.mu.Unlock()

	if route == "" {
		route = prompt.DefaultRoute
	}
	if nav == nil {
		return nil
	}
	return nav.Navigate(ctx, route)
}
