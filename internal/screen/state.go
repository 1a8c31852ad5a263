// Package screen holds the per-screen view state: what each screen loaded,
// which mutations are in flight and what error, if any, is on display.
//
// A screen instance owns its collections exclusively. Nothing is shared
// between screens; a fresh instance is the only way to re-sync with the server
// beyond an explicit reload.
package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"watchpoint/internal/domain"
	"watchpoint/internal/session"
)

// Phase is the screen lifecycle: Idle -> Loading -> Ready | Redirecting | Failed.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseRedirecting
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseRedirecting:
		return "redirecting"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Navigator is implemented by the UI layer.
type Navigator interface {
	// ToLogin sends the user to the login entry point.
	ToLogin()
	// ToDashboard leaves the current screen for the dashboard.
	ToDashboard()
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Always is a Confirmer for callers that already collected confirmation.
var Always = ConfirmFunc(func(string) bool { return true })

// base carries the state every screen shares. mu guards all fields of the
// embedding screen; network calls are made without holding it.
type base struct {
	mu      sync.Mutex
	phase   Phase
	loading bool
	loaded  bool
	errMsg  string

	sessions session.Provider
	nav      Navigator
	log      logrus.FieldLogger
}

func (b *base) init(sessions session.Provider, nav Navigator, log logrus.FieldLogger) {
	b.sessions = sessions
	b.nav = nav
	b.log = log
}

// beginLoad enters Loading and clears any displayed error.
func (b *base) beginLoad() {
	b.mu.Lock()
	b.phase = PhaseLoading
	b.loading = true
	b.errMsg = ""
	b.mu.Unlock()
}

// endLoad clears the loading flag. It runs on every exit path.
func (b *base) endLoad() {
	b.mu.Lock()
	b.loading = false
	b.mu.Unlock()
}

// hasSession reports whether a session exists, redirecting when it does not.
func (b *base) hasSession(ctx context.Context) bool {
	_, ok, err := b.sessions.CurrentToken(ctx)
	if err != nil {
		b.log.WithError(err).Warn("Session lookup failed")
	}
	if err != nil || !ok {
		b.redirect()
		return false
	}
	return true
}

func (b *base) redirect() {
	b.mu.Lock()
	b.phase = PhaseRedirecting
	b.mu.Unlock()
	b.log.Info("No session, redirecting to login")
	if b.nav != nil {
		b.nav.ToLogin()
	}
}

// handle is the error boundary of every screen operation. Auth failures
// redirect; anything else becomes the inline error and already-loaded data
// stays in place.
func (b *base) handle(err error, msg string) {
	if err == nil {
		return
	}
	if domain.KindOf(err) == domain.KindAuthRequired {
		b.redirect()
		return
	}
	if msg == "" {
		msg = errorMessage(err)
	}
	b.mu.Lock()
	b.errMsg = msg
	if b.phase == PhaseLoading {
		b.phase = PhaseFailed
		if b.loaded {
			b.phase = PhaseReady
		}
	}
	b.mu.Unlock()
	b.log.WithError(err).WithField("kind", domain.KindOf(err).String()).Warn("Screen operation failed")
}

// markReady records that data has been applied. Caller holds mu.
func (b *base) markReady() {
	b.phase = PhaseReady
	b.loaded = true
}

func (b *base) setError(msg string) {
	b.mu.Lock()
	b.errMsg = msg
	b.mu.Unlock()
}

// Phase returns the current lifecycle phase.
func (b *base) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// errorMessage is the user-facing text for err.
func errorMessage(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
