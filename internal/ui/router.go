package ui

import (
	"sync"

	"ragdesk/internal/backend"
)

// Views the CLI can be in.
const (
	ViewLogin     = backend.ViewLogin
	ViewRegister  = backend.ViewRegister
	ViewChat      = "chat"
	ViewDocuments = "documents"
	ViewAgents    = "agents"
	ViewAnalytics = "analytics"
	ViewSettings  = "settings"
)

// Router tracks the active view and lets the backend client send the user
// back to login when the session is rejected
type Router struct {
	mu         sync.Mutex
	current    string
	onRedirect func(from, to string)
}

// NewRouter starts in the given view.
func NewRouter(initial string) *Router {
	return &Router{current: initial}
}

// OnRedirect registers a callback run after every forced redirect.
func (r *Router) OnRedirect(fn func(from, to string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRedirect = fn
}

// Navigate switches views at the user's request
func (r *Router) Navigate(view string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = view
}

// CurrentView implements backend.Navigator
func (r *Router) CurrentView() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Redirect implements backend.Navigator. Redirecting to the view already
// shown does nothing.
func (r *Router) Redirect(view string) {
	r.mu.Lock()
	from := r.current
	if from == view {
		r.mu.Unlock()
		return
	}
	r.current = view
	fn := r.onRedirect
	r.mu.Unlock()

	if fn != nil {
		fn(from, view)
	}
}
