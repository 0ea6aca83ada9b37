// Package ui defines the side-effect ports the core drives: where the user is,
// where to send them, and how to tell them something went wrong.
package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Kind identifies which failure policy produced a notification.
type Kind string

const (
	KindSessionExpired Kind = "session_expired"
	KindNotFound       Kind = "not_found"
	KindServerFault    Kind = "server_fault"
	KindNetwork        Kind = "network"
	KindTechnical      Kind = "technical"
	KindClient         Kind = "client"
)

// Notification is a user-visible toast.
type Notification struct {
	Kind    Kind
	Message string
}

// Location reports the current client path.
type Location interface {
	Path() string
}

// Navigator changes the current client path.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// Notifier shows a notification to the user.
type Notifier interface {
	Notify(n Notification)
}

// Router is an in-memory Location and Navigator.
type Router struct {
	mu   sync.RWMutex
	path string
}

// NewRouter returns a router positioned at path.
func NewRouter(path string) *Router { return &Router{path: path} }

// Path implements Location.
func (r *Router) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// Navigate implements Navigator.
func (r *Router) Navigate(_ context.Context, path string) {
	r.mu.Lock()
	r.path = path
	r.mu.Unlock()
}

// Recorder captures notifications and navigations; safe for concurrent use.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	navigations   []string
	contexts      []context.Context
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

// Navigate implements Navigator.
func (r *Recorder) Navigate(ctx context.Context, path string) {
	r.mu.Lock()
	r.navigations = append(r.navigations, path)
	r.contexts = append(r.contexts, ctx)
	r.mu.Unlock()
}

// Notifications returns a copy of recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Navigations returns a copy of recorded navigation targets.
func (r *Recorder) Navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.navigations...)
}

// NavigationContexts returns the contexts passed to Navigate, in order.
func (r *Recorder) NavigationContexts() []context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]context.Context(nil), r.contexts...)
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct{ Log *zap.Logger }

// Notify implements Notifier.
func (l LogNotifier) Notify(n Notification) {
	l.Log.Warn("notification", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
}

// WriterNotifier prints notifications as lines, e.g. to stderr for the CLI.
type WriterNotifier struct{ W io.Writer }

// Notify implements Notifier.
func (w WriterNotifier) Notify(n Notification) {
	_, _ = fmt.Fprintf(w.W, "! %s\n", n.Message)
}

// Fanout notifies every wrapped notifier.
type Fanout []Notifier

// Notify implements Notifier.
func (f Fanout) Notify(n Notification) {
	for _, x := range f {
		x.Notify(n)
	}
}
