// Package nav carries navigation side effects out of the session and flow
// code. Callers record where the browser should go; the HTTP layer turns the
// last recorded target into a redirect.
package nav

import (
	"context"
	"net/url"
	"sync"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Navigator sends the user somewhere else.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// LoginURL returns the login page with next as the re-entry target. An empty
// next yields the bare login page.
func LoginURL(next string) string {
	if next == "" {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

type currentPathKey struct{}

// WithCurrentPath records the path (and query) the user is on.
func WithCurrentPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, currentPathKey{}, path)
}

// CurrentPath returns the path recorded by WithCurrentPath.
func CurrentPath(ctx context.Context) string {
	path, _ := ctx.Value(currentPathKey{}).(string)
	return path
}

// Recorder is a Navigator that remembers the targets it was given.
type Recorder struct {
	mu      sync.Mutex
	targets []string
}

var _ Navigator = (*Recorder)(nil)

func (r *Recorder) Navigate(_ context.Context, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
}

// Last returns the most recent target.
func (r *Recorder) Last() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.targets) == 0 {
		return "", false
	}
	return r.targets[len(r.targets)-1], true
}

// Targets returns every recorded target in order.
func (r *Recorder) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.targets...)
}

type recorderKey struct{}

// WithRecorder attaches a request-scoped recorder to ctx.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFrom returns the recorder attached to ctx, if any.
func RecorderFrom(ctx context.Context) (*Recorder, bool) {
	r, ok := ctx.Value(recorderKey{}).(*Recorder)
	return r, ok
}

// ContextNavigator forwards navigation to the recorder attached to the
// request context. Long-lived objects such as a session manager use it so
// that each request collects its own redirect.
type ContextNavigator struct{}

var _ Navigator = ContextNavigator{}

func (ContextNavigator) Navigate(ctx context.Context, target string) {
	if r, ok := RecorderFrom(ctx); ok {
		r.Navigate(ctx, target)
	}
}
