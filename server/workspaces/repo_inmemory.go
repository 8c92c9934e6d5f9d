package workspaces

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	werrors "github.com/jrsteele09/grantpilot-workspace/internal/errors"
	"github.com/rs/zerolog/log"
)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu          sync.RWMutex
	workspaces  map[string]*Workspace
	factory     Factory
	idleTimeout time.Duration
	maxSize     int
	nowTime     func() time.Time
	newID       func() string
}

var _ Repo = (*InMemoryRepo)(nil)

// RepoOption defines a function type to modify the InMemoryRepo instance.
type RepoOption func(*InMemoryRepo)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RepoOption {
	return func(r *InMemoryRepo) {
		r.nowTime = nowFunc
	}
}

// WithIDGenerator replaces the uuid workspace id generator
func WithIDGenerator(newID func() string) RepoOption {
	return func(r *InMemoryRepo) {
		r.newID = newID
	}
}

// WithMaxWorkspaces caps the number of stored workspaces. Opening a new one at
// the cap drops expired workspaces first, then the least recently seen one.
// Zero or less means no cap.
func WithMaxWorkspaces(n int) RepoOption {
	return func(r *InMemoryRepo) {
		r.maxSize = n
	}
}

// NewInMemoryRepo creates a repo whose workspaces expire after idleTimeout
// without a request. A zero idleTimeout never expires.
func NewInMemoryRepo(factory Factory, idleTimeout time.Duration, options ...RepoOption) *InMemoryRepo {
	r := &InMemoryRepo{
		workspaces:  make(map[string]*Workspace),
		factory:     factory,
		idleTimeout: idleTimeout,
		nowTime:     time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *InMemoryRepo) Open(id string) (*Workspace, bool) {
	now := r.nowTime()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[id]; ok && id != "" {
		if !r.expired(ws, now) {
			ws.lastSeen = now
			return ws, false
		}
		delete(r.workspaces, id)
	}

	if r.maxSize > 0 && len(r.workspaces) >= r.maxSize {
		r.evictLocked(now)
	}

	ws := r.factory(r.newID())
	ws.CreatedAt = now
	ws.lastSeen = now
	r.workspaces[ws.ID] = ws
	return ws, true
}

func (r *InMemoryRepo) Get(id string) (*Workspace, error) {
	if id == "" {
		return nil, fmt.Errorf("[InMemoryRepo Get] workspace id is required: %w", werrors.ErrValidation)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[id]
	if !ok || r.expired(ws, r.nowTime()) {
		return nil, fmt.Errorf("[InMemoryRepo Get] workspace %s: %w", id, werrors.ErrNotFound)
	}
	return ws, nil
}

func (r *InMemoryRepo) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("[InMemoryRepo Delete] workspace id is required: %w", werrors.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, id)
	return nil
}

func (r *InMemoryRepo) Sweep() int {
	now := r.nowTime()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(now)
}

func (r *InMemoryRepo) sweepLocked(now time.Time) int {
	removed := 0
	for id, ws := range r.workspaces {
		if r.expired(ws, now) {
			delete(r.workspaces, id)
			removed++
		}
	}
	return removed
}

// evictLocked makes room for one more workspace.
func (r *InMemoryRepo) evictLocked(now time.Time) {
	if r.sweepLocked(now) > 0 && len(r.workspaces) < r.maxSize {
		return
	}
	for len(r.workspaces) >= r.maxSize {
		var oldest *Workspace
		for _, ws := range r.workspaces {
			if oldest == nil || ws.lastSeen.Before(oldest.lastSeen) {
				oldest = ws
			}
		}
		delete(r.workspaces, oldest.ID)
		log.Debug().Str("workspace_id", oldest.ID).Msg("Evicted least recently seen workspace")
	}
}

// Len returns the number of stored workspaces, expired or not.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

// RunSweeper sweeps every interval until ctx is done.
func (r *InMemoryRepo) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := r.Sweep(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("Swept idle workspaces")
			}
		}
	}
}

func (r *InMemoryRepo) expired(ws *Workspace, now time.Time) bool {
	return r.idleTimeout > 0 && now.Sub(ws.lastSeen) > r.idleTimeout
}
