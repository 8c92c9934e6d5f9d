package intent

import (
	"net/http"
	"sync"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

// CookieSessionName is the name of the browser-session cookie that carries
// redirect intents across an identity provider round trip.
const CookieSessionName = "grantpilot_intent"

// CookieStore is a Store bound to a single HTTP request/response pair. Values
// live in a gorilla/sessions session and every mutation is written back to the
// response immediately, so the intent survives a full-page redirect.
type CookieStore struct {
	mu      sync.Mutex
	backend sessions.Store
	w       http.ResponseWriter
	r       *http.Request
}

var _ Store = (*CookieStore)(nil)

// NewCookieStore binds backend to the current request.
func NewCookieStore(backend sessions.Store, w http.ResponseWriter, r *http.Request) *CookieStore {
	return &CookieStore{backend: backend, w: w, r: r}
}

func (s *CookieStore) Store(key Key, value string) bool {
	if !acceptable(key, value) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.backend.Get(s.r, CookieSessionName)
	if err != nil && sess == nil {
		log.Err(err).Str("key", string(key)).Msg("Failed to load intent session")
		return false
	}
	sess.Values[string(key)] = value
	if err := sess.Save(s.r, s.w); err != nil {
		log.Err(err).Str("key", string(key)).Msg("Failed to save intent session")
		return false
	}
	return true
}

func (s *CookieStore) TakeAndClear(key Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.backend.Get(s.r, CookieSessionName)
	if err != nil && sess == nil {
		log.Err(err).Str("key", string(key)).Msg("Failed to load intent session")
		return "", false
	}

	raw, present := sess.Values[string(key)]
	if !present {
		return "", false
	}
	delete(sess.Values, string(key))
	if err := sess.Save(s.r, s.w); err != nil {
		// The value is still handed out once; the cookie just keeps a stale copy.
		log.Err(err).Str("key", string(key)).Msg("Failed to clear intent session")
	}

	value, ok := raw.(string)
	if !ok || !acceptable(key, value) {
		return "", false
	}
	return value, true
}
