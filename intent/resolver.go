package intent

import (
	"net/url"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultDestination is used when no intent survives the login round trip.
	DefaultDestination = "/dashboard"
	// StartPath is the entry point of the start flow.
	StartPath = "/start"
)

// StartFlowPath returns the start flow path for an opportunity.
func StartFlowPath(opportunityID string) string {
	return StartPath + "?opportunity_id=" + url.QueryEscape(opportunityID)
}

// Resolver picks the single destination after a successful login.
type Resolver struct {
	store  Store
	decode func(state string) (string, bool)
}

// NewResolver creates a resolver that drains intents from store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store:  store,
		decode: DecodeOpportunityID,
	}
}

// Resolve returns the path to continue to. The order is fixed: a stored
// opportunity, a safe next query parameter, a stored next path, an
// opportunity recovered from state, then the dashboard. It must run once per
// completed login.
func (r *Resolver) Resolve(queryNext, state string) string {
	if id, ok := r.store.TakeAndClear(KeyOpportunity); ok {
		log.Debug().Str("source", "stored_opportunity").Msg("Resolved post-login destination")
		return StartFlowPath(id)
	}

	fromQuery := ""
	if IsSafeInternalPath(queryNext) {
		fromQuery = queryNext
	}

	// The stored next path is drained even when the query already won so it
	// cannot be replayed by a later login.
	fromStore, stored := r.store.TakeAndClear(KeyNext)

	switch {
	case fromQuery != "":
		log.Debug().Str("source", "query_next").Bool("discarded_stored_next", stored).Msg("Resolved post-login destination")
		return fromQuery
	case stored:
		log.Debug().Str("source", "stored_next").Msg("Resolved post-login destination")
		return fromStore
	}

	if id, ok := r.decode(state); ok {
		log.Debug().Str("source", "state").Msg("Resolved post-login destination")
		return StartFlowPath(id)
	}

	return DefaultDestination
}
