package intent

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// statePayload is the only part of an echoed state value that is ever read.
type statePayload struct {
	OpportunityID  string `json:"opportunity_id"`
	RedirectIntent *struct {
		OpportunityID string `json:"opportunity_id"`
	} `json:"redirect_intent"`
}

func (p statePayload) opportunityID() string {
	if p.RedirectIntent != nil && p.RedirectIntent.OpportunityID != "" {
		return p.RedirectIntent.OpportunityID
	}
	return p.OpportunityID
}

// segmentParser only decodes base64url segments; it never verifies anything.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeOpportunityID extracts an opportunity id from a state value that was
// round-tripped through an identity provider. The value is untrusted: any
// shape other than a JSON object (optionally percent-encoded) or a
// three-segment token with a base64url JSON middle segment yields ok=false.
// No signature or expiry is checked.
func DecodeOpportunityID(state string) (opportunityID string, ok bool) {
	if state == "" {
		return "", false
	}
	if id, ok := decodeJSONState(state); ok {
		return id, true
	}
	if unescaped, err := url.PathUnescape(state); err == nil && unescaped != state {
		if id, ok := decodeJSONState(unescaped); ok {
			return id, true
		}
	}
	return decodeTokenState(state)
}

func decodeJSONState(state string) (string, bool) {
	return decodePayload([]byte(state))
}

func decodeTokenState(state string) (string, bool) {
	parts := strings.Split(state, ".")
	if len(parts) != 3 {
		return "", false
	}
	// Some issuers emit standard base64 in the middle segment.
	segment := strings.NewReplacer("+", "-", "/", "_").Replace(parts[1])
	raw, err := segmentParser.DecodeSegment(segment)
	if err != nil {
		return "", false
	}
	return decodePayload(raw)
}

func decodePayload(raw []byte) (string, bool) {
	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false
	}
	id := payload.opportunityID()
	if id == "" {
		return "", false
	}
	return id, true
}
