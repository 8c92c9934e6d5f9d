package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
)

const (
	PathFundingOpportunities = "/api/funding-opportunities/"
	PathProfileCompleteness  = "/api/ngo-profile/completeness"
	PathEntitlements         = "/api/me/entitlements"
	PathFitScans             = "/api/fit-scans"
)

// FundingOpportunity is the subset of an opportunity the start flow reads.
type FundingOpportunity struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	DonorOrganization string `json:"donor_organization"`
	IsActive          *bool  `json:"is_active"`
}

// Active reports the is_active flag. Validate guarantees it is present.
func (o FundingOpportunity) Active() bool {
	return o.IsActive != nil && *o.IsActive
}

type fundingOpportunityResponse struct {
	FundingOpportunity *FundingOpportunity `json:"funding_opportunity"`
	present            bool
}

// UnmarshalJSON records whether the string fields were sent at all. They may
// be empty.
func (r *fundingOpportunityResponse) UnmarshalJSON(data []byte) error {
	var wire struct {
		FundingOpportunity *struct {
			ID                *string `json:"id"`
			Title             *string `json:"title"`
			DonorOrganization *string `json:"donor_organization"`
			IsActive          *bool   `json:"is_active"`
		} `json:"funding_opportunity"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.FundingOpportunity, r.present = nil, false
	o := wire.FundingOpportunity
	if o == nil {
		return nil
	}
	r.present = o.ID != nil && o.Title != nil && o.DonorOrganization != nil
	r.FundingOpportunity = &FundingOpportunity{IsActive: o.IsActive}
	if r.present {
		r.FundingOpportunity.ID = *o.ID
		r.FundingOpportunity.Title = *o.Title
		r.FundingOpportunity.DonorOrganization = *o.DonorOrganization
	}
	return nil
}

func (r *fundingOpportunityResponse) Validate() error {
	if r.FundingOpportunity == nil {
		return errors.New("missing funding_opportunity")
	}
	if !r.present {
		return errors.New("funding_opportunity missing id, title or donor_organization")
	}
	if r.FundingOpportunity.IsActive == nil {
		return errors.New("funding_opportunity missing is_active")
	}
	return nil
}

// CompletenessStatus is the NGO profile completeness state.
type CompletenessStatus string

const (
	CompletenessMissing  CompletenessStatus = "MISSING"
	CompletenessDraft    CompletenessStatus = "DRAFT"
	CompletenessComplete CompletenessStatus = "COMPLETE"
)

// ProfileCompleteness is returned by the completeness endpoint.
type ProfileCompleteness struct {
	Status          CompletenessStatus `json:"status"`
	MissingFields   []string           `json:"missing_fields,omitempty"`
	CompletionRatio float64            `json:"completion_ratio,omitempty"`
}

func (c *ProfileCompleteness) Validate() error {
	switch c.Status {
	case CompletenessMissing, CompletenessDraft, CompletenessComplete:
		return nil
	default:
		return errors.New("unknown completeness status " + string(c.Status))
	}
}

// Quota is one usage counter of the current plan.
type Quota struct {
	Remaining int     `json:"remaining"`
	ResetAt   *string `json:"reset_at"`
}

// Entitlements are the per-plan usage quotas of the current user.
type Entitlements struct {
	Plan         Plan `json:"plan"`
	Entitlements struct {
		FitScans  *Quota `json:"fit_scans"`
		Proposals *Quota `json:"proposals,omitempty"`
	} `json:"entitlements"`
}

func (e *Entitlements) Validate() error {
	if e.Plan == "" {
		return errors.New("missing plan")
	}
	if e.Entitlements.FitScans == nil {
		return errors.New("missing entitlements.fit_scans")
	}
	return nil
}

// FitScansRemaining returns the remaining fit scan quota.
func (e *Entitlements) FitScansRemaining() int {
	if e.Entitlements.FitScans == nil {
		return 0
	}
	return e.Entitlements.FitScans.Remaining
}

// FitScan identifies a created fit scan.
type FitScan struct {
	ID string `json:"id"`
}

type fitScanResponse struct {
	FitScan *FitScan `json:"fit_scan"`
}

func (r *fitScanResponse) Validate() error {
	if r.FitScan == nil || r.FitScan.ID == "" {
		return errors.New("missing fit_scan.id")
	}
	return nil
}

// GrantPilotAPI wraps the authenticated endpoints used by the start flow.
type GrantPilotAPI struct {
	d *Dispatcher
}

// NewGrantPilotAPI creates a GrantPilotAPI on top of an authenticated dispatcher.
func NewGrantPilotAPI(d *Dispatcher) *GrantPilotAPI {
	return &GrantPilotAPI{d: d}
}

func (g *GrantPilotAPI) GetFundingOpportunity(ctx context.Context, id string) (*FundingOpportunity, error) {
	path := PathFundingOpportunities + url.PathEscape(id)
	resp, err := requestBody[fundingOpportunityResponse](ctx, g.d, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return resp.FundingOpportunity, nil
}

func (g *GrantPilotAPI) GetProfileCompleteness(ctx context.Context) (*ProfileCompleteness, error) {
	return requestBody[ProfileCompleteness](ctx, g.d, http.MethodGet, PathProfileCompleteness, nil)
}

func (g *GrantPilotAPI) GetEntitlements(ctx context.Context) (*Entitlements, error) {
	return requestBody[Entitlements](ctx, g.d, http.MethodGet, PathEntitlements, nil)
}

func (g *GrantPilotAPI) CreateFitScan(ctx context.Context, opportunityID string) (*FitScan, error) {
	body := map[string]string{"funding_opportunity_id": opportunityID}
	resp, err := requestBody[fitScanResponse](ctx, g.d, http.MethodPost, PathFitScans, body)
	if err != nil {
		return nil, err
	}
	return resp.FitScan, nil
}
