package server

import (
	"net/http"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/intent"
	"github.com/jrsteele09/grantpilot-workspace/nav"
	"github.com/jrsteele09/grantpilot-workspace/startflow"
	"github.com/rs/zerolog/log"
)

const (
	browseOpportunitiesURL = "https://ngoinfo.org"
	billingPath            = "/billing"
)

// StartPageData describes a start flow that stopped without navigating.
type StartPageData struct {
	Step        startflow.Step    `json:"step"`
	Reason      startflow.Reason  `json:"reason,omitempty"`
	Message     string            `json:"message"`
	Opportunity *OpportunityData  `json:"opportunity,omitempty"`
	Plan        apiclient.Plan    `json:"plan,omitempty"`
	RetryPath   string            `json:"retry_path,omitempty"`
	Actions     map[string]string `json:"actions,omitempty"`
}

type OpportunityData struct {
	Title             string `json:"title"`
	DonorOrganization string `json:"donor_organization"`
}

// StartHandler runs the start flow for ?opportunity_id= (GET /start). Every
// request is a fresh flow, so a retry restarts from opportunity validation.
func (s *Server) StartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r.Context())
		opportunityID := r.URL.Query().Get("opportunity_id")

		flow := startflow.New(
			opportunityID,
			ws.API,
			ws.Session,
			s.intentStore(w, r),
			nav.ContextNavigator{},
			startflow.WithFitScanTimeout(s.config.GetFitScanTimeout()),
			startflow.WithObserver(func(c startflow.Context) {
				title := ""
				if c.Opportunity != nil {
					title = c.Opportunity.Title
				}
				log.Debug().Str("workspace_id", ws.ID).Str("step", string(c.Step)).
					Msg(startflow.LoadingMessage(c.Step, title))
			}),
		)

		outcome := flow.Run(r.Context())
		if outcome.Redirect != "" {
			redirectSuccess(w, r, outcome.Redirect)
			return
		}
		writeJSON(w, http.StatusOK, startPageData(opportunityID, outcome))
	}
}

func startPageData(opportunityID string, outcome startflow.Outcome) StartPageData {
	data := StartPageData{
		Step:    outcome.Step,
		Reason:  outcome.Reason,
		Message: outcome.Message,
		Plan:    outcome.Context.Plan,
	}
	if o := outcome.Context.Opportunity; o != nil {
		data.Opportunity = &OpportunityData{Title: o.Title, DonorOrganization: o.DonorOrganization}
	}
	if outcome.Retryable {
		data.RetryPath = intent.StartFlowPath(opportunityID)
	}

	switch outcome.Step {
	case startflow.StepBlockedInvalidLink, startflow.StepBlockedInactiveOpportunity:
		data.Actions = map[string]string{"browse": browseOpportunitiesURL}
	case startflow.StepBlockedQuota:
		data.Actions = map[string]string{"upgrade": billingPath}
	}
	return data
}
