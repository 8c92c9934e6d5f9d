package startflow

import "fmt"

// Step is a state of the start flow.
type Step string

const (
	StepAuthenticating             Step = "authenticating"
	StepValidatingOpportunity      Step = "validating_opportunity"
	StepCheckingCompleteness       Step = "checking_completeness"
	StepCheckingQuota              Step = "checking_quota"
	StepCreatingFitScan            Step = "creating_fit_scan"
	StepBlockedQuota               Step = "blocked_quota"
	StepBlockedInactiveOpportunity Step = "blocked_inactive_opportunity"
	StepBlockedInvalidLink         Step = "blocked_invalid_link"
	StepFailed                     Step = "failed"
)

// Blocked reports whether s is a terminal state the user has to act on.
func (s Step) Blocked() bool {
	switch s {
	case StepBlockedQuota, StepBlockedInactiveOpportunity, StepBlockedInvalidLink:
		return true
	}
	return false
}

// Reason narrows down why a flow stopped.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonMalformedID    Reason = "malformed_id"
	ReasonNotFound       Reason = "not_found"
	ReasonInactive       Reason = "inactive"
	ReasonQuotaExhausted Reason = "quota_exhausted"
	ReasonTimeout        Reason = "timeout"
	ReasonError          Reason = "error"
)

const (
	MessageInvalidLink       = "This opportunity link is invalid. Browse opportunities on NGOInfo.org."
	MessageNotFound          = "We couldn't find this opportunity. It may have been removed. Browse opportunities on NGOInfo.org."
	MessageInactive          = "This opportunity is no longer available."
	MessageFailed            = "Something went wrong. Please try again."
	MessageCompleteProfile   = "Complete your profile to run your Fit Scan."
	messageQuotaFormat       = "You have no Fit Scans remaining on your %s plan right now. Upgrade to continue."
	messageQuotaUnknownPlan  = "You have no Fit Scans remaining on your current plan right now. Upgrade to continue."
	messagePreparing         = "Preparing your start flow..."
	messageCheckingFitFormat = "Checking your fit for %s..."
)

// QuotaMessage is the blocked_quota message for plan.
func QuotaMessage(plan string) string {
	if plan == "" {
		return messageQuotaUnknownPlan
	}
	return fmt.Sprintf(messageQuotaFormat, plan)
}

// LoadingMessage is shown while the flow is in step. title is the opportunity
// title once known.
func LoadingMessage(step Step, title string) string {
	switch step {
	case StepAuthenticating:
		return "Redirecting you to login..."
	case StepValidatingOpportunity:
		return "Validating opportunity details..."
	case StepCheckingCompleteness:
		return "Checking your profile completeness..."
	case StepCheckingQuota:
		return "Checking your Fit Scan quota..."
	case StepCreatingFitScan:
		if title != "" {
			return fmt.Sprintf(messageCheckingFitFormat, title)
		}
		return "Checking your fit..."
	default:
		return messagePreparing
	}
}
