// Package startflowfakes provides test doubles for the start flow.
package startflowfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
)

// FakeAPI answers each call with the configured func and counts calls.
// A nil func fails the call.
type FakeAPI struct {
	OpportunityFunc  func(ctx context.Context, id string) (*apiclient.FundingOpportunity, error)
	CompletenessFunc func(ctx context.Context) (*apiclient.ProfileCompleteness, error)
	EntitlementsFunc func(ctx context.Context) (*apiclient.Entitlements, error)
	CreateFunc       func(ctx context.Context, opportunityID string) (*apiclient.FitScan, error)

	mu    sync.Mutex
	calls map[string]int
}

var errNotConfigured = errors.New("fake not configured")

func (f *FakeAPI) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Calls returns how often the named method was called.
func (f *FakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *FakeAPI) GetFundingOpportunity(ctx context.Context, id string) (*apiclient.FundingOpportunity, error) {
	f.count("GetFundingOpportunity")
	if f.OpportunityFunc == nil {
		return nil, errNotConfigured
	}
	return f.OpportunityFunc(ctx, id)
}

func (f *FakeAPI) GetProfileCompleteness(ctx context.Context) (*apiclient.ProfileCompleteness, error) {
	f.count("GetProfileCompleteness")
	if f.CompletenessFunc == nil {
		return nil, errNotConfigured
	}
	return f.CompletenessFunc(ctx)
}

func (f *FakeAPI) GetEntitlements(ctx context.Context) (*apiclient.Entitlements, error) {
	f.count("GetEntitlements")
	if f.EntitlementsFunc == nil {
		return nil, errNotConfigured
	}
	return f.EntitlementsFunc(ctx)
}

func (f *FakeAPI) CreateFitScan(ctx context.Context, opportunityID string) (*apiclient.FitScan, error) {
	f.count("CreateFitScan")
	if f.CreateFunc == nil {
		return nil, errNotConfigured
	}
	return f.CreateFunc(ctx, opportunityID)
}

// HappyPath returns a FakeAPI where every check passes and the scan is scanID.
func HappyPath(scanID string) *FakeAPI {
	return &FakeAPI{
		OpportunityFunc: func(_ context.Context, id string) (*apiclient.FundingOpportunity, error) {
			return Opportunity(id, true), nil
		},
		CompletenessFunc: func(context.Context) (*apiclient.ProfileCompleteness, error) {
			return &apiclient.ProfileCompleteness{Status: apiclient.CompletenessComplete}, nil
		},
		EntitlementsFunc: func(context.Context) (*apiclient.Entitlements, error) {
			return Entitlements(apiclient.PlanGrowth, 3), nil
		},
		CreateFunc: func(context.Context, string) (*apiclient.FitScan, error) {
			return &apiclient.FitScan{ID: scanID}, nil
		},
	}
}

// Opportunity builds a funding opportunity.
func Opportunity(id string, active bool) *apiclient.FundingOpportunity {
	return &apiclient.FundingOpportunity{
		ID:                id,
		Title:             "Clean Water Access Grant",
		DonorOrganization: "Water Futures Foundation",
		IsActive:          &active,
	}
}

// Entitlements builds entitlements with the given fit scan quota.
func Entitlements(plan apiclient.Plan, remaining int) *apiclient.Entitlements {
	e := &apiclient.Entitlements{Plan: plan}
	e.Entitlements.FitScans = &apiclient.Quota{Remaining: remaining}
	return e
}

// Authenticated is a fixed answer to IsAuthenticated.
type Authenticated bool

func (a Authenticated) IsAuthenticated() bool {
	return bool(a)
}
