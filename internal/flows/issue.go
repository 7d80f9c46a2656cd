package flows

import (
	"context"
	"time"
)

// IssueFailureKind classifies renewal issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureEncode
	IssueFailureStore
	IssueFailureSection
)

// IssueResult carries the newly active renewal credential or failure metadata.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error
	Token   string
}

// IssueRenewalDeps captures renewal issuance dependencies.
type IssueRenewalDeps struct {
	WithinSection SectionFunc
	EncodeRenewal func(principal string) (string, error)
	Store         RenewalStore
	RenewalTTL    time.Duration
}

// RunIssueRenewal mints a renewal credential for principal and overwrites the
// stored active value inside the principal's critical section.
func RunIssueRenewal(ctx context.Context, principal string, deps IssueRenewalDeps) IssueResult {
	var result IssueResult
	err := deps.WithinSection(ctx, principal, func(ctx context.Context) error {
		token, failure, err := storeRenewal(ctx, principal, deps.EncodeRenewal, deps.Store, deps.RenewalTTL)
		result = IssueResult{Failure: failure, Err: err, Token: token}
		return err
	})
	if err != nil && result.Failure == IssueFailureNone {
		return IssueResult{Failure: IssueFailureSection, Err: err}
	}
	return result
}
