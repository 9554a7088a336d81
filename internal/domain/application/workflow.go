package application

import (
	"fmt"
	"time"

	"greenloan-engine/internal/domain/applicant"
	"greenloan-engine/internal/domain/catalog"
	"greenloan-engine/internal/pkg/apperrors"
)

// allowedTransitions is the review state machine:
//
//	submitted → under_review → {info_requested ⇄ info_provided} →
//	documents_verified → salary_verified → proposal_approved →
//	final_review → {approved | rejected}
//
// under_review may reach documents_verified directly when the baseline
// documents are already complete and verified.
var allowedTransitions = map[Status][]Status{
	StatusSubmitted:         {StatusUnderReview, StatusInfoRequested},
	StatusUnderReview:       {StatusInfoRequested, StatusDocumentsVerified},
	StatusInfoRequested:     {StatusInfoProvided},
	StatusInfoProvided:      {StatusInfoRequested, StatusDocumentsVerified},
	StatusDocumentsVerified: {StatusSalaryVerified},
	StatusSalaryVerified:    {StatusProposalApproved},
	StatusProposalApproved:  {StatusFinalReview},
	StatusFinalReview:       {StatusApproved, StatusRejected},
	StatusApproved:          {},
	StatusRejected:          {},
}

// CanTransition reports whether target is reachable from s in one step.
func (s Status) CanTransition(target Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// applicantDriven marks the transitions the applicant (not an officer)
// performs. Everything else is officer-only.
var applicantDriven = map[Status]bool{
	StatusInfoProvided: true,
}

type EffectKind string

const (
	// EffectCreateLoan instructs the caller to create the approved loan and
	// its full repayment schedule inside the same transaction.
	EffectCreateLoan EffectKind = "create_loan"
	// EffectNotifyApproved / EffectNotifyRejected instruct the caller to
	// emit the corresponding notification event after commit.
	EffectNotifyApproved EffectKind = "notify_approved"
	EffectNotifyRejected EffectKind = "notify_rejected"
)

type Effect struct {
	Kind EffectKind
}

// TransitionContext is the state the workflow inspects when gating a
// transition: the application's documents and the loan type's baseline
// required set.
type TransitionContext struct {
	Documents         []*Document
	RequiredDocuments []catalog.DocumentType
}

// Transition advances app to target on behalf of actor. It mutates only the
// in-memory application (status + one appended history entry) and returns
// the follow-up effects the caller must execute transactionally. An
// unreachable target or an unauthorized actor leaves app untouched.
func Transition(app *Application, tc TransitionContext, target Status, actor *applicant.Applicant, note string, now time.Time) ([]Effect, error) {
	if app == nil || actor == nil {
		return nil, fmt.Errorf("%w: application and actor are required", apperrors.ErrInvalidArgument)
	}

	if !app.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: cannot move from '%s' to '%s'", apperrors.ErrInvalidTransition, app.Status, target)
	}

	if applicantDriven[target] {
		if actor.ID != app.ApplicantID {
			return nil, fmt.Errorf("%w: only the applicant can provide requested information", apperrors.ErrForbidden)
		}
		if !AdditionalDocumentsProvided(tc.Documents) {
			return nil, fmt.Errorf("%w: requested documents are not yet uploaded", apperrors.ErrValidation)
		}
	} else {
		if !actor.Role.IsOfficer() {
			return nil, fmt.Errorf("%w: only officers can perform this transition", apperrors.ErrForbidden)
		}
	}

	if target == StatusDocumentsVerified && !RequiredDocumentsVerified(tc.RequiredDocuments, tc.Documents) {
		return nil, fmt.Errorf("%w: required documents are not all uploaded and verified", apperrors.ErrValidation)
	}

	app.Status = target
	if !applicantDriven[target] {
		app.OfficerID = &actor.ID
	}
	app.AppendHistory(target, actor.ID, actor.FullName, note, now)

	switch target {
	case StatusApproved:
		return []Effect{{Kind: EffectCreateLoan}, {Kind: EffectNotifyApproved}}, nil
	case StatusRejected:
		return []Effect{{Kind: EffectNotifyRejected}}, nil
	}
	return nil, nil
}
