package event

import (
	"context"
	"time"
)

// LoanEventPayload identifies the application and applicant a decision event
// concerns; the notification service renders the email from it.
type LoanEventPayload struct {
	ApplicationID  int64  `json:"applicationId"`
	LoanID         *int64 `json:"loanId,omitempty"`
	LoanTypeName   string `json:"loanTypeName"`
	ApplicantID    int64  `json:"applicantId"`
	ApplicantEmail string `json:"applicantEmail"`
}

type LoanApprovedEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Payload   LoanEventPayload `json:"payload"`
}

type LoanRejectedEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Payload   LoanEventPayload `json:"payload"`
}

func (p *RabbitMQEventPublisher) PublishLoanApproved(ctx context.Context, event LoanApprovedEvent) error {
	return p.publish(ctx, routingKeyLoanApproved, event)
}

func (p *RabbitMQEventPublisher) PublishLoanRejected(ctx context.Context, event LoanRejectedEvent) error {
	return p.publish(ctx, routingKeyLoanRejected, event)
}
