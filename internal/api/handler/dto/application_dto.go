package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"greenloan-engine/internal/domain/application"
	"greenloan-engine/internal/domain/catalog"
)

type SubmitApplicationRequest struct {
	LoanTypeID        int64  `json:"loanTypeId"`
	Amount            string `json:"amount"`
	DurationMonths    int    `json:"durationMonths"`
	Purpose           string `json:"purpose"`
	MonthlyIncome     string `json:"monthlyIncome"`
	Address           string `json:"address"`
	CitizenshipNumber string `json:"citizenshipNumber"`
}

func (r *SubmitApplicationRequest) Validate() error {
	if r.LoanTypeID <= 0 {
		return fmt.Errorf("loanTypeId is required")
	}
	if _, err := decimal.NewFromString(r.Amount); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if r.DurationMonths <= 0 {
		return fmt.Errorf("durationMonths must be positive")
	}
	if _, err := decimal.NewFromString(r.MonthlyIncome); err != nil {
		return fmt.Errorf("invalid monthlyIncome: %w", err)
	}
	return nil
}

type TransitionRequest struct {
	Target string `json:"target"`
	Note   string `json:"note"`
}

func (r *TransitionRequest) Validate() error {
	if r.Target == "" {
		return fmt.Errorf("target status is required")
	}
	return nil
}

type RequestDocumentsRequest struct {
	DocumentTypes []string `json:"documentTypes"`
	Note          string   `json:"note"`
}

func (r *RequestDocumentsRequest) Validate() error {
	if len(r.DocumentTypes) == 0 {
		return fmt.Errorf("documentTypes is required")
	}
	return nil
}

func (r *RequestDocumentsRequest) Types() []catalog.DocumentType {
	types := make([]catalog.DocumentType, len(r.DocumentTypes))
	for i, t := range r.DocumentTypes {
		types[i] = catalog.DocumentType(t)
	}
	return types
}

type UploadDocumentRequest struct {
	DocumentType string `json:"documentType"`
	FileName     string `json:"fileName"`
}

func (r *UploadDocumentRequest) Validate() error {
	if r.DocumentType == "" {
		return fmt.Errorf("documentType is required")
	}
	if r.FileName == "" {
		return fmt.Errorf("fileName is required")
	}
	return nil
}

type ReviewDocumentRequest struct {
	Approve bool `json:"approve"`
}

type StatusChangeResponse struct {
	Status    string    `json:"status"`
	ActorID   string    `json:"actorId"`
	ActorName string    `json:"actorName"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStatusChangeResponse(c application.StatusChange) StatusChangeResponse {
	return StatusChangeResponse{
		Status:    string(c.Status),
		ActorID:   strconv.FormatInt(c.ActorID, 10),
		ActorName: c.ActorName,
		Note:      c.Note,
		Timestamp: c.Timestamp,
	}
}

type DocumentResponse struct {
	ID           string    `json:"id"`
	DocumentType string    `json:"documentType"`
	FileName     *string   `json:"fileName,omitempty"`
	Verification string    `json:"verification"`
	IsAdditional bool      `json:"isAdditional"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

func NewDocumentResponse(d *application.Document) DocumentResponse {
	return DocumentResponse{
		ID:           strconv.FormatInt(d.ID, 10),
		DocumentType: string(d.Type),
		FileName:     d.FileName,
		Verification: string(d.Verification),
		IsAdditional: d.IsAdditional,
		UploadedAt:   d.UploadedAt,
	}
}

type ApplicationResponse struct {
	ID             string                 `json:"id"`
	ApplicantID    string                 `json:"applicantId"`
	LoanTypeID     string                 `json:"loanTypeId"`
	Amount         string                 `json:"amount"`
	DurationMonths int                    `json:"durationMonths"`
	Purpose        string                 `json:"purpose,omitempty"`
	MonthlyIncome  string                 `json:"monthlyIncome"`
	Status         string                 `json:"status"`
	OfficerID      *string                `json:"officerId,omitempty"`
	History        []StatusChangeResponse `json:"history,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func NewApplicationResponse(app *application.Application, includeHistory bool) ApplicationResponse {
	resp := ApplicationResponse{
		ID:             strconv.FormatInt(app.ID, 10),
		ApplicantID:    strconv.FormatInt(app.ApplicantID, 10),
		LoanTypeID:     strconv.FormatInt(app.LoanTypeID, 10),
		Amount:         app.Amount.StringFixed(2),
		DurationMonths: app.DurationMonths,
		Purpose:        app.Purpose,
		MonthlyIncome:  app.MonthlyIncome.StringFixed(2),
		Status:         string(app.Status),
		CreatedAt:      app.CreatedAt,
		UpdatedAt:      app.UpdatedAt,
	}
	if app.OfficerID != nil {
		officerID := strconv.FormatInt(*app.OfficerID, 10)
		resp.OfficerID = &officerID
	}
	if includeHistory && len(app.StatusHistory) > 0 {
		resp.History = make([]StatusChangeResponse, len(app.StatusHistory))
		for i, c := range app.StatusHistory {
			resp.History[i] = NewStatusChangeResponse(c)
		}
	}
	return resp
}
