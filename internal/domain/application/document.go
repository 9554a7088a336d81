package application

import (
	"time"

	"greenloan-engine/internal/domain/catalog"
)

type DocumentVerification string

const (
	DocPending  DocumentVerification = "pending"
	DocVerified DocumentVerification = "verified"
	DocRejected DocumentVerification = "rejected"
)

// Document is one required or officer-requested file attached to an
// application. FileName is nil until the applicant uploads the file; for
// non-additional documents at most one row exists per (application, type).
type Document struct {
	ID            int64
	ApplicationID int64
	Type          catalog.DocumentType
	FileName      *string
	Verification  DocumentVerification
	IsAdditional  bool
	UploadedAt    time.Time
}

func (d *Document) HasFile() bool {
	return d.FileName != nil && *d.FileName != ""
}

// RequiredDocumentsSatisfied reports whether every baseline required
// document type has an uploaded file.
func RequiredDocumentsSatisfied(required []catalog.DocumentType, docs []*Document) bool {
	for _, req := range required {
		found := false
		for _, d := range docs {
			if !d.IsAdditional && d.Type == req && d.HasFile() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RequiredDocumentsVerified reports whether every baseline required document
// is uploaded and verified by an officer.
func RequiredDocumentsVerified(required []catalog.DocumentType, docs []*Document) bool {
	for _, req := range required {
		found := false
		for _, d := range docs {
			if !d.IsAdditional && d.Type == req && d.HasFile() && d.Verification == DocVerified {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AdditionalDocumentsProvided reports whether every officer-requested
// additional document carries a file. With no additional requests it is
// vacuously true.
func AdditionalDocumentsProvided(docs []*Document) bool {
	for _, d := range docs {
		if d.IsAdditional && !d.HasFile() {
			return false
		}
	}
	return true
}
