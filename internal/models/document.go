package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stage is one step of the document pipeline
type Stage string

const (
	StageCollecting Stage = "Collecting"
	StageScreening  Stage = "Screening"
	StageProcessing Stage = "Processing"
	StageDone       Stage = "Done"
)

// Stages is the fixed forward pipeline order
var Stages = []Stage{StageCollecting, StageScreening, StageProcessing, StageDone}

// Valid reports whether s is a pipeline stage
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// OutcomeStatus is the verification outcome of a document
type OutcomeStatus string

const (
	OutcomePending   OutcomeStatus = "Pending"
	OutcomeRejected  OutcomeStatus = "Rejected"
	OutcomeCorrected OutcomeStatus = "Corrected"
	OutcomeVerified  OutcomeStatus = "Verified"
)

// FormData is the bag of typed answers a client submits.
// Password holds a bcrypt hash once stored, never clear text.
type FormData struct {
	SingleTextLine     string     `json:"singleTextLine,omitempty"`
	Number             string     `json:"number,omitempty"`
	Email              string     `json:"email,omitempty"`
	ParagraphText      string     `json:"paragraphText,omitempty"`
	Name               string     `json:"name,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Address            string     `json:"address,omitempty"`
	Date               *time.Time `json:"date,omitempty"`
	URL                string     `json:"url,omitempty"`
	Password           string     `json:"password,omitempty"`
	DocumentAttach     string     `json:"documentAttach,omitempty"`
	RenewalPreferences *bool      `json:"renewalPreferences,omitempty"`
}

// Missing lists the answer fields that are empty, in declaration order
func (f FormData) Missing() []string {
	checks := []struct {
		name  string
		empty bool
	}{
		{"singleTextLine", f.SingleTextLine == ""},
		{"number", f.Number == ""},
		{"email", f.Email == ""},
		{"paragraphText", f.ParagraphText == ""},
		{"name", f.Name == ""},
		{"phone", f.Phone == ""},
		{"address", f.Address == ""},
		{"date", f.Date == nil},
		{"url", f.URL == ""},
		{"password", f.Password == ""},
		{"documentAttach", f.DocumentAttach == ""},
		{"renewalPreferences", f.RenewalPreferences == nil},
	}
	missing := []string{}
	for _, c := range checks {
		if c.empty {
			missing = append(missing, c.name)
		}
	}
	return missing
}

// Merge overlays every non-empty field of patch onto f
func (f FormData) Merge(patch FormData) FormData {
	if patch.SingleTextLine != "" {
		f.SingleTextLine = patch.SingleTextLine
	}
	if patch.Number != "" {
		f.Number = patch.Number
	}
	if patch.Email != "" {
		f.Email = patch.Email
	}
	if patch.ParagraphText != "" {
		f.ParagraphText = patch.ParagraphText
	}
	if patch.Name != "" {
		f.Name = patch.Name
	}
	if patch.Phone != "" {
		f.Phone = patch.Phone
	}
	if patch.Address != "" {
		f.Address = patch.Address
	}
	if patch.Date != nil {
		f.Date = patch.Date
	}
	if patch.URL != "" {
		f.URL = patch.URL
	}
	if patch.Password != "" {
		f.Password = patch.Password
	}
	if patch.DocumentAttach != "" {
		f.DocumentAttach = patch.DocumentAttach
	}
	if patch.RenewalPreferences != nil {
		f.RenewalPreferences = patch.RenewalPreferences
	}
	return f
}

// WantsRenewal reports whether the client opted into automatic renewal
func (f FormData) WantsRenewal() bool {
	return f.RenewalPreferences != nil && *f.RenewalPreferences
}

// AdminRemarks explain a rejection
type AdminRemarks struct {
	RejectionReason string `json:"rejectionReason,omitempty"`
	Description     string `json:"description,omitempty"`
}

// Document is one client submission moving through verification.
// IsVerified mirrors Status == Verified; Version guards concurrent writes.
type Document struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	ClientID       uuid.UUID     `json:"clientID" db:"client_id"`
	ServiceID      *uuid.UUID    `json:"serviceName,omitempty" db:"service_id"`
	FormData       FormData      `json:"formData" db:"form_data"`
	AdminRemarks   AdminRemarks  `json:"adminRemarks" db:"admin_remarks"`
	Status         OutcomeStatus `json:"status" db:"status"`
	TimelineStatus Stage         `json:"timelineStatus" db:"timeline_status"`
	Corrections    []string      `json:"corrections" db:"corrections"`
	MissingFields  []string      `json:"missingFields" db:"missing_fields"`
	IsVerified     bool          `json:"isVerified" db:"is_verified"`
	Version        int64         `json:"version" db:"version"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
}

// NextRenewal returns the first anniversary of the base date that falls after now.
// The base date is FormData.Date when set, otherwise CreatedAt.
func (d *Document) NextRenewal(now time.Time) time.Time {
	base := d.CreatedAt
	if d.FormData.Date != nil {
		base = *d.FormData.Date
	}
	// years are added to base each time so a Feb 29 base keeps its day in leap years
	next := base
	for years := 1; !next.After(now); years++ {
		next = base.AddDate(years, 0, 0)
	}
	return next
}

// documentJSON is the wire form of a Document. The stored secret hash is
// replaced by HasSecret.
type documentJSON struct {
	documentAlias
	HasSecret bool `json:"hasSecret"`
}

type documentAlias Document

func (d Document) wire() documentJSON {
	out := documentJSON{documentAlias: documentAlias(d), HasSecret: d.FormData.Password != ""}
	out.FormData.Password = ""
	return out
}

func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.wire())
}

// RenewalEntry is a verified document due for renewal
type RenewalEntry struct {
	Document
	ClientName      string    `json:"clientName"`
	ClientEmail     string    `json:"clientEmail"`
	NextRenewalDate time.Time `json:"nextRenewalDate"`
}

func (e RenewalEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		documentJSON
		ClientName      string    `json:"clientName"`
		ClientEmail     string    `json:"clientEmail"`
		NextRenewalDate time.Time `json:"nextRenewalDate"`
	}{e.Document.wire(), e.ClientName, e.ClientEmail, e.NextRenewalDate})
}

// TimelineEntry is one row of a client's own document history
type TimelineEntry struct {
	ID             uuid.UUID     `json:"id"`
	ServiceName    string        `json:"serviceName"`
	Status         OutcomeStatus `json:"status"`
	TimelineStatus Stage         `json:"timelineStatus"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// VerifyRequest is the request body for PUT /verify-document/{id}
type VerifyRequest struct {
	Status          string   `json:"status"`
	RejectionReason string   `json:"rejectionReason"`
	Description     string   `json:"description"`
	Corrections     []string `json:"corrections"`
}

// NewDocument is the input for creating a document
type NewDocument struct {
	ClientID  uuid.UUID
	ServiceID *uuid.UUID
	FormData  FormData
}
