// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema in internal/database.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an auditable message addressed to one account.
// Write-once except for IsRead.
type Notification struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	AccountID   uuid.UUID  `json:"userId" db:"account_id"`
	DocumentID  *uuid.UUID `json:"documentId,omitempty" db:"document_id"`
	ComplaintID *uuid.UUID `json:"complaintId,omitempty" db:"complaint_id"`
	Message     string     `json:"message" db:"message"`
	IsRead      bool       `json:"isRead" db:"is_read"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// NotificationRequest is the request body for creating a notification directly
type NotificationRequest struct {
	UserID      string `json:"userId"`
	DocumentID  string `json:"documentId,omitempty"`
	ComplaintID string `json:"complaintId,omitempty"`
	Message     string `json:"message"`
}

// ComplaintSubject is one of the fixed complaint categories
type ComplaintSubject string

const (
	SubjectKYC        ComplaintSubject = "KYC Management"
	SubjectBRN        ComplaintSubject = "BRN Tracking"
	SubjectCompliance ComplaintSubject = "Compliance Documentation"
	SubjectRegulatory ComplaintSubject = "Regulatory Monitoring"
)

// ComplaintSubjects lists every accepted subject
var ComplaintSubjects = []ComplaintSubject{SubjectKYC, SubjectBRN, SubjectCompliance, SubjectRegulatory}

// ValidComplaintSubject reports whether s is an accepted subject
func ValidComplaintSubject(s string) bool {
	for _, subj := range ComplaintSubjects {
		if string(subj) == s {
			return true
		}
	}
	return false
}

const (
	ComplaintPending  = "pending"
	ComplaintVerified = "verified"
)

// Complaint is a compliance complaint filed by an authenticated account
type Complaint struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	SubmitterID    uuid.UUID        `json:"submitterId" db:"submitter_id"`
	FirstName      string           `json:"firstName" db:"first_name"`
	LastName       string           `json:"lastName" db:"last_name"`
	Email          string           `json:"email" db:"email"`
	ContactNumber  string           `json:"contactNumber" db:"contact_number"`
	Subject        ComplaintSubject `json:"complaintSubject" db:"subject"`
	Details        string           `json:"complaintDetails" db:"details"`
	FileAttachment string           `json:"fileAttachment,omitempty" db:"file_attachment"`
	Status         string           `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" db:"updated_at"`
}

// ComplaintSubmission is the request body for filing a complaint
type ComplaintSubmission struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactNumber"`
	Subject       string `json:"complaintSubject"`
	Details       string `json:"complaintDetails"`
}

// Meeting is a scheduled consultation. No two meetings share a date and time.
type Meeting struct {
	ID            uuid.UUID `json:"id" db:"id"`
	RequesterID   uuid.UUID `json:"requesterId" db:"requester_id"`
	FirstName     string    `json:"firstName" db:"first_name"`
	LastName      string    `json:"lastName" db:"last_name"`
	Email         string    `json:"email" db:"email"`
	ContactNumber string    `json:"contactNumber" db:"contact_number"`
	PreferredDate string    `json:"preferredDate" db:"preferred_date"` // YYYY-MM-DD
	PreferredTime string    `json:"preferredTime" db:"preferred_time"`
	Description   string    `json:"description" db:"description"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// MeetingRequest is the request body for scheduling a meeting
type MeetingRequest struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ContactNumber string `json:"contactNumber"`
	PreferredDate string `json:"preferredDate"`
	PreferredTime string `json:"preferredTime"`
	Description   string `json:"description"`
}

// Role is a named authorization role managed by administrators
type Role struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CatalogService is an advertised service offering
type CatalogService struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ServiceName string     `json:"serviceName" db:"service_name"`
	Description string     `json:"description" db:"description"`
	Image       string     `json:"image,omitempty" db:"image"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// Task priorities for role assignments
var TaskPriorities = map[string]bool{"High": true, "Medium": true, "Low": true}

// RoleAssignment assigns a role and a task to the account owning Email
type RoleAssignment struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	Role            string    `json:"role" db:"role"`
	TaskDescription string    `json:"taskDescription" db:"task_description"`
	StartDate       time.Time `json:"startDate" db:"start_date"`
	DueDate         time.Time `json:"dueDate" db:"due_date"`
	Priority        string    `json:"priority" db:"priority"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// RoleAssignmentRequest is the request body for creating or updating an assignment
type RoleAssignmentRequest struct {
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	TaskDescription string     `json:"taskDescription"`
	StartDate       *time.Time `json:"startDate"`
	DueDate         *time.Time `json:"dueDate"`
	Priority        string     `json:"priority"`
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
	Redis    string `json:"redis,omitempty"`
}
