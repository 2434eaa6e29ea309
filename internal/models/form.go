package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FormField is one field definition with its layout on the rendered form
type FormField struct {
	Type        string          `json:"type,omitempty"`
	Label       string          `json:"label,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Width       float64         `json:"width,omitempty"`
	Height      float64         `json:"height,omitempty"`
	Top         float64         `json:"top,omitempty"`
	Left        float64         `json:"left,omitempty"`
}

// Form is a service template sent to clients
type Form struct {
	ID                 uuid.UUID   `json:"id" db:"id"`
	ServiceName        string      `json:"servicename" db:"service_name"`
	ServiceDescription string      `json:"serviceDescription" db:"service_description"`
	Fields             []FormField `json:"fields" db:"fields"`
	LastSentTo         string      `json:"lastSentTo,omitempty" db:"last_sent_to"`
	CreatedAt          time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time   `json:"updatedAt" db:"updated_at"`
}

// FormInput is the request body for creating or updating a form
type FormInput struct {
	ServiceName        string      `json:"servicename"`
	ServiceDescription string      `json:"serviceDescription"`
	Fields             []FormField `json:"fields"`
}

// SendFormRequest dispatches a form to a client by email
type SendFormRequest struct {
	Email       string `json:"email"`
	ServiceName string `json:"serviceName"`
}

// Intake request statuses
const (
	IntakePending   = "pending"
	IntakeActive    = "active"
	IntakeInactive  = "inactive"
	IntakeCompleted = "completed"
)

// IntakeStatuses holds every accepted intake status
var IntakeStatuses = map[string]bool{
	IntakePending:   true,
	IntakeActive:    true,
	IntakeInactive:  true,
	IntakeCompleted: true,
}

// IntakeRequest is a client-service request, from a registered client or a walk-in
type IntakeRequest struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	ClientName         string    `json:"clientName" db:"client_name"`
	ClientEmail        string    `json:"clientemail" db:"client_email"`
	ClientNumber       string    `json:"clientnumber" db:"client_number"`
	ServiceName        string    `json:"serviceName" db:"service_name"`
	ServiceDescription string    `json:"serviceDescription,omitempty" db:"service_description"`
	Status             string    `json:"status" db:"status"`
	IsRegistered       bool      `json:"isRegistered" db:"is_registered"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}

// IntakeInput is the request body for creating an intake request
type IntakeInput struct {
	ClientName         string `json:"clientName"`
	ClientEmail        string `json:"clientemail"`
	ClientNumber       string `json:"clientnumber"`
	ServiceName        string `json:"serviceName"`
	ServiceDescription string `json:"serviceDescription"`
	Status             string `json:"status"`
}
