package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus is a lifecycle state of a maintenance request.
type RequestStatus string

const (
	StatusNew        RequestStatus = "new"
	StatusAccepted   RequestStatus = "accepted"
	StatusInProgress RequestStatus = "in_progress"
	StatusOnHold     RequestStatus = "on_hold"
	StatusCompleted  RequestStatus = "completed"
	StatusRejected   RequestStatus = "rejected"
	StatusReopened   RequestStatus = "reopened"
	StatusCancelled  RequestStatus = "cancelled"
)

// RequestCategory is descriptive only and plays no part in the workflow.
type RequestCategory string

const (
	CategoryPlumbing   RequestCategory = "plumbing"
	CategoryElectrical RequestCategory = "electrical"
	CategoryRepair     RequestCategory = "repair"
	CategoryCleaning   RequestCategory = "cleaning"
	CategoryIntercom   RequestCategory = "intercom"
	CategoryElevator   RequestCategory = "elevator"
	CategoryHeating    RequestCategory = "heating"
	CategoryOther      RequestCategory = "other"
)

var categoryLabels = []struct {
	Category RequestCategory
	Label    string
}{
	{CategoryPlumbing, "Plumbing"},
	{CategoryElectrical, "Electrical"},
	{CategoryRepair, "Repair"},
	{CategoryCleaning, "Cleaning"},
	{CategoryIntercom, "Intercom"},
	{CategoryElevator, "Elevator"},
	{CategoryHeating, "Heating"},
	{CategoryOther, "Other"},
}

// Categories returns every category in display order.
func Categories() []RequestCategory {
	out := make([]RequestCategory, 0, len(categoryLabels))
	for _, c := range categoryLabels {
		out = append(out, c.Category)
	}
	return out
}

func (c RequestCategory) Valid() bool {
	for _, known := range categoryLabels {
		if known.Category == c {
			return true
		}
	}
	return false
}

func (c RequestCategory) Label() string {
	for _, known := range categoryLabels {
		if known.Category == c {
			return known.Label
		}
	}
	return string(c)
}

// PaymentPending marks a paid service awaiting payment. Later payment
// states are written by billing, not by this service.
const PaymentPending = "pending"

// Request is a maintenance request filed by a resident.
// Status is only ever changed through the workflow state machine.
type Request struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"user,omitempty"`
	Category      RequestCategory  `gorm:"type:varchar(20);not null;index" json:"category"`
	Title         string           `gorm:"type:varchar(255);not null" json:"title"`
	Description   string           `gorm:"type:text" json:"description"`
	Status        RequestStatus    `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	Price         decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"price"` // zero means free of charge
	PaymentStatus string           `gorm:"type:varchar(20)" json:"payment_status"`
	History       []RequestHistory `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE;" json:"history,omitempty"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// RequestHistory is one append-only ledger row: a single status change of a request.
type RequestHistory struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Seq       int64          `gorm:"autoIncrement;not null;index" json:"-"` // insertion order tiebreaker
	RequestID uuid.UUID      `gorm:"type:uuid;not null;index" json:"request_id"`
	OldStatus *RequestStatus `gorm:"type:varchar(20)" json:"old_status"` // nil only for the creation entry
	NewStatus RequestStatus  `gorm:"type:varchar(20);not null" json:"new_status"`
	Comment   string         `gorm:"type:text" json:"comment"`
	ChangedBy *uuid.UUID     `gorm:"type:uuid;index" json:"changed_by"`
	Changer   *User          `gorm:"foreignKey:ChangedBy;constraint:OnDelete:SET NULL;" json:"-"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

// TableName keeps the ledger table name singular, matching the audit trail naming.
func (RequestHistory) TableName() string {
	return "request_history"
}
