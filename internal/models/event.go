package models

import "time"

// EventType distinguishes internal events from public observances.
type EventType string

const (
	EventTypeCompany    EventType = "COMPANY"
	EventTypeObservance EventType = "OBSERVANCE"
)

// CompanyEvent is a dated entry on the staff calendar.
type CompanyEvent struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	EventDate   time.Time `db:"event_date" json:"event_date"`
	Description *string   `db:"description" json:"description"`
	Type        EventType `db:"type" json:"type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CreateEventRequest adds an event. Date is YYYY-MM-DD.
type CreateEventRequest struct {
	Name        string    `json:"name" validate:"required,max=255"`
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	Description string    `json:"description"`
	Type        EventType `json:"type" validate:"omitempty,oneof=COMPANY OBSERVANCE"`
}

// EventFilter bounds the listing by date, inclusive.
type EventFilter struct {
	From *time.Time
	To   *time.Time
}
