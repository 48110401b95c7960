package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.CompanyEvent, error)
	Create(ctx context.Context, event *models.CompanyEvent) error
	Delete(ctx context.Context, id string) error
}

// EventService manages the staff calendar.
type EventService struct {
	repo      eventRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs an EventService.
func NewEventService(repo eventRepository, validate *validator.Validate, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, validator: ensureValidator(validate), logger: logger}
}

// List returns events between from and to (YYYY-MM-DD, both optional) by date.
func (s *EventService) List(ctx context.Context, from, to string) ([]models.CompanyEvent, error) {
	var filter models.EventFilter
	var err error
	if filter.From, err = parseOptionalDate(from, "from"); err != nil {
		return nil, err
	}
	if filter.To, err = parseOptionalDate(to, "to"); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list events")
	}
	if events == nil {
		events = []models.CompanyEvent{}
	}
	return events, nil
}

// Create adds an event. The type defaults to COMPANY.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest) (*models.CompanyEvent, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "Event name and a YYYY-MM-DD date are required")
	}
	date, _ := time.Parse(dateLayout, req.Date)
	event := &models.CompanyEvent{
		Name:      req.Name,
		EventDate: date,
		Type:      req.Type,
	}
	if event.Type == "" {
		event.Type = models.EventTypeCompany
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		event.Description = &desc
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, internalError(err, "failed to create event")
	}
	return event, nil
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if _, err := parseID(id, "Invalid event id"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Event not found")
		}
		return internalError(err, "failed to delete event")
	}
	return nil
}

func parseOptionalDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, validationError(err, field+" must be a YYYY-MM-DD date")
	}
	return &parsed, nil
}
