package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

type mockEventRepo struct {
	filter  models.EventFilter
	created *models.CompanyEvent
	missing bool
}

func (m *mockEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.CompanyEvent, error) {
	m.filter = filter
	return nil, nil
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.CompanyEvent) error {
	m.created = event
	return nil
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	if m.missing {
		return sql.ErrNoRows
	}
	return nil
}

func TestListEventsParsesRange(t *testing.T) {
	repo := &mockEventRepo{}
	svc := NewEventService(repo, nil, nil)

	events, err := svc.List(context.Background(), "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.NotNil(t, events)
	require.NotNil(t, repo.filter.From)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *repo.filter.To)

	_, err = svc.List(context.Background(), "01/02/2024", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.List(context.Background(), "2024-02-01", "2024-01-01")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateEventDefaults(t *testing.T) {
	repo := &mockEventRepo{}
	svc := NewEventService(repo, nil, nil)

	event, err := svc.Create(context.Background(), models.CreateEventRequest{Name: " Open Day ", Date: "2024-05-10"})
	require.NoError(t, err)
	assert.Equal(t, "Open Day", event.Name)
	assert.Equal(t, models.EventTypeCompany, event.Type)
	assert.Nil(t, event.Description)
	assert.Equal(t, 10, event.EventDate.Day())

	_, err = svc.Create(context.Background(), models.CreateEventRequest{Name: "Open Day", Date: "10-05-2024"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), models.CreateEventRequest{Name: "Open Day", Date: "2024-05-10", Type: "PARTY"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDeleteEventMissing(t *testing.T) {
	svc := NewEventService(&mockEventRepo{missing: true}, nil, nil)
	assert.ErrorIs(t, svc.Delete(context.Background(), enrollmentID), appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "17"), appErrors.ErrValidation)
}
