package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

const subjectColumns = `id, name, duration, status, created_at, updated_at`

// SubjectRepository provides persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects ordered by name, optionally only AVAILABLE ones.
func (r *SubjectRepository) List(ctx context.Context, availableOnly bool) ([]models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects`
	if availableOnly {
		query += ` WHERE status = 'AVAILABLE'`
	}
	query += ` ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// CourseLinks returns every subject→course link with the course name.
func (r *SubjectRepository) CourseLinks(ctx context.Context) ([]models.SubjectCourseLink, error) {
	const query = `SELECT cs.subject_id, c.id AS course_id, c.name AS course_name
FROM course_subjects cs JOIN courses c ON c.id = cs.course_id ORDER BY c.name ASC`
	var links []models.SubjectCourseLink
	if err := r.db.SelectContext(ctx, &links, query); err != nil {
		return nil, fmt.Errorf("list subject course links: %w", err)
	}
	return links, nil
}

// FindByID returns a subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	if subject.Status == "" {
		subject.Status = models.StatusAvailable
	}
	const query = `INSERT INTO subjects (id, name, duration, status, created_at, updated_at) VALUES (:id, :name, :duration, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return wrapWrite("create subject", err)
	}
	return nil
}

// Update changes name and duration. Returns sql.ErrNoRows for an unknown id.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `UPDATE subjects SET name = $2, duration = $3, updated_at = $4 WHERE id = $1`, subject.ID, subject.Name, subject.Duration, subject.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return requireAffected(res, "update subject")
}

// CoursesOverflowing lists courses that would exceed their duration if the subject's
// duration became newDuration.
func (r *SubjectRepository) CoursesOverflowing(ctx context.Context, subjectID string, newDuration int) ([]models.CourseRef, error) {
	const query = `SELECT c.id, c.name
FROM courses c JOIN course_subjects cs ON cs.course_id = c.id
WHERE cs.subject_id = $1
  AND $2 + (SELECT COALESCE(SUM(s.duration), 0)
            FROM course_subjects cs2 JOIN subjects s ON s.id = cs2.subject_id
            WHERE cs2.course_id = c.id AND cs2.subject_id <> $1) > c.duration
ORDER BY c.name ASC`
	var refs []models.CourseRef
	if err := r.db.SelectContext(ctx, &refs, query, subjectID, newDuration); err != nil {
		return nil, fmt.Errorf("check subject duration against courses: %w", err)
	}
	return refs, nil
}

// SetStatus flips availability. Returns sql.ErrNoRows for an unknown id.
func (r *SubjectRepository) SetStatus(ctx context.Context, id string, status models.AvailabilityStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subjects SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set subject status: %w", err)
	}
	return requireAffected(res, "set subject status")
}

// CountCourses returns how many courses use the subject.
func (r *SubjectRepository) CountCourses(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM course_subjects WHERE subject_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count subject courses: %w", err)
	}
	return count, nil
}

// DeleteUnused removes the subject only while no course links to it. It reports whether a
// row was deleted; false means the subject is missing or still in use.
func (r *SubjectRepository) DeleteUnused(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM subjects WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM course_subjects WHERE subject_id = $1)`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subject rows: %w", err)
	}
	return affected > 0, nil
}

// Stats counts subjects by usage.
func (r *SubjectRepository) Stats(ctx context.Context) (*models.SubjectStats, error) {
	const query = `SELECT
    (SELECT COUNT(*) FROM subjects) AS total_subjects,
    (SELECT COUNT(DISTINCT subject_id) FROM course_subjects) AS subjects_in_use`
	var stats models.SubjectStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("subject stats: %w", err)
	}
	stats.UnusedSubjects = stats.TotalSubjects - stats.SubjectsInUse
	return &stats, nil
}
