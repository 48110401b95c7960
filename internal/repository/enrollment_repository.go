package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
)

const (
	enrollmentColumns = `id, student_id, course_id, enrolled_at, status, grade_image, grade_thumbnail, updated_at`

	enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.status, e.grade_image, e.grade_thumbnail, e.updated_at,
        u.name AS student_name, u.email AS student_email,
        c.name AS course_name, c.category AS course_category, c.duration AS course_duration, c.price AS course_price
        FROM enrollments e
        JOIN users u ON u.id = e.student_id
        JOIN courses c ON c.id = e.course_id`
)

// EnrollmentRepository handles persistence of course applications.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "u.name",
		"course_name":  "c.name",
		"status":       "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`%s%s ORDER BY %s %s LIMIT %d OFFSET %d`, enrollmentDetailSelect, clause, orderBy, order, size, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM enrollments e%s`, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListAll returns every enrollment with details, optionally by status, newest first.
func (r *EnrollmentRepository) ListAll(ctx context.Context, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect
	var args []interface{}
	if status != "" {
		query += ` WHERE e.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY e.enrolled_at DESC`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list all enrollments: %w", err)
	}
	return rows, nil
}

// ListByStudent returns the student's enrollments newest first, optionally by status.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.student_id = $1`
	args := []interface{}{studentID}
	if status != "" {
		query += ` AND e.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY e.enrolled_at DESC`
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return rows, nil
}

// ApprovedForStudents returns APPROVED enrollments of the given students.
func (r *EnrollmentRepository) ApprovedForStudents(ctx context.Context, studentIDs []string) ([]models.EnrollmentDetail, error) {
	if len(studentIDs) == 0 {
		return []models.EnrollmentDetail{}, nil
	}
	query, args, err := sqlx.In(enrollmentDetailSelect+` WHERE e.status = 'APPROVED' AND e.student_id IN (?) ORDER BY e.enrolled_at DESC`, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build approved history query: %w", err)
	}
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list approved history: %w", err)
	}
	return rows, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindByStudentCourse returns the student's application for a course.
func (r *EnrollmentRepository) FindByStudentCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student enrollment: %w", err)
	}
	return &enrollment, nil
}

// Create persists a new application. The (student, course) unique key turns a concurrent
// duplicate into ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentPending
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, status, grade_image, grade_thumbnail, updated_at)
        VALUES (:id, :student_id, :course_id, :enrolled_at, :status, :grade_image, :grade_thumbnail, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return wrapWrite("create enrollment", err)
	}
	return nil
}

// Resubmit overwrites a DISAPPROVED application in place with a fresh certificate and
// date, moving it back to PENDING. ErrStaleState means it was no longer DISAPPROVED.
func (r *EnrollmentRepository) Resubmit(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()
	const query = `UPDATE enrollments SET status = 'PENDING', grade_image = $2, grade_thumbnail = $3, enrolled_at = $4, updated_at = $4
        WHERE id = $1 AND status = 'DISAPPROVED'`
	res, err := r.db.ExecContext(ctx, query, enrollment.ID, enrollment.GradeImage, enrollment.GradeThumbnail, now)
	if err != nil {
		return fmt.Errorf("resubmit enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resubmit enrollment rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleState
	}
	enrollment.Status = models.EnrollmentPending
	enrollment.EnrolledAt = now
	enrollment.UpdatedAt = now
	return nil
}

// Transition moves an enrollment from one status to another as a compare-and-set.
// ErrStaleState means the stored status was no longer from.
func (r *EnrollmentRepository) Transition(ctx context.Context, id string, from, to models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transition enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition enrollment rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleState
	}
	return nil
}

// Stats counts enrollments by status.
func (r *EnrollmentRepository) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	const query = `SELECT
    COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
    COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
    COUNT(*) FILTER (WHERE status = 'DISAPPROVED') AS disapproved,
    COUNT(*) AS total
    FROM enrollments`
	var stats models.EnrollmentStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("enrollment stats: %w", err)
	}
	return &stats, nil
}
