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

const courseColumns = `id, name, category, duration, price, description, status, created_at, updated_at`

// CourseRepository manages courses and their subject links.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListAvailable returns AVAILABLE courses matching the filter.
func (r *CourseRepository) ListAvailable(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	conditions := []string{"status = 'AVAILABLE'"}
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if name := strings.TrimSpace(filter.Name); name != "" {
		add("name ILIKE $%d", "%"+escapeLike(name)+"%")
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.MinDuration != nil {
		add("duration >= $%d", *filter.MinDuration)
	}
	if filter.MaxDuration != nil {
		add("duration <= $%d", *filter.MaxDuration)
	}
	if filter.MinPrice != nil {
		add("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price <= $%d", *filter.MaxPrice)
	}

	orderBy := "name ASC"
	switch strings.ToLower(filter.PriceSort) {
	case "asc":
		orderBy = "price ASC, name ASC"
	case "desc":
		orderBy = "price DESC, name ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM courses WHERE %s ORDER BY %s", courseColumns, strings.Join(conditions, " AND "), orderBy)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// ListAll returns every course ordered by name.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY name ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// SubjectsForCourses returns the subjects linked to any of the given courses, ordered by name.
func (r *CourseRepository) SubjectsForCourses(ctx context.Context, courseIDs []string) ([]models.CourseSubject, error) {
	if len(courseIDs) == 0 {
		return []models.CourseSubject{}, nil
	}
	query, args, err := sqlx.In(`SELECT cs.course_id, s.id, s.name, s.duration, s.status, s.created_at, s.updated_at
FROM course_subjects cs JOIN subjects s ON s.id = cs.subject_id
WHERE cs.course_id IN (?) ORDER BY s.name ASC`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build course subjects query: %w", err)
	}
	var rows []models.CourseSubject
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list course subjects: %w", err)
	}
	return rows, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	if course.Status == "" {
		course.Status = models.StatusAvailable
	}
	const query = `INSERT INTO courses (id, name, category, duration, price, description, status, created_at, updated_at)
VALUES (:id, :name, :category, :duration, :price, :description, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return wrapWrite("create course", err)
	}
	return nil
}

// Update changes the editable course fields. The new duration must still cover the hours
// already assigned; the check and the write share one locked transaction.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update course: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id string
	if err = tx.GetContext(ctx, &id, `SELECT id FROM courses WHERE id = $1 FOR UPDATE`, course.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}
	var assigned int
	if err = tx.GetContext(ctx, &assigned, `SELECT COALESCE(SUM(s.duration), 0) FROM course_subjects cs JOIN subjects s ON s.id = cs.subject_id WHERE cs.course_id = $1`, course.ID); err != nil {
		return fmt.Errorf("sum course hours: %w", err)
	}
	if assigned > course.Duration {
		err = &CapacityError{Assigned: assigned, Limit: course.Duration}
		return err
	}

	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = $2, category = $3, duration = $4, price = $5, description = $6, updated_at = $7 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query, course.ID, course.Name, course.Category, course.Duration, course.Price, course.Description, course.UpdatedAt); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update course: %w", err)
	}
	return nil
}

// SetStatus flips availability. Returns sql.ErrNoRows for an unknown id.
func (r *CourseRepository) SetStatus(ctx context.Context, id string, status models.AvailabilityStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set course status: %w", err)
	}
	return requireAffected(res, "set course status")
}

// AddSubject links a subject under a row lock on the course so concurrent additions cannot
// jointly exceed the course duration. Returns *CapacityError when it would, and ErrDuplicate
// when the link already exists.
func (r *CourseRepository) AddSubject(ctx context.Context, courseID, subjectID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add subject: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var limit int
	if err = tx.GetContext(ctx, &limit, `SELECT duration FROM courses WHERE id = $1 FOR UPDATE`, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}
	var adding int
	if err = tx.GetContext(ctx, &adding, `SELECT duration FROM subjects WHERE id = $1`, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("load subject: %w", err)
	}
	var assigned int
	if err = tx.GetContext(ctx, &assigned, `SELECT COALESCE(SUM(s.duration), 0) FROM course_subjects cs JOIN subjects s ON s.id = cs.subject_id WHERE cs.course_id = $1`, courseID); err != nil {
		return fmt.Errorf("sum course hours: %w", err)
	}
	if assigned+adding > limit {
		err = &CapacityError{Assigned: assigned, Adding: adding, Limit: limit}
		return err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO course_subjects (course_id, subject_id) VALUES ($1, $2)`, courseID, subjectID); err != nil {
		err = wrapWrite("link subject", err)
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit add subject: %w", err)
	}
	return nil
}

// RemoveSubject unlinks a subject. Returns sql.ErrNoRows when no link existed.
func (r *CourseRepository) RemoveSubject(ctx context.Context, courseID, subjectID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_subjects WHERE course_id = $1 AND subject_id = $2`, courseID, subjectID)
	if err != nil {
		return fmt.Errorf("unlink subject: %w", err)
	}
	return requireAffected(res, "unlink subject")
}

// Popular returns courses ranked by approved enrollments.
func (r *CourseRepository) Popular(ctx context.Context, limit int) ([]models.PopularCourse, error) {
	if limit <= 0 {
		limit = 6
	}
	const query = `SELECT c.id, c.name, c.category, c.duration, c.price, c.description, COUNT(e.id) AS approved
FROM enrollments e JOIN courses c ON c.id = e.course_id
WHERE e.status = 'APPROVED'
GROUP BY c.id
ORDER BY approved DESC, c.name ASC
LIMIT $1`
	var rows []struct {
		models.CourseSummary
		Approved int `db:"approved"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list popular courses: %w", err)
	}
	out := make([]models.PopularCourse, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.PopularCourse{Course: row.CourseSummary, Count: row.Approved})
	}
	return out, nil
}

// Stats counts courses, subjects and approved enrollments.
func (r *CourseRepository) Stats(ctx context.Context) (*models.CourseStats, error) {
	const query = `SELECT
    (SELECT COUNT(*) FROM courses) AS total_courses,
    (SELECT COUNT(*) FROM subjects) AS total_subjects,
    (SELECT COUNT(*) FROM enrollments WHERE status = 'APPROVED') AS active_enrollments`
	var stats models.CourseStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("course stats: %w", err)
	}
	return &stats, nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
