package models

import "time"

// CourseCategory classifies courses by award level.
type CourseCategory string

const (
	CourseCategoryDiploma CourseCategory = "DIPLOMA"
	CourseCategoryDegree  CourseCategory = "DEGREE"
	CourseCategoryMaster  CourseCategory = "MASTER"
)

// AvailabilityStatus is shared by courses and subjects.
type AvailabilityStatus string

const (
	StatusAvailable   AvailabilityStatus = "AVAILABLE"
	StatusUnavailable AvailabilityStatus = "UNAVAILABLE"
)

// Course is an offered programme. Duration is in credit hours.
type Course struct {
	ID          string             `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	Category    CourseCategory     `db:"category" json:"category"`
	Duration    int                `db:"duration" json:"duration"`
	Price       float64            `db:"price" json:"price"`
	Description string             `db:"description" json:"description"`
	Status      AvailabilityStatus `db:"status" json:"status"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// CourseWithSubjects bundles a course and its assigned subjects.
type CourseWithSubjects struct {
	Course
	Subjects       []Subject `json:"subjects"`
	TotalHours     int       `json:"total_hours"`
	RemainingHours int       `json:"remaining_hours"`
}

// CourseSummary is the public lookup projection.
type CourseSummary struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Category    CourseCategory `db:"category" json:"category"`
	Duration    int            `db:"duration" json:"duration"`
	Price       float64        `db:"price" json:"price"`
	Description string         `db:"description" json:"description"`
}

// CourseFilter narrows the public catalog.
type CourseFilter struct {
	Name        string         `form:"name" json:"name,omitempty"`
	Category    CourseCategory `form:"category" json:"category,omitempty" validate:"omitempty,course_category"`
	MinDuration *int           `form:"min_duration" json:"min_duration,omitempty" validate:"omitempty,gte=0"`
	MaxDuration *int           `form:"max_duration" json:"max_duration,omitempty" validate:"omitempty,gte=0"`
	MinPrice    *float64       `form:"min_price" json:"min_price,omitempty" validate:"omitempty,gte=0"`
	MaxPrice    *float64       `form:"max_price" json:"max_price,omitempty" validate:"omitempty,gte=0"`
	PriceSort   string         `form:"price_sort" json:"price_sort,omitempty" validate:"omitempty,oneof=asc desc"`
}

// UpsertCourseRequest creates or updates a course.
type UpsertCourseRequest struct {
	Name        string         `json:"name" validate:"required,max=255"`
	Description string         `json:"description" validate:"required"`
	Duration    int            `json:"duration" validate:"required,gt=0"`
	Price       float64        `json:"price" validate:"gte=0"`
	Category    CourseCategory `json:"category" validate:"required,course_category"`
}

// SetStatusRequest toggles availability.
type SetStatusRequest struct {
	Status AvailabilityStatus `json:"status" validate:"required,oneof=AVAILABLE UNAVAILABLE"`
}

// CourseSubjectRequest links a subject to a course.
type CourseSubjectRequest struct {
	SubjectID string `json:"subject_id" validate:"required,uuid"`
}

// PopularCourse pairs a course with its approved enrollment count.
type PopularCourse struct {
	Course CourseSummary `json:"course"`
	Count  int           `json:"count"`
}

// CourseStats summarises the catalogue.
type CourseStats struct {
	TotalCourses      int `db:"total_courses" json:"total_courses"`
	TotalSubjects     int `db:"total_subjects" json:"total_subjects"`
	ActiveEnrollments int `db:"active_enrollments" json:"active_enrollments"`
}

// CourseSubjectList is the public "subjects of a course" view.
type CourseSubjectList struct {
	CourseID   string    `json:"course_id"`
	CourseName string    `json:"course_name"`
	Subjects   []Subject `json:"subjects"`
}
