package models

import (
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an application.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentPending     EnrollmentStatus = "PENDING"
	EnrollmentApproved    EnrollmentStatus = "APPROVED"
	EnrollmentDisapproved EnrollmentStatus = "DISAPPROVED"
)

// enrollmentTransitions lists the allowed moves. The empty status is "no application yet".
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	"":                    {EnrollmentPending},
	EnrollmentPending:     {EnrollmentApproved, EnrollmentDisapproved},
	EnrollmentDisapproved: {EnrollmentPending},
}

// CanTransition reports whether an enrollment may move from one status to another.
func CanTransition(from, to EnrollmentStatus) bool {
	for _, next := range enrollmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From EnrollmentStatus
	To   EnrollmentStatus
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "NONE"
	}
	return fmt.Sprintf("enrollment cannot move from %s to %s", from, e.To)
}

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentPending, EnrollmentApproved, EnrollmentDisapproved:
		return true
	}
	return false
}

// Enrollment is a student's application to a course.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	EnrolledAt     time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	GradeImage     string           `db:"grade_image" json:"grade_image"`
	GradeThumbnail string           `db:"grade_thumbnail" json:"grade_thumbnail,omitempty"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName    string         `db:"student_name" json:"student_name"`
	StudentEmail   string         `db:"student_email" json:"student_email"`
	CourseName     string         `db:"course_name" json:"course_name"`
	CourseCategory CourseCategory `db:"course_category" json:"course_category"`
	CourseDuration int            `db:"course_duration" json:"course_duration"`
	CoursePrice    float64        `db:"course_price" json:"course_price"`
}

// MyCourse is an approved enrollment with the course's subjects.
type MyCourse struct {
	EnrollmentDetail
	Subjects []Subject `json:"subjects"`
}

// PendingApplication is what staff review: the application, the target course with its
// subjects and the applicant's approved history.
type PendingApplication struct {
	EnrollmentDetail
	CourseSubjects  []Subject          `json:"course_subjects"`
	ApprovedHistory []EnrollmentDetail `json:"approved_history"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string           `form:"student_id"`
	CourseID  string           `form:"course_id"`
	Status    EnrollmentStatus `form:"status"`
	Page      int              `form:"page"`
	PageSize  int              `form:"page_size"`
	SortBy    string           `form:"sort_by"`
	SortOrder string           `form:"sort_order"`
}

// EnrollmentStats counts applications by status.
type EnrollmentStats struct {
	Pending     int `db:"pending" json:"pending"`
	Approved    int `db:"approved" json:"approved"`
	Disapproved int `db:"disapproved" json:"disapproved"`
	Total       int `db:"total" json:"total"`
}

// Certificate is an uploaded grade certificate ready to be stored.
type Certificate struct {
	Filename string
	Size     int64
	Data     []byte
}

// CertificateLink is a signed, expiring download link.
type CertificateLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
