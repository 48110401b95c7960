package models

import "time"

// Subject is a unit of study assignable to courses. Duration is in credit hours.
type Subject struct {
	ID        string             `db:"id" json:"id"`
	Name      string             `db:"name" json:"name"`
	Duration  int                `db:"duration" json:"duration"`
	Status    AvailabilityStatus `db:"status" json:"status"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// CourseSubject is a row of the course/subject link table joined with the subject.
type CourseSubject struct {
	CourseID string `db:"course_id" json:"course_id"`
	Subject
}

// CourseRef is a minimal course reference.
type CourseRef struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// SubjectWithCourses lists a subject and the courses using it.
type SubjectWithCourses struct {
	Subject
	Courses []CourseRef `json:"courses"`
}

// SubjectCourseLink is a flattened subject→course row.
type SubjectCourseLink struct {
	SubjectID  string `db:"subject_id"`
	CourseID   string `db:"course_id"`
	CourseName string `db:"course_name"`
}

// UpsertSubjectRequest creates or updates a subject.
type UpsertSubjectRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Duration int    `json:"duration" validate:"required,gt=0"`
}

// SubjectStats summarises subject usage.
type SubjectStats struct {
	TotalSubjects  int `db:"total_subjects" json:"total_subjects"`
	SubjectsInUse  int `db:"subjects_in_use" json:"subjects_in_use"`
	UnusedSubjects int `db:"unused_subjects" json:"unused_subjects"`
}
