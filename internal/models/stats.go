package models

import "time"

// DashboardStats is the staff dashboard payload.
type DashboardStats struct {
	Courses     CourseStats     `json:"courses"`
	Enrollments EnrollmentStats `json:"enrollments"`
	Subjects    SubjectStats    `json:"subjects"`
	GeneratedAt time.Time       `json:"generated_at"`
}
