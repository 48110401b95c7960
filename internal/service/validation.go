package service

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/zyu-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/zyu-enrollment-api/pkg/errors"
)

const minPasswordLength = 8

// NewValidator returns a validator with the domain tags registered:
// password, course_category and priority.
func NewValidator() *validator.Validate {
	v := validator.New()
	registerDomainValidations(v)
	return v
}

func registerDomainValidations(v *validator.Validate) {
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return passwordProblem(fl.Field().String()) == ""
	})
	_ = v.RegisterValidation("course_category", func(fl validator.FieldLevel) bool {
		switch models.CourseCategory(fl.Field().String()) {
		case models.CourseCategoryDiploma, models.CourseCategoryDegree, models.CourseCategoryMaster:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		switch models.TodoPriority(fl.Field().String()) {
		case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
			return true
		}
		return false
	})
}

func ensureValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return NewValidator()
	}
	registerDomainValidations(v)
	return v
}

// passwordProblem returns a user-facing reason the password is too weak, or "".
// Length counts characters; the letter and digit rules accept ASCII only.
func passwordProblem(password string) string {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "Password must be at least 8 characters long."
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
			letter = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}
	if !letter || !digit {
		return "Password must contain both letters and numbers."
	}
	return ""
}

func checkPassword(password string) error {
	if msg := passwordProblem(password); msg != "" {
		return appErrors.Clone(appErrors.ErrValidation, msg)
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// normalizeEmail is the stored form of an address: trimmed and lower-cased.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
