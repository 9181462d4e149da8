package app

import "errors"

var (
	// ErrUserNotFound is returned when no account exists for a phone number.
	ErrUserNotFound = errors.New("user not found")

	// ErrCourseNotFound is returned for an unknown course id.
	ErrCourseNotFound = errors.New("course not found")

	// ErrInvalidCode is returned when a submitted code does not match the
	// most recently issued one.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrUnauthorized is returned for missing, malformed, tampered, or
	// expired session tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyEnrolled is returned when the (user, course) pair already has
	// an enrollment row.
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")

	// ErrDeliveryFailed is returned when the SMS gateway rejects a send.
	// The code is still persisted, so a retry issues a fresh one.
	ErrDeliveryFailed = errors.New("failed to deliver verification code")

	ErrPhoneRequired      = errors.New("phone number is required")
	ErrCodeRequired       = errors.New("verification code is required")
	ErrUsernameRequired   = errors.New("username is required")
	ErrCourseNameRequired = errors.New("course name is required")
)
