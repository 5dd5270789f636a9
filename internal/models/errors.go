package models

import (
	"errors"
	"fmt"
)

// User related errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

// Session related errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	// ErrSessionInvalid covers every reason a request has no usable session.
	// The access gate answers it with a redirect, never an error page.
	ErrSessionInvalid = errors.New("session invalid")
)

// Classification related errors
var (
	ErrInvalidPhotoURL  = errors.New("photo URL must be an http(s) URL or a data URI")
	ErrEmptyModelOutput = errors.New("model returned no usable output")
)

// Pipeline stage names, used in errors, logs and metrics.
const (
	StageClassify = "classify"
	StageDescribe = "describe"
)

// ClassificationError is returned when the classification step fails or
// yields empty or malformed output.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Stage names the pipeline step that failed.
func (e *ClassificationError) Stage() string { return StageClassify }

// DescriptionError is returned when the description step fails or yields
// empty or malformed output.
type DescriptionError struct {
	Species string
	Err     error
}

func (e *DescriptionError) Error() string {
	return fmt.Sprintf("description of %q failed: %v", e.Species, e.Err)
}

func (e *DescriptionError) Unwrap() error { return e.Err }

func (e *DescriptionError) Stage() string { return StageDescribe }

type FileError struct {
	Issue string
}

func (fe FileError) Error() string {
	return fmt.Sprintf("invalid file: %v", fe.Issue)
}
