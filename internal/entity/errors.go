package entity

import (
	"errors"
	"fmt"
)

var (
	// Catalog errors
	ErrTrainNotFound      = errors.New("train not found")
	ErrClassNotSupported  = errors.New("class not offered by this train")
	ErrInvalidTravelDate  = errors.New("invalid travel date")
	ErrTravelDateInPast   = errors.New("travel date cannot be in the past")
	ErrProfileNotFound    = errors.New("saved profile not found")
	ErrTooManyProfiles    = errors.New("saved profile limit reached")
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrSeatNotFound       = errors.New("seat not found in layout")
	ErrSeatUnavailable    = errors.New("seat is not available")
	ErrPassengerNotFound  = errors.New("passenger not found")
	ErrAssistantDisabled  = errors.New("assistant is not configured")
	ErrAssistantMalformed = errors.New("assistant returned malformed output")

	// Booking errors
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingAlreadyExists = errors.New("booking already exists")
	ErrCapacityExceeded     = errors.New("passenger count exceeds selected seats")
	ErrPassengerMismatch    = errors.New("passenger count must equal selected seats")
	ErrNoSeatsSelected      = errors.New("no seats selected")
	ErrTooManySeats         = errors.New("too many seats selected")
	ErrInvalidTransition    = errors.New("invalid booking state transition")
	ErrBookingCompleted     = errors.New("completed booking cannot be cancelled")

	// User errors
	ErrUserNotFound     = errors.New("user not found")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrEmailNotVerified = errors.New("email address is not verified")

	// General errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
	ErrForbidden     = errors.New("forbidden operation")
)

// ErrorKind classifies failures the way clients react to them
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindCapacityExceeded ErrorKind = "capacity_exceeded"
	KindAuthorization    ErrorKind = "authorization"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindStoreWrite       ErrorKind = "store_write_failure"
	KindNotFound         ErrorKind = "not_found"
	KindUnavailable      ErrorKind = "unavailable"
	KindInternal         ErrorKind = "internal"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable is true only for store write failures: the client may retry manually
func (e *AppError) Retryable() bool {
	return e.Kind == KindStoreWrite
}

func NewValidationError(message string, err error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Err: err}
}

func NewCapacityError(err error) *AppError {
	return &AppError{Kind: KindCapacityExceeded, Message: "capacity exceeded", Err: err}
}

func NewAuthorizationError(message string) *AppError {
	return &AppError{Kind: KindAuthorization, Message: message, Err: ErrForbidden}
}

func NewStoreWriteError(err error) *AppError {
	return &AppError{Kind: KindStoreWrite, Message: "could not save booking, please retry", Err: err}
}

func NewNotFoundError(err error) *AppError {
	return &AppError{Kind: KindNotFound, Message: "not found", Err: err}
}

// KindOf resolves the kind of any error, falling back on known sentinels
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	switch {
	case errors.Is(err, ErrTrainNotFound), errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrSeatNotFound), errors.Is(err, ErrPassengerNotFound),
		errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrPassengerMismatch),
		errors.Is(err, ErrSeatUnavailable), errors.Is(err, ErrTooManySeats),
		errors.Is(err, ErrTooManyProfiles):
		return KindCapacityExceeded
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrEmailNotVerified):
		return KindAuthorization
	case errors.Is(err, ErrAssistantDisabled), errors.Is(err, ErrAssistantMalformed):
		return KindUnavailable
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidTravelDate),
		errors.Is(err, ErrTravelDateInPast), errors.Is(err, ErrClassNotSupported),
		errors.Is(err, ErrNoSeatsSelected), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrBookingCompleted):
		return KindValidation
	}
	return KindInternal
}
