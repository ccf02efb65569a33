package service

import (
	"errors"
	"fmt"

	"onlinestore/internal/repository"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrGateway              = errors.New("payment provider unavailable")
	ErrMalformedWebhook     = errors.New("malformed webhook payload")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrTransitionNotAllowed = errors.New("payment status transition not allowed")
)

// ValidationError carries a client-facing reason and matches ErrValidation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

var ErrEmptyBasket = &ValidationError{Reason: "basket is empty"}

// notFound hides storage details behind ErrNotFound. Foreign key failures
// count as missing records too.
func notFound(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrForeignKey) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
