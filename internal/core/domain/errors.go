package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("caller is not the registry owner")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrRegistryNotFound = errors.New("registry not found")
	ErrRegistryExists   = errors.New("registry already exists")
)

// AuthorizationError is returned when a non-owner attempts a write.
type AuthorizationError struct {
	Caller Address
	Owner  Address
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("caller %s is not the registry owner", e.Caller)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}
