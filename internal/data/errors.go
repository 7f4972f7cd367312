package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrProfileIDRequired = errors.New("profile id is required")
	ErrInvalidRole       = errors.New("invalid profile role")
)
