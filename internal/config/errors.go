package config

import "errors"

var (
	// ErrNotFound is returned when a requested profile does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrProfileExists is returned when a profile name is already taken.
	ErrProfileExists = errors.New("profile already exists")
)
