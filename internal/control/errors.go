package control

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrInvalidTask  = errors.New("task id and name are required")
	ErrTagNotFound  = errors.New("tag not found")
	ErrInvalidTag   = errors.New("tag name is required")
)
