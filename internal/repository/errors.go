package repository

import "github.com/pkg/errors"

var (
	ErrAlreadyExists   = errors.New("already exists")
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)
