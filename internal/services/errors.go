package services

import (
	"errors"

	"github.com/yungbote/dialogforge-backend/internal/jobs/dialogjob"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotRestartable  = dialogjob.ErrNotRestartable
)
