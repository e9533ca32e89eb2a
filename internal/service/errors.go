package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid post request")
	ErrUnauthorized        = errors.New("destination is not controlled by this user")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrAlreadyMaterialized = errors.New("scheduled post is already materialized")
	ErrNotFound            = errors.New("not found")
	ErrNotResubmittable    = errors.New("only failed tasks can be resubmitted")
)
