package client

import "errors"

var (
	ErrCoordinatorUnavailable = errors.New("coordinator unavailable")
	ErrRegistrationRejected   = errors.New("registration rejected")
)
