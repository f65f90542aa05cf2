package credential

import "errors"

var (
	ErrUnauthorized    = errors.New("credential: unauthorized")
	ErrInvalidTarget   = errors.New("credential: invalid target")
	ErrAlreadyBurnt    = errors.New("credential: already burnt")
	ErrNotFound        = errors.New("credential: not found")
	ErrNotTransferable = errors.New("credential: transfers disabled")
	ErrAdminNotSet     = errors.New("credential: administrator not configured")
)
