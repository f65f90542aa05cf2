package vesting

import "errors"

var (
	ErrUnauthorized   = errors.New("vesting: unauthorized")
	ErrScheduleNotSet = errors.New("vesting: schedule not set")
	ErrNotYetVested   = errors.New("vesting: not yet vested")
	ErrTransferFailed = errors.New("vesting: transfer failed")
)
