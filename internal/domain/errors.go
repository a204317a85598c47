package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateRefund   = errors.New("refund already recorded")
	ErrDuplicateSlot     = errors.New("scheduled slot already admitted")
	ErrNoTopicConfigured = errors.New("no topic query configured")
	ErrCMSNotConfigured  = errors.New("cms not configured")
)
