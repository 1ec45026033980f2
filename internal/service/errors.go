package service

import "errors"

var (
	// ErrEmptyMessage rejects blank input before any quota accounting.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong rejects oversized input before any quota accounting.
	ErrMessageTooLong = errors.New("message exceeds maximum length")

	// ErrInvalidMessage rejects input that is empty after sanitation.
	ErrInvalidMessage = errors.New("message contains no usable content")

	// ErrRequestNotFound maps a missing extension request to a 404.
	ErrRequestNotFound = errors.New("extension request not found")
)
