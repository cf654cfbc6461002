// Package handlers defines HTTP-layer error codes used across all API
// endpoints.
//
// This file centralizes symbolic error code constants that are mapped to
// HTTP responses via the `fail()` helper in this package. These codes give
// clients a stable, machine-readable error taxonomy that supplements the
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes (bad_request, unauthorized, not_found, ...) mirror
//     common HTTP status semantics.
//   - Domain-specific codes (invalid_role_pair, not_participant, ...)
//     carry business rules a bare status cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidRolePair   = "invalid_role_pair"
	ErrCodeNotParticipant    = "not_participant"
	ErrCodeUnknownUser       = "unknown_user"
	ErrCodeEmptyMessage      = "empty_message"
	ErrCodeMessageTooLong    = "message_too_long"
	ErrCodeInvalidCursor     = "invalid_cursor"
	ErrCodeAttachmentInvalid = "attachment_invalid"
	ErrCodeInvalidKind       = "invalid_kind"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)
