// Package services defines the business logic for chats, messages, and
// notifications. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Chat-related errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrInvalidRolePair is returned when the caller's role may not open a
	// chat with the peer's role, or when a user attempts a chat with
	// themselves.
	ErrInvalidRolePair = errors.New("role pair not allowed")

	// ErrUnknownUser is returned when the requested peer does not exist in
	// the users directory.
	ErrUnknownUser = errors.New("unknown user")

	// ErrNotParticipant is returned when a user attempts an operation on a
	// chat they are not a member of.
	ErrNotParticipant = errors.New("not a chat participant")
)

// Message-related errors.
var (
	// ErrEmptyMessage is returned when a message carries neither text nor
	// an attachment.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a message body exceeds the maximum
	// configured rune length.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidCursor is returned when a pagination cursor cannot be
	// decoded.
	ErrInvalidCursor = errors.New("invalid pagination cursor")

	// ErrAttachmentInvalid is returned when an uploaded attachment fails
	// validation. It wraps the specific storage error (size or MIME type).
	ErrAttachmentInvalid = errors.New("attachment rejected")

	// ErrAttachmentNotFound indicates that the requested attachment
	// reference does not resolve to a stored file.
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// Notification-related errors.
var (
	// ErrNotificationNotFound indicates that the notification does not
	// exist or was already acknowledged.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrInvalidKind is returned when a notification kind is outside the
	// known set.
	ErrInvalidKind = errors.New("invalid notification kind")
)
