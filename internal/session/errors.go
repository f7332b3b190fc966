package session

import "errors"

var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrEnded indicates the session was explicitly ended.
	ErrEnded = errors.New("session already ended")

	// ErrInvalidRole indicates a turn with a role outside user/assistant/system.
	ErrInvalidRole = errors.New("invalid turn role")

	// ErrEmptyContent indicates a turn with no content.
	ErrEmptyContent = errors.New("turn content is empty")
)
