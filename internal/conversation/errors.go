package conversation

import "errors"

var (
	// ErrStateNotFound is returned by a Store when no state exists for the key.
	ErrStateNotFound = errors.New("conversation: state not found")
	// ErrCorruptState is returned by a Store when the persisted blob cannot be decoded.
	ErrCorruptState = errors.New("conversation: corrupt state")
	// ErrClosed is returned when a turn is attempted on a closed manager.
	ErrClosed = errors.New("conversation: manager closed")
	// ErrEmptyMessage is returned by HandleTurn for blank input.
	ErrEmptyMessage = errors.New("conversation: empty message")
)
