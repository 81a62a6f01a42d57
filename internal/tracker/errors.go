package tracker

import "errors"

var (
	// ErrTooShort is returned for transcripts below the summary minimum.
	ErrTooShort = errors.New("tracker: conversation too short to summarize")
	// ErrSendFailed wraps a failure to deliver the team email.
	ErrSendFailed = errors.New("tracker: failed to send summary email")
)
