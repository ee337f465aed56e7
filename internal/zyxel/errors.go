package zyxel

import "errors"

var (
	// ErrSessionClosed is returned when a command is issued on a
	// session that already terminated.
	ErrSessionClosed = errors.New("cli session closed")

	// ErrPromptTimeout is returned when the CLI prompt does not come
	// back within the command deadline.
	ErrPromptTimeout = errors.New("timed out waiting for cli prompt")

	// ErrAllCommandsFailed is returned by FetchSnapshot when not a
	// single read command produced usable output.
	ErrAllCommandsFailed = errors.New("all read commands failed")
)
