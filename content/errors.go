package content

import "errors"

var (
	// ErrNotFound covers missing or not-yet-visible content: referencing a
	// pending or rejected parent looks the same to the caller as referencing
	// one that does not exist.
	ErrNotFound = errors.New("content not found or not available")

	ErrValidation = errors.New("invalid content request")

	// ErrOwnContent is returned when a user tries to comment on their own
	// post or reply to their own comment.
	ErrOwnContent = errors.New("cannot comment on your own content")

	ErrForbidden = errors.New("not allowed to modify this content")
)
