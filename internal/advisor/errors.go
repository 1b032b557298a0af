package advisor

import "errors"

var (
	// ErrEmptyMessage means the user message was empty or whitespace.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong means the user message exceeds the configured maximum.
	ErrMessageTooLong = errors.New("message exceeds maximum length")

	// ErrGeneration means the language model call failed. Fatal to the single
	// ask; session state is unchanged. The orchestrator never substitutes a
	// canned answer; that decision belongs to the calling endpoint.
	ErrGeneration = errors.New("language model generation failed")
)
