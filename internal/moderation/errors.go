package moderation

import "fmt"

// ValidationError reports callback data that does not decode to a Command.
type ValidationError struct {
	Data    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid callback %q: %s", e.Data, e.Message)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PublishError reports a failed call to the Publisher. The submission it
// concerned is left in place so the moderator can retry.
type PublishError struct {
	Op           string
	SubmissionID int64
	Err          error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s for submission %d: %v", e.Op, e.SubmissionID, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
