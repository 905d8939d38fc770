package moderation

import (
	"fmt"
	"strconv"
	"strings"
)

// Encode renders cmd as inline-button callback data. The format is
// "<name>:<id>" or, for Decide, "<keep|remove>:<id>:<index>".
func Encode(cmd Command) string {
	switch c := cmd.(type) {
	case Decide:
		return fmt.Sprintf("%s:%d:%d", c.Name(), c.SubmissionID, c.Index)
	default:
		return fmt.Sprintf("%s:%d", cmd.Name(), cmd.Target())
	}
}

// ParseCallback decodes callback data produced by Encode. Anything else is
// rejected with a *ValidationError.
func ParseCallback(data string) (Command, error) {
	parts := strings.Split(data, ":")
	name := parts[0]

	want := 2
	if name == "keep" || name == "remove" {
		want = 3
	}
	if len(parts) != want {
		return nil, &ValidationError{Data: data, Message: fmt.Sprintf("expected %d fields, got %d", want, len(parts))}
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return nil, &ValidationError{Data: data, Message: "invalid submission id", Err: err}
	}

	switch name {
	case "approve_all":
		return ApproveAll{SubmissionID: id}, nil
	case "reject_all":
		return RejectAll{SubmissionID: id}, nil
	case "selective":
		return SelectivelyApprove{SubmissionID: id}, nil
	case "finalize":
		return Finalize{SubmissionID: id}, nil
	case "keep", "remove":
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 {
			return nil, &ValidationError{Data: data, Message: "invalid item index", Err: err}
		}
		return Decide{SubmissionID: id, Index: idx, Keep: name == "keep"}, nil
	default:
		return nil, &ValidationError{Data: data, Message: "unknown action " + strconv.Quote(name)}
	}
}
