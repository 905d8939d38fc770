// Package moderation implements the approval workflow: it turns a flushed
// batch into a pending submission, prompts moderators, and drives each
// submission to a republish-or-discard outcome.
package moderation

// Command is a moderator instruction. The set of implementations is closed;
// Handle switches over every variant.
type Command interface {
	// Target is the submission id the command addresses.
	Target() int64
	// Name is a stable label for logs and metrics.
	Name() string
	command()
}

type ApproveAll struct{ SubmissionID int64 }

type RejectAll struct{ SubmissionID int64 }

type SelectivelyApprove struct{ SubmissionID int64 }

// Decide marks one item as kept or removed during selective review.
type Decide struct {
	SubmissionID int64
	Index        int
	Keep         bool
}

type Finalize struct{ SubmissionID int64 }

func (c ApproveAll) Target() int64         { return c.SubmissionID }
func (c RejectAll) Target() int64          { return c.SubmissionID }
func (c SelectivelyApprove) Target() int64 { return c.SubmissionID }
func (c Decide) Target() int64             { return c.SubmissionID }
func (c Finalize) Target() int64           { return c.SubmissionID }

func (ApproveAll) Name() string         { return "approve_all" }
func (RejectAll) Name() string          { return "reject_all" }
func (SelectivelyApprove) Name() string { return "selective" }
func (Finalize) Name() string           { return "finalize" }

func (c Decide) Name() string {
	if c.Keep {
		return "keep"
	}
	return "remove"
}

func (ApproveAll) command()         {}
func (RejectAll) command()          {}
func (SelectivelyApprove) command() {}
func (Decide) command()             {}
func (Finalize) command()           {}

// Action is a command together with the moderator who issued it.
type Action struct {
	Command   Command
	ActorID   int64
	ActorName string
}
