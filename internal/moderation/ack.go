package moderation

// AckStatus classifies the reply a moderator receives for an action.
type AckStatus int

const (
	AckOK AckStatus = iota
	AckAlreadyHandled
	AckFailed
	AckInvalid
)

func (s AckStatus) String() string {
	switch s {
	case AckOK:
		return "ok"
	case AckAlreadyHandled:
		return "already_handled"
	case AckFailed:
		return "failed"
	case AckInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Ack is the acknowledgement returned for every action.
type Ack struct {
	Status AckStatus
	Text   string
}

const (
	textApproved        = "Approved and posted to main group."
	textRejected        = "Rejected and removed."
	textSelectiveSent   = "Sent items for selective approval. Mark Keep/Remove for each item."
	textSelectionPosted = "Approved selection posted."
	textNothingKept     = "No items approved — nothing to post."
	textStale           = "Pending item not found (stale)."
	textRepostFailed    = "Failed to repost to main group."
	textPromptFailed    = "Failed to send review prompts."
	textNotReviewing    = "Selective review has not started for this submission."
	textInvalid         = "Invalid action."
)

func ok(text string) Ack      { return Ack{Status: AckOK, Text: text} }
func stale() Ack              { return Ack{Status: AckAlreadyHandled, Text: textStale} }
func failed(text string) Ack  { return Ack{Status: AckFailed, Text: text} }
func invalid(text string) Ack { return Ack{Status: AckInvalid, Text: text} }

// InvalidAck is the reply for callback data that failed to parse.
func InvalidAck() Ack { return invalid(textInvalid) }
