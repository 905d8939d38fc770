package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	cmds := []Command{
		ApproveAll{SubmissionID: 1},
		RejectAll{SubmissionID: 22},
		SelectivelyApprove{SubmissionID: 333},
		Decide{SubmissionID: 4, Index: 0, Keep: true},
		Decide{SubmissionID: 4, Index: 9, Keep: false},
		Finalize{SubmissionID: 5},
	}
	for _, cmd := range cmds {
		data := Encode(cmd)
		assert.LessOrEqual(t, len(data), 64, "callback data limit")
		got, err := ParseCallback(data)
		require.NoError(t, err, data)
		assert.Equal(t, cmd, got)
	}
}

func TestEncodeFormat(t *testing.T) {
	assert.Equal(t, "approve_all:12", Encode(ApproveAll{SubmissionID: 12}))
	assert.Equal(t, "selective:12", Encode(SelectivelyApprove{SubmissionID: 12}))
	assert.Equal(t, "keep:12:3", Encode(Decide{SubmissionID: 12, Index: 3, Keep: true}))
	assert.Equal(t, "remove:12:0", Encode(Decide{SubmissionID: 12, Index: 0}))
}

func TestParseCallback_Invalid(t *testing.T) {
	for _, data := range []string{
		"",
		"approve_all",
		"approve_all:",
		"approve_all:abc",
		"approve_all:0",
		"approve_all:-3",
		"approve_all:1:2",
		"keep:1",
		"keep:1:x",
		"remove:1:-1",
		"publish:1",
		"finalize:99999999999999999999",
	} {
		_, err := ParseCallback(data)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "data %q", data)
		assert.Equal(t, data, ve.Data)
	}
}
