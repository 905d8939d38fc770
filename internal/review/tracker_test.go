package review

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_ResolveDefaultsToKeep(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	tr.Decide(1, 0, false)

	assert.Equal(t, []int{1}, tr.Resolve(1, 2))
	assert.False(t, tr.IsComplete(1, 2))
}

func TestTracker_MixedDecisions(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	tr.Decide(1, 0, true)
	tr.Decide(1, 1, false)
	tr.Decide(1, 2, true)

	assert.True(t, tr.IsComplete(1, 3))
	assert.Equal(t, []int{0, 2}, tr.Resolve(1, 3))
}

func TestTracker_LastDecisionWins(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	for range 5 {
		tr.Decide(1, 0, true)
	}
	tr.Decide(1, 0, false)

	assert.Equal(t, []int{1}, tr.Resolve(1, 2))

	tr.Decide(1, 0, true)
	assert.Equal(t, []int{0, 1}, tr.Resolve(1, 2))
}

func TestTracker_AllRemoved(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	tr.Decide(1, 0, false)
	tr.Decide(1, 1, false)

	assert.Empty(t, tr.Resolve(1, 2))
}

func TestTracker_StartReviewResets(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	tr.Decide(1, 0, false)
	tr.StartReview(1)

	assert.Equal(t, []int{0}, tr.Resolve(1, 1))
	assert.False(t, tr.IsComplete(1, 1))
}

func TestTracker_DecideWithoutStartCreatesMap(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.Reviewing(9))
	tr.Decide(9, 0, false)
	assert.True(t, tr.Reviewing(9))
	assert.True(t, tr.IsComplete(9, 1))
}

func TestTracker_ClearAndUnknown(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	tr.Clear(1)

	assert.False(t, tr.Reviewing(1))
	assert.False(t, tr.IsComplete(1, 1))
	assert.Equal(t, []int{0, 1, 2}, tr.Resolve(1, 3))
}

func TestTracker_IsolatedPerSubmission(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	tr.StartReview(2)
	tr.Decide(1, 0, false)

	assert.Equal(t, []int{0}, tr.Resolve(2, 1))
}

func TestTracker_ConcurrentDecide(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Decide(1, i, i%2 == 0)
		}()
	}
	wg.Wait()

	assert.True(t, tr.IsComplete(1, 100))
	assert.Len(t, tr.Resolve(1, 100), 50)
}

func TestTracker_Undecide(t *testing.T) {
	tr := NewTracker()
	tr.StartReview(1)
	tr.Decide(1, 0, false)
	tr.Decide(1, 1, false)
	assert.True(t, tr.IsComplete(1, 2))

	tr.Undecide(1, 1)
	assert.False(t, tr.IsComplete(1, 2))
	assert.Equal(t, []int{1}, tr.Resolve(1, 2))

	tr.Undecide(2, 0)
	assert.False(t, tr.Reviewing(2))
}

func TestTracker_DecideWithoutStartReview(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.Reviewing(7))

	tr.Decide(7, 1, false)

	assert.True(t, tr.Reviewing(7))
	assert.Equal(t, []int{0}, tr.Resolve(7, 2))
}
