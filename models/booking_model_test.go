package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to BookingStatus }{
		{StatusRequested, StatusPending},
		{StatusRequested, StatusRejected},
		{StatusRequested, StatusCancelled},
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusCancelled},
		{StatusInProgress, StatusAwaitingReview},
		{StatusInProgress, StatusDisputed},
		{StatusAwaitingReview, StatusCompleted},
		{StatusAwaitingReview, StatusDisputed},
	}
	for _, e := range allowed {
		assert.True(t, CanTransition(e.from, e.to), "%s -> %s should be allowed", e.from, e.to)
	}

	denied := []struct{ from, to BookingStatus }{
		{StatusRequested, StatusConfirmed},
		{StatusRequested, StatusCompleted},
		{StatusPending, StatusInProgress},
		{StatusPending, StatusRejected},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusAwaitingReview},
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusCompleted},
		{StatusAwaitingReview, StatusCancelled},
		{StatusCompleted, StatusDisputed},
		{StatusDisputed, StatusAwaitingReview},
		{StatusCancelled, StatusRequested},
		{StatusRejected, StatusPending},
	}
	for _, e := range denied {
		assert.False(t, CanTransition(e.from, e.to), "%s -> %s should be denied", e.from, e.to)
	}
}

func TestTerminalStatusesHaveNoOutboundEdges(t *testing.T) {
	terminals := []BookingStatus{StatusCompleted, StatusCancelled, StatusRejected, StatusDisputed}
	for _, s := range terminals {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
		assert.Empty(t, Transitions[s])
	}

	for _, s := range NonTerminalStatuses() {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
		assert.NotEmpty(t, Transitions[s])
	}

	assert.Len(t, Transitions, len(terminals)+len(NonTerminalStatuses()))
}

func TestValidateTransitionNamesBothStates(t *testing.T) {
	err := ValidateTransition(StatusCompleted, StatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "COMPLETED")
	assert.Contains(t, err.Error(), "PENDING")

	assert.NoError(t, ValidateTransition(StatusRequested, StatusPending))
}

func TestIsParty(t *testing.T) {
	student, tutor := uuid.New(), uuid.New()
	b := &Booking{StudentID: student, TutorID: tutor}

	assert.True(t, b.IsParty(student))
	assert.True(t, b.IsParty(tutor))
	assert.False(t, b.IsParty(uuid.New()))
}
