package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether the half-open intervals [s1, e1) and [s2, e2)
// intersect. Back-to-back lessons (e1 == s2) do not conflict.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// HasConflict reports whether [start, end) overlaps any non-terminal booking
// for the tutor. It must run inside the same transaction as the insert it
// guards, behind the tutor-row lock, so two students racing for one slot
// serialize instead of both succeeding.
func HasConflict(ctx context.Context, store BookingStore, tutorProfileID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	n, err := store.CountOverlapping(ctx, tutorProfileID, start, end, exclude)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
