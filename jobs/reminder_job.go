package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/nashipae/tutorconnect/services"
	"go.uber.org/zap"
)

// ReminderJob emails both parties one hour before a confirmed lesson starts.
// Runs every five minutes from cron; the window matches the cadence so each
// booking is picked up once.
type ReminderJob struct {
	store    services.BookingStore
	notifier services.Notifier
	log      *zap.Logger
}

func NewReminderJob(store services.BookingStore, notifier services.Notifier, log *zap.Logger) *ReminderJob {
	return &ReminderJob{store: store, notifier: notifier, log: log}
}

func (j *ReminderJob) Run() {
	now := time.Now()
	lowerBound := now.Add(60 * time.Minute)
	upperBound := now.Add(65 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	upcoming, err := j.store.ConfirmedStartingBetween(ctx, lowerBound, upperBound)
	if err != nil {
		j.log.Error("failed to load upcoming lessons", zap.Error(err))
		return
	}

	for _, booking := range upcoming {
		link := "your dashboard"
		if booking.MeetingLink != nil {
			link = fmt.Sprintf("<a href='%s'>Join Lesson</a>", *booking.MeetingLink)
		}
		subject := "Reminder: Your Lesson Starts in 1 Hour!"
		body := fmt.Sprintf(
			"<h1>Lesson Reminder</h1><p>Your lesson is scheduled to start at %s.</p><p><b>Meeting Link:</b> %s</p>",
			booking.StartTime.Format(time.Kitchen), link,
		)

		j.log.Info("sending lesson reminder", zap.String("booking_id", booking.ID.String()))
		go j.notifier.Send(booking.Student.FullName, booking.Student.Email, subject, body)
		go j.notifier.Send(booking.Tutor.FullName, booking.Tutor.Email, subject, body)
	}
}
