package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nashipae/tutorconnect/models"
	"github.com/nashipae/tutorconnect/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the Postgres-backed services.BookingStore. Transaction views
// share the outer *gorm.DB transaction, and the ForUpdate reads take
// SELECT ... FOR UPDATE row locks, which is where all of the booking core's
// concurrency control lives.
type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx services.BookingStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *GormStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	return s.db.WithContext(ctx).Save(b).Error
}

func (s *GormStore) BookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).First(&booking, "id = ?", id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &booking, nil
}

func (s *GormStore) BookingByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, "id = ?", id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &booking, nil
}

func (s *GormStore) BookingByCheckoutRef(ctx context.Context, ref string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).First(&booking, "checkout_ref = ?", ref).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &booking, nil
}

func (s *GormStore) BookingsForUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Tutor").
		Preload("TutorProfile").
		Where("student_id = ? OR tutor_id = ?", userID, userID).
		Order("start_time desc").
		Find(&bookings).Error
	return bookings, err
}

func (s *GormStore) CountOverlapping(ctx context.Context, tutorProfileID uuid.UUID, start, end time.Time, exclude uuid.UUID) (int64, error) {
	var count int64
	q := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("tutor_profile_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
			tutorProfileID, models.NonTerminalStatuses(), end, start)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	err := q.Count(&count).Error
	return count, err
}

func (s *GormStore) TutorProfileForUpdate(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error) {
	var profile models.TutorProfile
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&profile, "id = ?", id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &profile, nil
}

func (s *GormStore) TutorProfileByID(ctx context.Context, id uuid.UUID) (*models.TutorProfile, error) {
	var profile models.TutorProfile
	err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &profile, nil
}

func (s *GormStore) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (s *GormStore) ConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Preload("Student").
		Preload("Tutor").
		Where("status = ? AND start_time BETWEEN ? AND ?", models.StatusConfirmed, from, to).
		Find(&bookings).Error
	return bookings, err
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", services.ErrNotFound, err)
	}
	return err
}
