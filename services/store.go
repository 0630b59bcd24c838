package services

import (
	"context"
	"errors"
	"time"

	"venue-system/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

// ErrRecordNotFound is returned by the store for missing rows.
var ErrRecordNotFound = errors.New("store: record not found")

// Store is the keyed read/write surface the verification flow needs from the
// remote data store. Nothing store-specific beyond single-row lookups and
// equality filters.
type Store interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)

	// RecordBookingScan is the audit write after a verified entry scan:
	// bump scan_count, stamp last_scanned_at, mark the booking checked in.
	RecordBookingScan(ctx context.Context, id string, scanCount int, at time.Time) error

	GetMember(ctx context.Context, id string) (*models.Member, error)

	// RecordMemberVisit stamps last_visit. Audit-only, never safety-critical.
	RecordMemberVisit(ctx context.Context, id string, at time.Time) error

	// ActiveCredits lists active, unexpired credits for the member, scoped to
	// the venue when venueID is non-empty.
	ActiveCredits(ctx context.Context, memberID, venueID string, now time.Time) ([]models.VenueCredit, error)
}

// pbStore adapts the PocketBase app to the Store interface.
type pbStore struct {
	app core.App
}

func NewStore(app core.App) Store {
	return &pbStore{app: app}
}

func (s *pbStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	record, err := s.app.FindRecordById("bookings", id)
	if err != nil {
		return nil, ErrRecordNotFound
	}

	return &models.Booking{
		ID:            record.Id,
		VenueID:       record.GetString("venue"),
		VenueName:     record.GetString("venue_name"),
		CustomerName:  record.GetString("customer_name"),
		CustomerEmail: record.GetString("customer_email"),
		Status:        record.GetString("status"),
		BookingDate:   record.GetDateTime("booking_date").Time(),
		BookingTime:   record.GetString("booking_time"),
		TableNumber:   record.GetString("table_number"),
		GuestCount:    record.GetInt("guest_count"),
		SecurityCode:  record.GetString("qr_security_code"),
		ScanCount:     record.GetInt("scan_count"),
		LastScannedAt: record.GetDateTime("last_scanned_at").Time(),
	}, nil
}

func (s *pbStore) RecordBookingScan(ctx context.Context, id string, scanCount int, at time.Time) error {
	record, err := s.app.FindRecordById("bookings", id)
	if err != nil {
		return err
	}

	record.Set("scan_count", scanCount)
	record.Set("last_scanned_at", at.UTC().Format(types.DefaultDateLayout))
	record.Set("status", models.BookingStatusCheckedIn)

	return s.app.Save(record)
}

func (s *pbStore) GetMember(ctx context.Context, id string) (*models.Member, error) {
	record, err := s.app.FindRecordById("members", id)
	if err != nil {
		return nil, ErrRecordNotFound
	}

	return &models.Member{
		ID:           record.Id,
		Name:         record.GetString("name"),
		Email:        record.GetString("email"),
		VenueID:      record.GetString("venue"),
		Tier:         record.GetString("tier"),
		SecurityCode: record.GetString("qr_security_code"),
		LastVisit:    record.GetDateTime("last_visit").Time(),
	}, nil
}

func (s *pbStore) RecordMemberVisit(ctx context.Context, id string, at time.Time) error {
	record, err := s.app.FindRecordById("members", id)
	if err != nil {
		return err
	}

	record.Set("last_visit", at.UTC().Format(types.DefaultDateLayout))

	return s.app.Save(record)
}

func (s *pbStore) ActiveCredits(ctx context.Context, memberID, venueID string, now time.Time) ([]models.VenueCredit, error) {
	filter := "member = {:member} && status = 'active' && expires_at > {:now}"
	params := dbx.Params{
		"member": memberID,
		"now":    now.UTC().Format(types.DefaultDateLayout),
	}
	if venueID != "" {
		filter += " && venue = {:venue}"
		params["venue"] = venueID
	}

	records, err := s.app.FindRecordsByFilter("venue_credits", filter, "-created", 0, 0, params)
	if err != nil {
		return nil, err
	}

	credits := make([]models.VenueCredit, 0, len(records))
	for _, record := range records {
		credits = append(credits, models.VenueCredit{
			ID:         record.Id,
			MemberID:   record.GetString("member"),
			VenueID:    record.GetString("venue"),
			Amount:     decimal.NewFromFloat(record.GetFloat("amount")),
			UsedAmount: decimal.NewFromFloat(record.GetFloat("used_amount")),
			Status:     record.GetString("status"),
			ExpiresAt:  record.GetDateTime("expires_at").Time(),
		})
	}

	return credits, nil
}
