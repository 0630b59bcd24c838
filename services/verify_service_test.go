package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"venue-system/internal/status"
	"venue-system/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingScanWrite struct {
	id        string
	scanCount int
	at        time.Time
}

type fakeStore struct {
	bookings map[string]*models.Booking
	members  map[string]*models.Member
	credits  []models.VenueCredit

	creditsErr error
	scanErr    error
	visitErr   error

	bookingScans []bookingScanWrite
	memberVisits []string
}

func (f *fakeStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, ok := f.bookings[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *booking
	return &copied, nil
}

func (f *fakeStore) RecordBookingScan(ctx context.Context, id string, scanCount int, at time.Time) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	f.bookingScans = append(f.bookingScans, bookingScanWrite{id: id, scanCount: scanCount, at: at})
	return nil
}

func (f *fakeStore) GetMember(ctx context.Context, id string) (*models.Member, error) {
	member, ok := f.members[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *member
	return &copied, nil
}

func (f *fakeStore) RecordMemberVisit(ctx context.Context, id string, at time.Time) error {
	if f.visitErr != nil {
		return f.visitErr
	}
	f.memberVisits = append(f.memberVisits, id)
	return nil
}

func (f *fakeStore) ActiveCredits(ctx context.Context, memberID, venueID string, now time.Time) ([]models.VenueCredit, error) {
	if f.creditsErr != nil {
		return nil, f.creditsErr
	}
	return f.credits, nil
}

func newTestVerifyService(store Store, now time.Time, loc *time.Location) *VerifyService {
	svc := NewVerifyService(store, loc)
	svc.now = func() time.Time { return now }
	return svc
}

func confirmedBooking(now time.Time) *models.Booking {
	return &models.Booking{
		ID:            "B1",
		VenueID:       "V1",
		VenueName:     "The Cellar",
		CustomerName:  "Ada Example",
		CustomerEmail: "ada@example.com",
		Status:        models.BookingStatusConfirmed,
		BookingDate:   now,
		BookingTime:   "19:30",
		TableNumber:   "T4",
		GuestCount:    4,
		SecurityCode:  "S1",
		ScanCount:     2,
	}
}

func rejectedReason(t *testing.T, err error) status.Reason {
	t.Helper()
	var rejected *status.RejectedError
	require.ErrorAs(t, err, &rejected)
	return rejected.Reason
}

func TestVerifyBooking_Success(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": confirmedBooking(now)}}
	svc := newTestVerifyService(store, now, time.UTC)

	verification, err := svc.Verify(context.Background(), models.BookingEntryPayload{
		BookingID:    "B1",
		SecurityCode: "S1",
	})
	require.NoError(t, err)
	require.NotNil(t, verification.Result)

	result := verification.Result
	assert.Equal(t, models.PayloadTypeBookingEntry, result.Kind)
	assert.Equal(t, "B1", result.BookingID)
	assert.Equal(t, "The Cellar", result.VenueName)
	assert.Equal(t, "19:30", result.BookingTime)
	assert.Equal(t, "T4", result.TableNumber)
	assert.Equal(t, 4, result.GuestCount)
	assert.Equal(t, "***", result.CustomerName, "station display never shows the customer name")
	assert.Equal(t, now, result.VerifiedAt)

	require.NotNil(t, verification.Notify)
	assert.Equal(t, "ada@example.com", verification.Notify.Email)
	assert.Equal(t, "Ada Example", verification.Notify.Name)

	require.Len(t, store.bookingScans, 1)
	assert.Equal(t, "B1", store.bookingScans[0].id)
	assert.Equal(t, 3, store.bookingScans[0].scanCount)
	assert.Equal(t, now, store.bookingScans[0].at)
}

func TestVerifyBooking_NotFound(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{}}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.BookingEntryPayload{BookingID: "missing", SecurityCode: "S1"})
	assert.Equal(t, status.ReasonBookingNotFound, rejectedReason(t, err))
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Empty(t, store.bookingScans)
}

func TestVerifyBooking_NotConfirmed(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	for _, state := range []string{
		models.BookingStatusPending,
		models.BookingStatusCheckedIn,
		models.BookingStatusCancelled,
		models.BookingStatusCompleted,
	} {
		booking := confirmedBooking(now)
		booking.Status = state
		store := &fakeStore{bookings: map[string]*models.Booking{"B1": booking}}
		svc := newTestVerifyService(store, now, time.UTC)

		_, err := svc.Verify(context.Background(), models.BookingEntryPayload{BookingID: "B1", SecurityCode: "S1"})
		assert.Equal(t, status.ReasonBookingNotConfirmed, rejectedReason(t, err), "status %s", state)
		assert.Empty(t, store.bookingScans, "status %s must not write", state)
	}
}

func TestVerifyBooking_WrongDate(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	booking := confirmedBooking(now)
	booking.BookingDate = now.AddDate(0, 0, 1)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": booking}}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.BookingEntryPayload{BookingID: "B1", SecurityCode: "S1"})
	assert.Equal(t, status.ReasonWrongDate, rejectedReason(t, err))
	assert.Empty(t, store.bookingScans)
}

func TestVerifyBooking_SameDayInVenueTimezone(t *testing.T) {
	loc := time.FixedZone("venue", 9*60*60)

	// 23:00 UTC on the 29th is already the 30th at the venue. The stored UTC
	// date and the wall clock disagree; the venue clock decides.
	now := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	booking := confirmedBooking(now)
	booking.BookingDate = time.Date(2026, 8, 30, 0, 0, 0, 0, loc)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": booking}}
	svc := newTestVerifyService(store, now, loc)

	_, err := svc.Verify(context.Background(), models.BookingEntryPayload{BookingID: "B1", SecurityCode: "S1"})
	assert.NoError(t, err)
}

func TestVerifyBooking_WrongSecurityCode(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": confirmedBooking(now)}}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.BookingEntryPayload{BookingID: "B1", SecurityCode: "S2"})
	assert.Equal(t, status.ReasonInvalidSecurityCode, rejectedReason(t, err))
	assert.Empty(t, store.bookingScans)
}

func TestVerifyBooking_EmptyStoredCodeSkipsCheck(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	booking := confirmedBooking(now)
	booking.SecurityCode = ""
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": booking}}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.BookingEntryPayload{BookingID: "B1", SecurityCode: "whatever"})
	assert.NoError(t, err)
}

func TestVerifyBooking_AuditWriteFailureStillVerifies(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{
		bookings: map[string]*models.Booking{"B1": confirmedBooking(now)},
		scanErr:  errors.New("store unavailable"),
	}
	svc := newTestVerifyService(store, now, time.UTC)

	verification, err := svc.Verify(context.Background(), models.BookingEntryPayload{BookingID: "B1", SecurityCode: "S1"})
	require.NoError(t, err)
	assert.NotNil(t, verification.Result)
}

func testMember() *models.Member {
	return &models.Member{
		ID:           "M1",
		Name:         "Grace Example",
		Email:        "grace@example.com",
		VenueID:      "V1",
		Tier:         "gold",
		SecurityCode: "S9",
	}
}

func TestVerifyMember_Success(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{
		members: map[string]*models.Member{"M1": testMember()},
		credits: []models.VenueCredit{
			{
				Amount:     decimal.NewFromInt(100),
				UsedAmount: decimal.NewFromFloat(25.50),
				Status:     models.CreditStatusActive,
				ExpiresAt:  now.AddDate(0, 1, 0),
			},
			{
				Amount:     decimal.NewFromInt(40),
				UsedAmount: decimal.NewFromInt(10),
				Status:     models.CreditStatusActive,
				ExpiresAt:  now.AddDate(0, 2, 0),
			},
		},
	}
	svc := newTestVerifyService(store, now, time.UTC)

	verification, err := svc.Verify(context.Background(), models.MemberCredentialPayload{
		MemberID:     "M1",
		SecurityCode: "S9",
		VenueID:      "V1",
	})
	require.NoError(t, err)

	result := verification.Result
	assert.Equal(t, models.PayloadTypeMemberCredential, result.Kind)
	assert.Equal(t, "M1", result.MemberID)
	assert.Equal(t, "***", result.MemberName)
	assert.Equal(t, "gold", result.MemberTier)
	assert.True(t, result.AvailableBalance.Equal(decimal.NewFromFloat(104.50)),
		"got %s", result.AvailableBalance)

	assert.Nil(t, verification.Notify, "member scans do not trigger booking mail")
	assert.Equal(t, []string{"M1"}, store.memberVisits)
}

func TestVerifyMember_NotFound(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{members: map[string]*models.Member{}}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.MemberCredentialPayload{MemberID: "missing"})
	assert.Equal(t, status.ReasonMemberNotFound, rejectedReason(t, err))
}

func TestVerifyMember_CodeMismatch(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{members: map[string]*models.Member{"M1": testMember()}}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.MemberCredentialPayload{MemberID: "M1", SecurityCode: "nope"})
	assert.Equal(t, status.ReasonSecurityCodeMismatch, rejectedReason(t, err))
	assert.Empty(t, store.memberVisits)
}

func TestVerifyMember_NoRedeemableCredit(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{
		members: map[string]*models.Member{"M1": testMember()},
		credits: []models.VenueCredit{
			// Fully spent.
			{Amount: decimal.NewFromInt(50), UsedAmount: decimal.NewFromInt(50), Status: models.CreditStatusActive, ExpiresAt: now.AddDate(0, 1, 0)},
			// Expired.
			{Amount: decimal.NewFromInt(30), Status: models.CreditStatusActive, ExpiresAt: now.AddDate(0, 0, -1)},
			// Cancelled.
			{Amount: decimal.NewFromInt(30), Status: models.CreditStatusCancelled, ExpiresAt: now.AddDate(0, 1, 0)},
		},
	}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.MemberCredentialPayload{MemberID: "M1", SecurityCode: "S9"})
	assert.Equal(t, status.ReasonNoAvailableCredit, rejectedReason(t, err))
	assert.Empty(t, store.memberVisits)
}

func TestVerifyMember_CreditLookupFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{
		members:    map[string]*models.Member{"M1": testMember()},
		creditsErr: errors.New("store unavailable"),
	}
	svc := newTestVerifyService(store, now, time.UTC)

	_, err := svc.Verify(context.Background(), models.MemberCredentialPayload{MemberID: "M1", SecurityCode: "S9"})
	assert.Equal(t, status.ReasonNoAvailableCredit, rejectedReason(t, err))
}
