package services

import (
	"context"
	"testing"
	"time"

	"venue-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookingQR(t *testing.T) string {
	t.Helper()
	raw, err := models.EncodeBookingEntry(models.BookingEntryPayload{BookingID: "B1", SecurityCode: "S1"})
	require.NoError(t, err)
	return raw
}

func newTestSession(store Store, now time.Time) (*ScanSession, *time.Time) {
	clock := now
	session := NewScanSession("SES1", "V1", "door-1",
		NewScanGuard(30*time.Second),
		newTestVerifyService(store, now, time.UTC),
		nil)
	session.now = func() time.Time { return clock }
	return session, &clock
}

func TestScanSession_IgnoredInput(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	session, _ := newTestSession(&fakeStore{}, now)

	var audits []ScanOutcome
	session.OnOutcome(func(o ScanOutcome) { audits = append(audits, o) })

	outcome := session.HandleScan(context.Background(), "https://example.com/menu")
	assert.Equal(t, OutcomeIgnored, outcome.Status)
	assert.Empty(t, outcome.Message, "unrecognized text never surfaces an operator error")
	assert.Empty(t, audits, "ignored scans stay out of the audit trail")

	// An unrecognized frame must not consume the guard.
	outcome = session.HandleScan(context.Background(), bookingQR(t))
	assert.Equal(t, OutcomeRejected, outcome.Status)
}

func TestScanSession_VerifiedFlow(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": confirmedBooking(now)}}
	session, _ := newTestSession(store, now)

	var audits []ScanOutcome
	session.OnOutcome(func(o ScanOutcome) { audits = append(audits, o) })

	outcome := session.HandleScan(context.Background(), bookingQR(t))
	require.Equal(t, OutcomeVerified, outcome.Status)
	assert.Equal(t, "booking_entry", outcome.Kind)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, "***", outcome.Result.CustomerName)

	require.Len(t, audits, 1)
	assert.Equal(t, OutcomeVerified, audits[0].Status)

	snap := session.Snapshot()
	assert.Equal(t, 1, snap["verified"])
	assert.Equal(t, "verified", snap["state"])
}

func TestScanSession_RejectedFlow(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	booking := confirmedBooking(now)
	booking.Status = models.BookingStatusCancelled
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": booking}}
	session, _ := newTestSession(store, now)

	outcome := session.HandleScan(context.Background(), bookingQR(t))
	assert.Equal(t, OutcomeRejected, outcome.Status)
	assert.Equal(t, "booking_not_confirmed", outcome.Reason)
	assert.Contains(t, outcome.Message, "not confirmed")
	assert.Contains(t, outcome.Message, "cancelled")

	snap := session.Snapshot()
	assert.Equal(t, 1, snap["rejected"])
	assert.Equal(t, "rejected", snap["state"])
}

func TestScanSession_CooldownSuppression(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": confirmedBooking(now)}}
	session, clock := newTestSession(store, now)

	require.Equal(t, OutcomeVerified, session.HandleScan(context.Background(), bookingQR(t)).Status)

	*clock = now.Add(10 * time.Second)
	outcome := session.HandleScan(context.Background(), bookingQR(t))
	assert.Equal(t, OutcomeSuppressed, outcome.Status)
	assert.Equal(t, "cooldown", outcome.Reason)

	snap := session.Snapshot()
	assert.Equal(t, 1, snap["suppressed"])
}

func TestScanSession_DuplicateKeySuppression(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": confirmedBooking(now)}}
	session, clock := newTestSession(store, now)

	require.Equal(t, OutcomeVerified, session.HandleScan(context.Background(), bookingQR(t)).Status)

	// Simulate the verification having taken a few seconds: the guard
	// remembered the key later than the admit timestamp, so past the global
	// cooldown the same pass is still a duplicate.
	*clock = now.Add(10 * time.Second)
	session.guard.Done("booking:B1:S1", true, *clock)

	*clock = now.Add(35 * time.Second)
	outcome := session.HandleScan(context.Background(), bookingQR(t))
	assert.Equal(t, OutcomeSuppressed, outcome.Status)
	assert.Equal(t, "duplicate", outcome.Reason)
}

func TestScanSession_RejectedCodeRetriesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{}}
	session, clock := newTestSession(store, now)

	require.Equal(t, OutcomeRejected, session.HandleScan(context.Background(), bookingQR(t)).Status)

	*clock = now.Add(31 * time.Second)
	outcome := session.HandleScan(context.Background(), bookingQR(t))
	assert.Equal(t, OutcomeRejected, outcome.Status, "rejected keys are not remembered as duplicates")
}

func TestScanSession_CloseResetsGuard(t *testing.T) {
	now := time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: map[string]*models.Booking{"B1": confirmedBooking(now)}}
	session, _ := newTestSession(store, now)

	require.Equal(t, OutcomeVerified, session.HandleScan(context.Background(), bookingQR(t)).Status)
	session.Close()

	assert.Empty(t, session.guard.RecentKeys())
	assert.Equal(t, "idle", session.Snapshot()["state"])
}
