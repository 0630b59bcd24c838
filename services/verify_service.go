package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"venue-system/internal/status"
	"venue-system/models"
)

// VerifyState is the per-attempt state of the verification machine.
type VerifyState int32

const (
	StateIdle VerifyState = iota
	StateValidating
	StateVerified
	StateRejected
)

func (s VerifyState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateVerified:
		return "verified"
	case StateRejected:
		return "rejected"
	default:
		return "idle"
	}
}

// VerifyService drives a typed payload through the remote lookups and checks
// to a terminal verified/rejected state, and issues the single mutating side
// effect (check-in or visit stamp). Audit writes are best-effort: their
// failure is logged and never changes an outcome already decided by the
// critical checks.
type VerifyService struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

func NewVerifyService(store Store, loc *time.Location) *VerifyService {
	if loc == nil {
		loc = time.Local
	}
	return &VerifyService{
		store: store,
		loc:   loc,
		now:   time.Now,
	}
}

// Verify runs one verification attempt. The returned error, when the attempt
// is rejected, is always a *status.RejectedError with a distinct reason.
func (s *VerifyService) Verify(ctx context.Context, payload models.ScanPayload) (*models.Verification, error) {
	switch p := payload.(type) {
	case models.BookingEntryPayload:
		return s.verifyBookingEntry(ctx, p)
	case models.MemberCredentialPayload:
		return s.verifyMemberCredential(ctx, p)
	default:
		return nil, status.ErrPayloadNotRecognized
	}
}

func (s *VerifyService) verifyBookingEntry(ctx context.Context, p models.BookingEntryPayload) (*models.Verification, error) {
	booking, err := s.store.GetBooking(ctx, p.BookingID)
	if err != nil {
		return nil, &status.RejectedError{
			Reason:  status.ReasonBookingNotFound,
			Message: "Booking not found",
			Err:     err,
		}
	}

	if booking.Status != models.BookingStatusConfirmed {
		return nil, status.RejectDetail(
			status.ReasonBookingNotConfirmed,
			"Booking is not confirmed",
			fmt.Sprintf("status is %q", booking.Status),
		)
	}

	now := s.now()
	if !sameDay(booking.BookingDate, now, s.loc) {
		return nil, status.RejectDetail(
			status.ReasonWrongDate,
			"Booking is not for today",
			booking.BookingDate.In(s.loc).Format("2006-01-02"),
		)
	}

	// Bookings with an empty stored code are not security-gated; the check
	// is skipped on purpose, not every booking is issued a code.
	if booking.SecurityCode != "" && booking.SecurityCode != p.SecurityCode {
		return nil, status.Reject(status.ReasonInvalidSecurityCode, "Security code does not match")
	}

	if err := s.store.RecordBookingScan(ctx, booking.ID, booking.ScanCount+1, now); err != nil {
		log.Printf("verify: booking %s scan audit write failed: %v", booking.ID, err)
	}

	return &models.Verification{
		Result: &models.VerifiedResult{
			Kind:         models.PayloadTypeBookingEntry,
			BookingID:    booking.ID,
			VenueName:    booking.VenueName,
			BookingTime:  booking.BookingTime,
			TableNumber:  booking.TableNumber,
			GuestCount:   booking.GuestCount,
			CustomerName: models.Mask(booking.CustomerName),
			VerifiedAt:   now,
		},
		Notify: &models.NotificationTarget{
			BookingID: booking.ID,
			Email:     booking.CustomerEmail,
			Name:      booking.CustomerName,
			VenueName: booking.VenueName,
			Time:      booking.BookingTime,
			Table:     booking.TableNumber,
		},
	}, nil
}

func (s *VerifyService) verifyMemberCredential(ctx context.Context, p models.MemberCredentialPayload) (*models.Verification, error) {
	member, err := s.store.GetMember(ctx, p.MemberID)
	if err != nil {
		return nil, &status.RejectedError{
			Reason:  status.ReasonMemberNotFound,
			Message: "Member not found",
			Err:     err,
		}
	}

	if member.SecurityCode != "" && member.SecurityCode != p.SecurityCode {
		return nil, status.Reject(status.ReasonSecurityCodeMismatch, "Security code does not match")
	}

	now := s.now()
	credits, err := s.store.ActiveCredits(ctx, member.ID, p.VenueID, now)
	if err != nil {
		return nil, &status.RejectedError{
			Reason:  status.ReasonNoAvailableCredit,
			Message: "Could not load credit balance",
			Err:     err,
		}
	}

	balance := models.AvailableBalance(credits, now)
	if !balance.IsPositive() {
		return nil, status.Reject(status.ReasonNoAvailableCredit, "No available credit at this venue")
	}

	if err := s.store.RecordMemberVisit(ctx, member.ID, now); err != nil {
		log.Printf("verify: member %s visit stamp failed: %v", member.ID, err)
	}

	return &models.Verification{
		Result: &models.VerifiedResult{
			Kind:             models.PayloadTypeMemberCredential,
			MemberID:         member.ID,
			MemberName:       models.Mask(member.Name),
			MemberTier:       member.Tier,
			AvailableBalance: balance,
			VerifiedAt:       now,
		},
	}, nil
}

// sameDay compares two instants date-only in the venue's timezone, ignoring
// the time component and whatever offset the stored value carried.
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
