package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCheckedIn = "checked_in"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

const (
	CreditStatusActive    = "active"
	CreditStatusUsed      = "used"
	CreditStatusExpired   = "expired"
	CreditStatusCancelled = "cancelled"
)

// Booking is the durable booking row owned by the remote store.
type Booking struct {
	ID            string    `json:"id"`
	VenueID       string    `json:"venue_id"`
	VenueName     string    `json:"venue_name"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Status        string    `json:"status"` // pending, confirmed, checked_in, cancelled, completed
	BookingDate   time.Time `json:"booking_date"`
	BookingTime   string    `json:"booking_time"`
	TableNumber   string    `json:"table_number"`
	GuestCount    int       `json:"guest_count"`
	SecurityCode  string    `json:"security_code"`
	ScanCount     int       `json:"scan_count"`
	LastScannedAt time.Time `json:"last_scanned_at"`
}

// Member is a credit-wallet holder at a venue.
type Member struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	VenueID      string    `json:"venue_id"`
	Tier         string    `json:"tier"`
	SecurityCode string    `json:"security_code"`
	LastVisit    time.Time `json:"last_visit"`
}

// VenueCredit is a pre-purchased, venue-scoped, expiring balance.
type VenueCredit struct {
	ID         string          `json:"id"`
	MemberID   string          `json:"member_id"`
	VenueID    string          `json:"venue_id"`
	Amount     decimal.Decimal `json:"amount"`
	UsedAmount decimal.Decimal `json:"used_amount"`
	Status     string          `json:"status"` // active, used, expired, cancelled
	ExpiresAt  time.Time       `json:"expires_at"`
}

func (c VenueCredit) Remaining() decimal.Decimal {
	return c.Amount.Sub(c.UsedAmount)
}

// Redeemable reports whether the credit can still be spent at the given time.
func (c VenueCredit) Redeemable(now time.Time) bool {
	return c.Status == CreditStatusActive &&
		c.Remaining().IsPositive() &&
		now.Before(c.ExpiresAt)
}

// AvailableBalance sums the remaining balance across redeemable credits.
func AvailableBalance(credits []VenueCredit, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, c := range credits {
		if c.Redeemable(now) {
			total = total.Add(c.Remaining())
		}
	}
	return total
}

// VerifiedResult is what the scanning station displays after a successful
// verification. Customer personal fields are masked; only operationally
// necessary fields are shown to staff.
type VerifiedResult struct {
	Kind PayloadType `json:"kind"`

	// Booking entry fields.
	BookingID    string `json:"booking_id,omitempty"`
	VenueName    string `json:"venue_name,omitempty"`
	BookingTime  string `json:"booking_time,omitempty"`
	TableNumber  string `json:"table_number,omitempty"`
	GuestCount   int    `json:"guest_count,omitempty"`
	CustomerName string `json:"customer_name,omitempty"` // masked

	// Member credential fields. Balance and tier are shown to staff because
	// they are needed to authorize spending.
	MemberID         string          `json:"member_id,omitempty"`
	MemberName       string          `json:"member_name,omitempty"` // masked
	MemberTier       string          `json:"member_tier,omitempty"`
	AvailableBalance decimal.Decimal `json:"available_balance,omitempty"`

	VerifiedAt time.Time `json:"verified_at"`
}

// Mask redacts a customer personal field for station display.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// NotificationTarget carries the unredacted delivery address for the
// post-verification confirmation. It never reaches the station display.
type NotificationTarget struct {
	BookingID string
	Email     string
	Name      string
	VenueName string
	Time      string
	Table     string
}

// Verification bundles the redacted station result with the optional
// notification side effect computed during the same run.
type Verification struct {
	Result *VerifiedResult
	Notify *NotificationTarget
}

// ScanLogEntry is the audit trail row kept per venue in Redis.
type ScanLogEntry struct {
	SessionID string    `json:"session_id"`
	StationID string    `json:"station_id"`
	Kind      string    `json:"kind,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}
