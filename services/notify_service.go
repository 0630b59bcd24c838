package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"venue-system/models"
	"venue-system/utils"

	pubnub "github.com/pubnub/go"
)

// DefaultNotifyCooldown is how long a (booking, email) pair is muted after a
// confirmation send, to avoid double emails from repeated scans.
const DefaultNotifyCooldown = 5 * time.Minute

// NotifyService dispatches best-effort side effects after a successful
// verification: a confirmation email to the guest and a realtime event on
// the venue dashboard channel. All of it is fire-and-forget; failures here
// are logged and never reach the operator or change the verification result.
type NotifyService struct {
	pubnub   *pubnub.PubNub
	mailer   Mailer
	breaker  *utils.CircuitBreaker
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

func NewNotifyService(pn *pubnub.PubNub, mailer Mailer, cooldown time.Duration) *NotifyService {
	if cooldown <= 0 {
		cooldown = DefaultNotifyCooldown
	}
	return &NotifyService{
		pubnub:   pn,
		mailer:   mailer,
		breaker:  utils.NewCircuitBreaker("confirmation-mail"),
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// DispatchCheckIn queues the check-in confirmation email. At most one send
// per (bookingID, email) pair within the cooldown window.
func (s *NotifyService) DispatchCheckIn(target *models.NotificationTarget) {
	if target == nil || target.Email == "" || s.mailer == nil {
		return
	}

	key := target.BookingID + "|" + target.Email
	if !s.allow(key) {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		subject := fmt.Sprintf("Checked in at %s", target.VenueName)
		text := fmt.Sprintf("You are checked in at %s", target.VenueName)
		if target.Table != "" {
			text += fmt.Sprintf(", table %s", target.Table)
		}
		if target.Time != "" {
			text += fmt.Sprintf(" (%s)", target.Time)
		}
		text += ". Enjoy your visit."

		err := s.breaker.Do(func() error {
			return s.mailer.Send(ctx, target.Email, target.Name, subject, text, "")
		})
		if err != nil {
			log.Printf("notify: confirmation for booking %s failed: %v", target.BookingID, err)
		}
	}()
}

// PublishScanEvent pushes the outcome of a scan to the venue dashboard
// channel feeding the realtime operator views.
func (s *NotifyService) PublishScanEvent(venueID string, entry models.ScanLogEntry) {
	if s.pubnub == nil || venueID == "" {
		return
	}

	go func() {
		_, pnStatus, err := s.pubnub.Publish().
			Channel(fmt.Sprintf("venue-%s", venueID)).
			Message(map[string]any{
				"type":       "scan_event",
				"session_id": entry.SessionID,
				"station_id": entry.StationID,
				"kind":       entry.Kind,
				"outcome":    entry.Outcome,
				"reason":     entry.Reason,
				"scanned_at": entry.ScannedAt.Unix(),
			}).
			Execute()
		if err != nil {
			log.Printf("notify: publish scan event for venue %s failed: %v", venueID, err)
		} else if pnStatus.Error != nil {
			log.Printf("notify: publish scan event for venue %s returned error status", venueID)
		}
	}()
}

func (s *NotifyService) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sentAt, ok := s.lastSent[key]; ok && now.Sub(sentAt) < s.cooldown {
		return false
	}

	// Drop stale entries so the map stays bounded across long shifts.
	for k, sentAt := range s.lastSent {
		if now.Sub(sentAt) >= s.cooldown {
			delete(s.lastSent, k)
		}
	}

	s.lastSent[key] = now
	return true
}
