package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"venue-system/internal/status"
	"venue-system/models"
)

// Outcome classification for one handled scan.
const (
	OutcomeIgnored    = "ignored"
	OutcomeSuppressed = "suppressed"
	OutcomeRejected   = "rejected"
	OutcomeVerified   = "verified"
)

// ScanOutcome is what one handled scan produced, in the shape the station
// UI displays.
type ScanOutcome struct {
	Status  string                 `json:"status"` // ignored, suppressed, rejected, verified
	Kind    string                 `json:"kind,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Message string                 `json:"message,omitempty"`
	Result  *models.VerifiedResult `json:"result,omitempty"`

	// Elapsed is the wall time of the verification run, for metrics only.
	Elapsed time.Duration `json:"-"`
}

// ScanSession owns the guard state and verification flow for one scanning
// station. It is created when scanning starts and destroyed when it stops;
// none of its state survives the session.
type ScanSession struct {
	ID        string
	VenueID   string
	StationID string
	StartedAt time.Time

	guard    *ScanGuard
	verifier *VerifyService
	notifier *NotifyService
	audit    func(ScanOutcome)
	now      func() time.Time

	mu         sync.Mutex
	state      VerifyState
	last       *ScanOutcome
	verified   int
	rejected   int
	suppressed int
}

func NewScanSession(id, venueID, stationID string, guard *ScanGuard, verifier *VerifyService, notifier *NotifyService) *ScanSession {
	return &ScanSession{
		ID:        id,
		VenueID:   venueID,
		StationID: stationID,
		StartedAt: time.Now(),
		guard:     guard,
		verifier:  verifier,
		notifier:  notifier,
		now:       time.Now,
	}
}

// OnOutcome registers a callback invoked after every admitted or rejected
// scan. Used by the session manager for the audit trail and metrics.
func (s *ScanSession) OnOutcome(fn func(ScanOutcome)) {
	s.audit = fn
}

// HandleScan is the single entry point for raw scanned text, used both by
// the station HTTP endpoint and the kiosk capture loop. Unrecognized text is
// dropped without an operator-facing error; admitted scans run the
// verification machine to a terminal state.
func (s *ScanSession) HandleScan(ctx context.Context, raw string) ScanOutcome {
	payload, err := models.DecodePayload(raw)
	if err != nil {
		return s.finish(ScanOutcome{Status: OutcomeIgnored})
	}

	kind := string(payload.PayloadType())
	key := payload.GuardKey()

	if err := s.guard.Admit(key, s.now()); err != nil {
		return s.finish(ScanOutcome{
			Status: OutcomeSuppressed,
			Kind:   kind,
			Reason: suppressReason(err),
		})
	}

	s.setState(StateValidating)

	started := s.now()
	verification, err := s.verifier.Verify(ctx, payload)
	elapsed := time.Since(started)
	if err != nil {
		s.guard.Done(key, false, s.now())
		s.setState(StateRejected)

		outcome := ScanOutcome{Status: OutcomeRejected, Kind: kind, Elapsed: elapsed}
		var rejected *status.RejectedError
		if errors.As(err, &rejected) {
			outcome.Reason = string(rejected.Reason)
			outcome.Message = rejected.Message
			if rejected.Detail != "" {
				outcome.Message += " (" + rejected.Detail + ")"
			}
		} else {
			outcome.Message = err.Error()
		}
		return s.finish(outcome)
	}

	s.guard.Done(key, true, s.now())
	s.setState(StateVerified)

	if s.notifier != nil && verification.Notify != nil {
		s.notifier.DispatchCheckIn(verification.Notify)
	}

	return s.finish(ScanOutcome{
		Status:  OutcomeVerified,
		Kind:    kind,
		Result:  verification.Result,
		Elapsed: elapsed,
	})
}

// Close clears guard state. The session must not be used afterwards.
func (s *ScanSession) Close() {
	s.guard.Reset()
	s.setState(StateIdle)
}

// Snapshot reports the session state for the status endpoint.
func (s *ScanSession) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := map[string]any{
		"session_id": s.ID,
		"venue_id":   s.VenueID,
		"station_id": s.StationID,
		"started_at": s.StartedAt,
		"state":      s.state.String(),
		"verified":   s.verified,
		"rejected":   s.rejected,
		"suppressed": s.suppressed,
	}
	if s.last != nil {
		snap["last_outcome"] = s.last
	}
	return snap
}

func (s *ScanSession) setState(state VerifyState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *ScanSession) finish(outcome ScanOutcome) ScanOutcome {
	s.mu.Lock()
	out := outcome
	s.last = &out
	switch outcome.Status {
	case OutcomeVerified:
		s.verified++
	case OutcomeRejected:
		s.rejected++
	case OutcomeSuppressed:
		s.suppressed++
	}
	s.mu.Unlock()

	if s.audit != nil && outcome.Status != OutcomeIgnored {
		s.audit(outcome)
	}
	return outcome
}

func suppressReason(err error) string {
	switch {
	case errors.Is(err, status.ErrScanInFlight):
		return "scan_in_flight"
	case errors.Is(err, status.ErrScanCooldown):
		return "cooldown"
	case errors.Is(err, status.ErrDuplicateScan):
		return "duplicate"
	default:
		return "suppressed"
	}
}
