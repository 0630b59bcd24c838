package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"venue-system/config"
	"venue-system/internal/status"
	"venue-system/models"
	"venue-system/monitoring"
	"venue-system/utils"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// scanLogLimit caps the per-venue audit trail kept in Redis.
const scanLogLimit = 200

// SessionManager tracks the active scanning sessions in-process and mirrors
// a registry entry per session to Redis so the admin dashboard can see which
// stations are live. Guard state itself never leaves the process.
type SessionManager struct {
	Redis    *redis.Client
	verifier *VerifyService
	notifier *NotifyService
	monitor  *monitoring.Monitor
	config   *config.Config

	mu       sync.RWMutex
	sessions map[string]*ScanSession
}

func NewSessionManager(redisClient *redis.Client, verifier *VerifyService, notifier *NotifyService, monitor *monitoring.Monitor, cfg *config.Config) *SessionManager {
	return &SessionManager{
		Redis:    redisClient,
		verifier: verifier,
		notifier: notifier,
		monitor:  monitor,
		config:   cfg,
		sessions: make(map[string]*ScanSession),
	}
}

// Open starts a scanning session for a station. When a station passcode hash
// is configured, the caller must present the matching passcode.
func (m *SessionManager) Open(ctx context.Context, venueID, stationID, passcode string) (*ScanSession, error) {
	if hash := m.config.StationPasscodeHash; hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
			return nil, status.ErrBadPasscode
		}
	}

	id, err := utils.GenerateCode(8)
	if err != nil {
		return nil, err
	}

	guard := NewScanGuard(m.config.ScanCooldown)
	session := NewScanSession(id, venueID, stationID, guard, m.verifier, m.notifier)
	session.OnOutcome(func(outcome ScanOutcome) {
		m.recordOutcome(session, outcome)
	})

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	sessionKey := fmt.Sprintf("scan:session:%s", id)
	if err := m.Redis.HSet(ctx, sessionKey,
		"venue", venueID,
		"station", stationID,
		"started_at", session.StartedAt.Unix(),
	).Err(); err != nil {
		log.Printf("session: registry write for %s failed: %v", id, err)
	}
	m.Redis.Expire(ctx, sessionKey, m.config.SessionTTL)

	return session, nil
}

// Get returns the live session, or status.ErrSessionNotFound.
func (m *SessionManager) Get(id string) (*ScanSession, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, status.ErrSessionNotFound
	}
	return session, nil
}

// Close stops a session and drops its guard state and registry entry.
func (m *SessionManager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return status.ErrSessionNotFound
	}

	session.Close()
	m.Redis.Del(ctx, fmt.Sprintf("scan:session:%s", id))

	return nil
}

// ActiveCount reports the number of live sessions in this process.
func (m *SessionManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RecentScans reads the venue's audit trail, newest first.
func (m *SessionManager) RecentScans(ctx context.Context, venueID string, limit int) ([]models.ScanLogEntry, error) {
	if limit <= 0 || limit > scanLogLimit {
		limit = scanLogLimit
	}

	raw, err := m.Redis.LRange(ctx, fmt.Sprintf("scan:log:%s", venueID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.ScanLogEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.ScanLogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (m *SessionManager) recordOutcome(session *ScanSession, outcome ScanOutcome) {
	entry := models.ScanLogEntry{
		SessionID: session.ID,
		StationID: session.StationID,
		Kind:      outcome.Kind,
		Outcome:   outcome.Status,
		Reason:    outcome.Reason,
		ScannedAt: time.Now(),
	}

	if m.monitor != nil {
		if outcome.Status == OutcomeSuppressed {
			m.monitor.TrackSuppressed(session.VenueID, outcome.Reason)
		} else {
			m.monitor.TrackScan(session.VenueID, outcome.Kind, outcome.Status)
			m.monitor.TrackVerifyDuration(outcome.Kind, outcome.Elapsed)
		}
	}

	if m.notifier != nil {
		m.notifier.PublishScanEvent(session.VenueID, entry)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	logKey := fmt.Sprintf("scan:log:%s", session.VenueID)
	if err := m.Redis.LPush(ctx, logKey, data).Err(); err != nil {
		log.Printf("session: audit append for venue %s failed: %v", session.VenueID, err)
		return
	}
	m.Redis.LTrim(ctx, logKey, 0, scanLogLimit-1)
}
