package handlers

import (
	"errors"
	"net/http"
	"time"

	"venue-system/internal/status"
	"venue-system/models"
	"venue-system/services"
	"venue-system/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

type ScanHandler struct {
	app      *pocketbase.PocketBase
	sessions *services.SessionManager
}

func NewScanHandler(app *pocketbase.PocketBase, sessions *services.SessionManager) *ScanHandler {
	return &ScanHandler{
		app:      app,
		sessions: sessions,
	}
}

// OpenSession - start a scanning session for a station
func (h *ScanHandler) OpenSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		VenueID   string `json:"venue_id"`
		StationID string `json:"station_id"`
		Passcode  string `json:"passcode"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.VenueID == "" {
		return apis.NewBadRequestError("Venue ID required", nil)
	}

	session, err := h.sessions.Open(e.Request.Context(), req.VenueID, req.StationID, req.Passcode)
	if err != nil {
		if errors.Is(err, status.ErrBadPasscode) {
			return apis.NewForbiddenError("Invalid station passcode", nil)
		}
		return apis.NewBadRequestError("Failed to start scanning session", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session_id": session.ID,
		"venue_id":   session.VenueID,
		"station_id": session.StationID,
		"started_at": session.StartedAt,
	})
}

// VerifyScan - submit raw QR text decoded by the station
func (h *ScanHandler) VerifyScan(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	sessionID := e.Request.PathValue("sessionId")
	session, err := h.sessions.Get(sessionID)
	if err != nil {
		return apis.NewNotFoundError("Scanning session not found", err)
	}

	var req struct {
		Raw string `json:"raw"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	outcome := session.HandleScan(e.Request.Context(), req.Raw)

	return e.JSON(http.StatusOK, outcome)
}

// CloseSession - stop a scanning session
func (h *ScanHandler) CloseSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	sessionID := e.Request.PathValue("sessionId")
	if err := h.sessions.Close(e.Request.Context(), sessionID); err != nil {
		return apis.NewNotFoundError("Scanning session not found", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Session closed"})
}

// GetSession - current session state and counters
func (h *ScanHandler) GetSession(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	sessionID := e.Request.PathValue("sessionId")
	session, err := h.sessions.Get(sessionID)
	if err != nil {
		return apis.NewNotFoundError("Scanning session not found", err)
	}

	return e.JSON(http.StatusOK, session.Snapshot())
}

// RecentScans - venue scan audit trail, newest first
func (h *ScanHandler) RecentScans(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	venueID := e.Request.PathValue("venueId")
	entries, err := h.sessions.RecentScans(e.Request.Context(), venueID, 50)
	if err != nil {
		return apis.NewBadRequestError("Failed to load scan log", err)
	}

	return e.JSON(http.StatusOK, entries)
}

// IssueBookingQR - mint the entry QR text for a confirmed booking. Issues a
// security code on first use when the booking has none.
func (h *ScanHandler) IssueBookingQR(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	bookingID := e.Request.PathValue("bookingId")
	record, err := h.app.FindRecordById("bookings", bookingID)
	if err != nil {
		return apis.NewNotFoundError("Booking not found", err)
	}

	if record.GetString("status") != models.BookingStatusConfirmed {
		return apis.NewBadRequestError("Booking is not confirmed", nil)
	}

	code := record.GetString("qr_security_code")
	if code == "" {
		code, err = utils.GenerateCode(4)
		if err != nil {
			return apis.NewBadRequestError("Failed to issue security code", err)
		}
		record.Set("qr_security_code", code)
		if err := h.app.Save(record); err != nil {
			return apis.NewBadRequestError("Failed to save security code", err)
		}
	}

	bookingDate := record.GetDateTime("booking_date").Time()
	payload := models.BookingEntryPayload{
		BookingID:    record.Id,
		SecurityCode: code,
		TableNumber:  record.GetString("table_number"),
	}
	if !bookingDate.IsZero() {
		payload.BookingDate = bookingDate.Format("2006-01-02")
	}

	qrText, err := models.EncodeBookingEntry(payload)
	if err != nil {
		return apis.NewBadRequestError("Failed to encode QR payload", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"booking_id": record.Id,
		"qr_text":    qrText,
		"issued_at":  time.Now().UTC().Format(types.DefaultDateLayout),
	})
}
