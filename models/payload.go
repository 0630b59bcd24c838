package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"venue-system/internal/status"
)

type PayloadType string

const (
	PayloadTypeBookingEntry     PayloadType = "booking_entry"
	PayloadTypeMemberCredential PayloadType = "member_credential"
)

// URI scheme prefixes recognized on printed passes. Everything else a camera
// picks up (wifi QRs, menu links, random noise) is not our payload.
const (
	schemeBookingEntry     = "venue-entry://"
	schemeMemberCredential = "venue-member://"
)

const dateLayout = "2006-01-02"

// ScanPayload is one of the recognized QR payload variants.
type ScanPayload interface {
	PayloadType() PayloadType

	// GuardKey derives the deterministic duplicate-scan key for this payload.
	GuardKey() string
}

type BookingEntryPayload struct {
	BookingID    string `json:"booking_id"`
	SecurityCode string `json:"security_code"`
	BookingDate  string `json:"booking_date,omitempty"` // YYYY-MM-DD
	TableNumber  string `json:"table_number,omitempty"`
}

func (p BookingEntryPayload) PayloadType() PayloadType { return PayloadTypeBookingEntry }

func (p BookingEntryPayload) GuardKey() string {
	return fmt.Sprintf("booking:%s:%s", p.BookingID, p.SecurityCode)
}

type MemberCredentialPayload struct {
	MemberID     string `json:"member_id"`
	SecurityCode string `json:"security_code,omitempty"`
	VenueID      string `json:"venue_id,omitempty"`
	MemberTier   string `json:"member_tier,omitempty"`
}

func (p MemberCredentialPayload) PayloadType() PayloadType { return PayloadTypeMemberCredential }

func (p MemberCredentialPayload) GuardKey() string {
	return "member:" + p.MemberID
}

// payloadEnvelope is the canonical JSON wire form shared by both variants.
type payloadEnvelope struct {
	Type         PayloadType `json:"type"`
	BookingID    string      `json:"booking_id,omitempty"`
	SecurityCode string      `json:"security_code,omitempty"`
	BookingDate  string      `json:"booking_date,omitempty"`
	TableNumber  string      `json:"table_number,omitempty"`
	MemberID     string      `json:"member_id,omitempty"`
	VenueID      string      `json:"venue_id,omitempty"`
	MemberTier   string      `json:"member_tier,omitempty"`
}

// DecodePayload parses raw scanned text into a typed payload. Any text that
// does not structurally look like one of ours, or fails validation, returns
// status.ErrPayloadNotRecognized without touching the remote store.
func DecodePayload(raw string) (ScanPayload, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, status.ErrPayloadNotRecognized
	}

	switch {
	case strings.HasPrefix(s, "{"):
		return decodeJSONPayload(s)
	case strings.HasPrefix(s, schemeBookingEntry):
		return decodeBookingURI(strings.TrimPrefix(s, schemeBookingEntry))
	case strings.HasPrefix(s, schemeMemberCredential):
		return decodeMemberURI(strings.TrimPrefix(s, schemeMemberCredential))
	default:
		return nil, status.ErrPayloadNotRecognized
	}
}

func decodeJSONPayload(s string) (ScanPayload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, status.ErrPayloadNotRecognized
	}

	switch env.Type {
	case PayloadTypeBookingEntry:
		p := BookingEntryPayload{
			BookingID:    env.BookingID,
			SecurityCode: env.SecurityCode,
			BookingDate:  env.BookingDate,
			TableNumber:  env.TableNumber,
		}
		return p, validateBookingEntry(p)
	case PayloadTypeMemberCredential:
		p := MemberCredentialPayload{
			MemberID:     env.MemberID,
			SecurityCode: env.SecurityCode,
			VenueID:      env.VenueID,
			MemberTier:   env.MemberTier,
		}
		return p, validateMemberCredential(p)
	default:
		return nil, status.ErrPayloadNotRecognized
	}
}

func decodeBookingURI(rest string) (ScanPayload, error) {
	id, query, _ := strings.Cut(rest, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, status.ErrPayloadNotRecognized
	}

	p := BookingEntryPayload{
		BookingID:    id,
		SecurityCode: values.Get("code"),
		BookingDate:  values.Get("date"),
		TableNumber:  values.Get("table"),
	}
	return p, validateBookingEntry(p)
}

func decodeMemberURI(rest string) (ScanPayload, error) {
	id, query, _ := strings.Cut(rest, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, status.ErrPayloadNotRecognized
	}

	p := MemberCredentialPayload{
		MemberID:     id,
		SecurityCode: values.Get("code"),
		VenueID:      values.Get("venue"),
		MemberTier:   values.Get("tier"),
	}
	return p, validateMemberCredential(p)
}

func validateBookingEntry(p BookingEntryPayload) error {
	if p.BookingID == "" || p.SecurityCode == "" {
		return status.ErrPayloadNotRecognized
	}
	if p.BookingDate != "" {
		if _, err := time.Parse(dateLayout, p.BookingDate); err != nil {
			return status.ErrPayloadNotRecognized
		}
	}
	return nil
}

func validateMemberCredential(p MemberCredentialPayload) error {
	if p.MemberID == "" {
		return status.ErrPayloadNotRecognized
	}
	return nil
}

// EncodeBookingEntry produces the canonical QR text for a booking entry pass.
func EncodeBookingEntry(p BookingEntryPayload) (string, error) {
	if err := validateBookingEntry(p); err != nil {
		return "", err
	}
	return encodeEnvelope(payloadEnvelope{
		Type:         PayloadTypeBookingEntry,
		BookingID:    p.BookingID,
		SecurityCode: p.SecurityCode,
		BookingDate:  p.BookingDate,
		TableNumber:  p.TableNumber,
	})
}

// EncodeMemberCredential produces the canonical QR text for a member pass.
func EncodeMemberCredential(p MemberCredentialPayload) (string, error) {
	if err := validateMemberCredential(p); err != nil {
		return "", err
	}
	return encodeEnvelope(payloadEnvelope{
		Type:         PayloadTypeMemberCredential,
		MemberID:     p.MemberID,
		SecurityCode: p.SecurityCode,
		VenueID:      p.VenueID,
		MemberTier:   p.MemberTier,
	})
}

func encodeEnvelope(env payloadEnvelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
