package status

import (
	"errors"
	"fmt"
)

// Reason identifies why a verification attempt was rejected. Every rejection
// carries a distinct reason so door staff can decide whether to retry or
// escalate.
type Reason string

const (
	ReasonBookingNotFound      Reason = "booking_not_found"
	ReasonBookingNotConfirmed  Reason = "booking_not_confirmed"
	ReasonWrongDate            Reason = "wrong_date"
	ReasonInvalidSecurityCode  Reason = "invalid_security_code"
	ReasonMemberNotFound       Reason = "member_not_found"
	ReasonSecurityCodeMismatch Reason = "security_code_mismatch"
	ReasonNoAvailableCredit    Reason = "no_available_credit"
)

// RejectedError is the terminal rejected state of a verification attempt.
type RejectedError struct {
	Reason  Reason
	Message string
	Detail  string
	Err     error
}

func (e *RejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("verify: %s (%s)", e.Message, e.Detail)
	}
	return fmt.Sprintf("verify: %s", e.Message)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func Reject(reason Reason, message string) *RejectedError {
	return &RejectedError{Reason: reason, Message: message}
}

func RejectDetail(reason Reason, message, detail string) *RejectedError {
	return &RejectedError{Reason: reason, Message: message, Detail: detail}
}

var (
	// ErrPayloadNotRecognized means the scanned text is not one of ours.
	// Callers must drop it silently, it is not an operator-facing error.
	ErrPayloadNotRecognized = errors.New("scan: payload not recognized")

	ErrScanInFlight  = errors.New("scan: another scan is being processed")
	ErrScanCooldown  = errors.New("scan: cooldown window active")
	ErrDuplicateScan = errors.New("scan: duplicate of a recently processed scan")

	ErrSessionNotFound = errors.New("scan: session not found")
	ErrBadPasscode     = errors.New("scan: invalid station passcode")
)

// Camera collaborator failures. All of them are terminal for the capture
// session and require an explicit restart by the operator.
var (
	ErrCameraPermissionDenied = errors.New("camera: permission denied")
	ErrCameraNotFound         = errors.New("camera: no capture device found")
	ErrCameraInUse            = errors.New("camera: device already in use")
	ErrCameraPlayback         = errors.New("camera: playback failed")
)
