package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoSteps              = errors.New("booking: no steps configured")
	ErrUnsupportedStep      = errors.New("booking: unsupported step")
	ErrInvalidSelection     = errors.New("booking: invalid selection")
	ErrNotOnStep            = errors.New("booking: flow is not on a step")
	ErrSlotUnavailable      = errors.New("booking: slot unavailable")
	ErrMissingPaymentLink   = errors.New("booking: booking response has no payment link")
	ErrSubmissionInProgress = errors.New("booking: submission already in progress")
)

// IncompleteProfileError lists the profile fields that must be filled in
// before a booking can be submitted.
type IncompleteProfileError struct {
	Missing []string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("booking: incomplete profile: missing %s", strings.Join(e.Missing, ", "))
}

// Messages shown to the patient. Raw errors are only logged.
const (
	MsgIncompleteProfile = "Please complete your profile (name, date of birth, phone, gender, national ID and address) before booking."
	MsgSlotUnavailable   = "This time slot is no longer available. Please choose another doctor or shift."
	MsgSessionExpired    = "Your session has expired. Please log in again."
	MsgBookingFailed     = "We could not complete your booking. Please try again later."
	MsgBookedCash        = "Your appointment is booked. Please pay at the hospital."
	MsgRedirectPayment   = "Redirecting you to the payment page..."
)
