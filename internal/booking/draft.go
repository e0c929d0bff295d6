package booking

import (
	"fmt"
	"strings"
	"time"
)

// Selection is a chosen catalog entry.
type Selection struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (s Selection) IsZero() bool { return s.ID == "" && s.Name == "" }

type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

// Code is the backend's bookingTime value.
func (s Shift) Code() (int, error) {
	switch s {
	case ShiftMorning:
		return 1, nil
	case ShiftAfternoon:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: shift %q", ErrInvalidSelection, string(s))
	}
}

type PaymentType string

const (
	PaymentCash   PaymentType = "cash"
	PaymentOnline PaymentType = "online"
)

// Code is the backend's paymentMethod value.
func (p PaymentType) Code() (int, error) {
	switch p {
	case PaymentCash:
		return 1, nil
	case PaymentOnline:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: payment type %q", ErrInvalidSelection, string(p))
	}
}

// Draft accumulates the patient's selections across the wizard. The same
// type carries a single step's partial result.
type Draft struct {
	HospitalID   string `json:"hospitalId,omitempty"`
	HospitalName string `json:"hospitalName,omitempty"`
	ServiceID    string `json:"serviceId,omitempty"`
	ServiceName  string `json:"serviceName,omitempty"`

	Specialty   Selection   `json:"specialty,omitzero"`
	Doctor      Selection   `json:"doctor,omitzero"`
	Date        string      `json:"date,omitempty"`
	Shift       Shift       `json:"shift,omitempty"`
	PaymentType PaymentType `json:"paymentType,omitempty"`
}

// Merge returns d with every field p sets copied over. Fields p leaves
// empty keep d's value, so merging never clears anything.
func (d Draft) Merge(p Draft) Draft {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&d.HospitalID, p.HospitalID)
	set(&d.HospitalName, p.HospitalName)
	set(&d.ServiceID, p.ServiceID)
	set(&d.ServiceName, p.ServiceName)
	set(&d.Date, p.Date)
	if !p.Specialty.IsZero() {
		d.Specialty = p.Specialty
	}
	if !p.Doctor.IsZero() {
		d.Doctor = p.Doctor
	}
	if p.Shift != "" {
		d.Shift = p.Shift
	}
	if p.PaymentType != "" {
		d.PaymentType = p.PaymentType
	}
	return d
}

const dateLayout = "2006-01-02"

// validateFor checks that p carries what a step of kind k must produce.
func validateFor(k StepKind, p Draft) error {
	switch k {
	case KindSpecialty:
		if strings.TrimSpace(p.Specialty.ID) == "" {
			return fmt.Errorf("%w: choose a specialty", ErrInvalidSelection)
		}
	case KindDoctor:
		if strings.TrimSpace(p.Doctor.ID) == "" {
			return fmt.Errorf("%w: choose a doctor", ErrInvalidSelection)
		}
	case KindSchedule:
		if _, err := time.Parse(dateLayout, p.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidSelection)
		}
		if _, err := p.Shift.Code(); err != nil {
			return err
		}
	case KindPaymentMethod:
		if _, err := p.PaymentType.Code(); err != nil {
			return err
		}
	case KindUnsupported:
		return ErrUnsupportedStep
	}
	return nil
}
