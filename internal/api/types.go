// Package api is the typed client for the booking platform's REST backend.
package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ID accepts both JSON numbers and strings; the backend is not consistent
// about which it sends.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("api: invalid id %s: %w", s, err)
		}
		*id = ID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("api: invalid id %s: %w", s, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Credentials are what the patient types on the login screen.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is returned by token issuance and refresh. Refresh responses may
// omit the refresh token, in which case the old one stays valid.
type TokenPair struct {
	AccessToken            string    `json:"accessToken"`
	RefreshToken           string    `json:"refreshToken,omitempty"`
	RefreshTokenExpiryTime Timestamp `json:"refreshTokenExpiryTime,omitzero"`
}

// Timestamp decodes RFC 3339 strings, zone-less ISO strings (read as UTC)
// and epoch numbers in seconds or milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if !strings.HasPrefix(s, `"`) {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("api: invalid timestamp %s: %w", s, err)
		}
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("api: invalid timestamp %s: %w", s, err)
		}
		// Anything past 1e11 cannot be seconds for dates we care about.
		if v > 1e11 {
			t.Time = time.UnixMilli(v).UTC()
		} else {
			t.Time = time.Unix(v, 0).UTC()
		}
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("api: invalid timestamp %s: %w", s, err)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, str); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("api: unrecognised timestamp %q", str)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

// User is the patient profile.
type User struct {
	ID            ID     `json:"id"`
	Username      string `json:"username,omitempty"`
	FullName      string `json:"fullName"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone"`
	DateOfBirth   string `json:"dateOfBirth"`
	Gender        *bool  `json:"gender"`
	NationalID    string `json:"nationalId"`
	Province      string `json:"province"`
	Ward          string `json:"ward"`
	StreetAddress string `json:"streetAddress"`
}

// ServiceStep describes one stage of the booking wizard for a service.
type ServiceStep struct {
	ID        ID   `json:"id"`
	StepType  int  `json:"stepType"`
	StepOrder int  `json:"stepOrder"`
	Status    bool `json:"status"`
}

type Hospital struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type Specialty struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Doctor struct {
	ID          ID     `json:"id"`
	FullName    string `json:"fullName"`
	SpecialtyID ID     `json:"specializationId,omitempty"`
	Title       string `json:"title,omitempty"`
}

// Schedule is one bookable shift on a given date.
type Schedule struct {
	ID        ID     `json:"id"`
	DoctorID  ID     `json:"doctorId"`
	Date      string `json:"date"`
	Shift     int    `json:"shift"`
	Available bool   `json:"available"`
}

// Appointment is a booking as shown in the patient's history.
type Appointment struct {
	ID              ID     `json:"id"`
	HospitalName    string `json:"hospitalName,omitempty"`
	ServiceName     string `json:"serviceName,omitempty"`
	DoctorName      string `json:"doctorName,omitempty"`
	AppointmentDate string `json:"appointmentDate"`
	BookingTime     int    `json:"bookingTime"`
	PaymentMethod   int    `json:"paymentMethod"`
	Status          string `json:"status"`
}

// AppointmentRequest is the body of POST /appointments/book.
type AppointmentRequest struct {
	UserID           string `json:"userId,omitempty"`
	HospitalID       int64  `json:"hospitalId"`
	ServiceID        int64  `json:"serviceId"`
	SpecializationID *int64 `json:"specializationId,omitempty"`
	DoctorID         *int64 `json:"doctorId,omitempty"`
	AppointmentDate  string `json:"appointmentDate"`
	BookingTime      int    `json:"bookingTime"`
	PaymentMethod    int    `json:"paymentMethod"`
}

// BookingResult is the response of POST /appointments/book. Keys lists every
// top-level key the backend sent so callers can report unexpected shapes.
type BookingResult struct {
	AppointmentID ID     `json:"appointmentId"`
	OrderCode     ID     `json:"orderCode"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkoutUrl"`
	PaymentURL    string `json:"paymentUrl"`
	PaymentLinkID string `json:"paymentLinkId"`

	Keys []string `json:"-"`
}

func (r *BookingResult) UnmarshalJSON(b []byte) error {
	type plain BookingResult
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err == nil {
		for k := range raw {
			p.Keys = append(p.Keys, k)
		}
		sort.Strings(p.Keys)
	}
	*r = BookingResult(p)
	return nil
}

// Payment is a PayOS payment as tracked by the backend.
type Payment struct {
	OrderCode   ID     `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
}
