package booking

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/medbook/internal/api"
)

// CheckProfile returns an *IncompleteProfileError naming every required
// field the profile lacks. Gender is a pointer: false is a valid answer,
// only nil is missing.
func CheckProfile(u *api.User) error {
	if u == nil {
		return &IncompleteProfileError{Missing: []string{"profile"}}
	}
	var missing []string
	need := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	need("full name", u.FullName)
	need("date of birth", u.DateOfBirth)
	need("phone", u.Phone)
	if u.Gender == nil {
		missing = append(missing, "gender")
	}
	need("national ID", u.NationalID)
	need("province", u.Province)
	need("ward", u.Ward)
	need("street address", u.StreetAddress)
	if len(missing) > 0 {
		return &IncompleteProfileError{Missing: missing}
	}
	return nil
}

// BuildPayload turns a finished draft into the booking request. Optional
// specialty and doctor ids are sent only when chosen. A draft without a
// payment type books as cash.
func BuildPayload(userID string, d Draft) (api.AppointmentRequest, error) {
	hospitalID, err := parseID("hospital", d.HospitalID)
	if err != nil {
		return api.AppointmentRequest{}, err
	}
	serviceID, err := parseID("service", d.ServiceID)
	if err != nil {
		return api.AppointmentRequest{}, err
	}
	if d.Date == "" {
		return api.AppointmentRequest{}, fmt.Errorf("%w: appointment date is required", ErrInvalidSelection)
	}
	shift, err := d.Shift.Code()
	if err != nil {
		return api.AppointmentRequest{}, err
	}
	payment := d.PaymentType
	if payment == "" {
		payment = PaymentCash
	}
	method, err := payment.Code()
	if err != nil {
		return api.AppointmentRequest{}, err
	}

	req := api.AppointmentRequest{
		UserID:          userID,
		HospitalID:      hospitalID,
		ServiceID:       serviceID,
		AppointmentDate: d.Date,
		BookingTime:     shift,
		PaymentMethod:   method,
	}
	if d.Specialty.ID != "" {
		id, err := parseID("specialty", d.Specialty.ID)
		if err != nil {
			return api.AppointmentRequest{}, err
		}
		req.SpecializationID = &id
	}
	if d.Doctor.ID != "" {
		id, err := parseID("doctor", d.Doctor.ID)
		if err != nil {
			return api.AppointmentRequest{}, err
		}
		req.DoctorID = &id
	}
	return req, nil
}

func parseID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s id is required", ErrInvalidSelection, field)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s id %q is not numeric", ErrInvalidSelection, field, raw)
	}
	return id, nil
}
