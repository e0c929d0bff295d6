package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medbook/internal/api"
)

func boolPtr(b bool) *bool { return &b }

func completeUser() *api.User {
	return &api.User{
		ID:            "7",
		FullName:      "Nguyen Van A",
		Phone:         "0901234567",
		DateOfBirth:   "1990-05-01",
		Gender:        boolPtr(false),
		NationalID:    "079090001234",
		Province:      "79",
		Ward:          "26734",
		StreetAddress: "12 Nguyen Trai",
	}
}

func TestCheckProfile_FalseGenderIsPresent(t *testing.T) {
	assert.NoError(t, CheckProfile(completeUser()))
}

func TestCheckProfile_ListsMissingFields(t *testing.T) {
	u := completeUser()
	u.Gender = nil
	u.Ward = "  "
	u.Phone = ""

	err := CheckProfile(u)
	var incomplete *IncompleteProfileError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"phone", "gender", "ward"}, incomplete.Missing)
	assert.Contains(t, err.Error(), "phone, gender, ward")

	require.ErrorAs(t, CheckProfile(nil), &incomplete)
}

func TestBuildPayload(t *testing.T) {
	d := Draft{
		HospitalID:  "3",
		ServiceID:   "9",
		Specialty:   Selection{ID: "5", Name: "Cardiology"},
		Doctor:      Selection{ID: "12"},
		Date:        "2025-03-10",
		Shift:       ShiftAfternoon,
		PaymentType: PaymentOnline,
	}

	req, err := BuildPayload("7", d)
	require.NoError(t, err)
	assert.Equal(t, "7", req.UserID)
	assert.Equal(t, int64(3), req.HospitalID)
	assert.Equal(t, int64(9), req.ServiceID)
	require.NotNil(t, req.SpecializationID)
	assert.Equal(t, int64(5), *req.SpecializationID)
	require.NotNil(t, req.DoctorID)
	assert.Equal(t, int64(12), *req.DoctorID)
	assert.Equal(t, 2, req.BookingTime)
	assert.Equal(t, 2, req.PaymentMethod)
}

func TestBuildPayload_OptionalIDsOmitted(t *testing.T) {
	req, err := BuildPayload("7", Draft{HospitalID: "3", ServiceID: "9", Date: "2025-03-10", Shift: ShiftMorning})
	require.NoError(t, err)
	assert.Nil(t, req.SpecializationID)
	assert.Nil(t, req.DoctorID)
	assert.Equal(t, 1, req.BookingTime)
	assert.Equal(t, 1, req.PaymentMethod, "no payment step books as cash")
}

func TestBuildPayload_Invalid(t *testing.T) {
	base := Draft{HospitalID: "3", ServiceID: "9", Date: "2025-03-10", Shift: ShiftMorning}
	tests := []struct {
		name   string
		mutate func(*Draft)
	}{
		{"missing hospital", func(d *Draft) { d.HospitalID = "" }},
		{"non numeric service", func(d *Draft) { d.ServiceID = "svc-9" }},
		{"non numeric doctor", func(d *Draft) { d.Doctor.ID = "dr-12" }},
		{"missing date", func(d *Draft) { d.Date = "" }},
		{"missing shift", func(d *Draft) { d.Shift = "" }},
		{"bad payment", func(d *Draft) { d.PaymentType = "crypto" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			_, err := BuildPayload("7", d)
			assert.ErrorIs(t, err, ErrInvalidSelection)
		})
	}
}
