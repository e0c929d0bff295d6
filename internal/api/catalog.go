package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// ServiceSteps returns the raw step descriptors configured for a service,
// inactive ones included.
func (c *Client) ServiceSteps(ctx context.Context, serviceID string) ([]ServiceStep, error) {
	if strings.TrimSpace(serviceID) == "" {
		return nil, errors.New("api: service steps: service id is required")
	}
	var steps []ServiceStep
	path := "/services/" + escape(serviceID) + "/servicesteps"
	if err := c.doJSON(ctx, "service steps", http.MethodGet, "/services/{id}/servicesteps", path, nil, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func (c *Client) ListHospitals(ctx context.Context) ([]Hospital, error) {
	var hospitals []Hospital
	if err := c.doJSON(ctx, "list hospitals", http.MethodGet, "/hospitals", "/hospitals", nil, &hospitals); err != nil {
		return nil, err
	}
	return hospitals, nil
}

func (c *Client) GetHospital(ctx context.Context, hospitalID string) (*Hospital, error) {
	if strings.TrimSpace(hospitalID) == "" {
		return nil, errors.New("api: get hospital: hospital id is required")
	}
	var hospital Hospital
	if err := c.doJSON(ctx, "get hospital", http.MethodGet, "/hospitals/{id}", "/hospitals/"+escape(hospitalID), nil, &hospital); err != nil {
		return nil, err
	}
	return &hospital, nil
}

func (c *Client) HospitalSpecialties(ctx context.Context, hospitalID string) ([]Specialty, error) {
	if strings.TrimSpace(hospitalID) == "" {
		return nil, errors.New("api: hospital specialties: hospital id is required")
	}
	var specialties []Specialty
	path := "/hospitals/" + escape(hospitalID) + "/specializations"
	if err := c.doJSON(ctx, "hospital specialties", http.MethodGet, "/hospitals/{id}/specializations", path, nil, &specialties); err != nil {
		return nil, err
	}
	return specialties, nil
}

// HospitalDoctors lists doctors at a hospital, optionally narrowed to one
// specialty.
func (c *Client) HospitalDoctors(ctx context.Context, hospitalID, specialtyID string) ([]Doctor, error) {
	if strings.TrimSpace(hospitalID) == "" {
		return nil, errors.New("api: hospital doctors: hospital id is required")
	}
	path := "/hospitals/" + escape(hospitalID) + "/doctors"
	if s := strings.TrimSpace(specialtyID); s != "" {
		path += "?" + url.Values{"specializationId": {s}}.Encode()
	}
	var doctors []Doctor
	if err := c.doJSON(ctx, "hospital doctors", http.MethodGet, "/hospitals/{id}/doctors", path, nil, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}

// DoctorSchedules lists the shifts a doctor works on date (YYYY-MM-DD).
func (c *Client) DoctorSchedules(ctx context.Context, doctorID, date string) ([]Schedule, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, errors.New("api: doctor schedules: doctor id is required")
	}
	q := url.Values{"doctorId": {strings.TrimSpace(doctorID)}}
	if d := strings.TrimSpace(date); d != "" {
		q.Set("date", d)
	}
	var schedules []Schedule
	if err := c.doJSON(ctx, "doctor schedules", http.MethodGet, "/schedules", "/schedules?"+q.Encode(), nil, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}
