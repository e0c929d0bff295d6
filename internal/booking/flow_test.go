package booking

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allSteps() []Step {
	return []Step{
		{ID: "s1", Kind: KindSpecialty, Type: 1, Order: 1},
		{ID: "s2", Kind: KindDoctor, Type: 2, Order: 2},
		{ID: "s3", Kind: KindSchedule, Type: 3, Order: 3},
		{ID: "s4", Kind: KindPaymentMethod, Type: 4, Order: 4},
	}
}

func seed() Draft {
	return Draft{HospitalID: "3", HospitalName: "Cho Ray", ServiceID: "9", ServiceName: "Kham tim mach"}
}

func TestFlow_AdvanceThroughAllSteps(t *testing.T) {
	f := NewFlow(allSteps(), Origin{}, seed())

	step, ok := f.Current()
	require.True(t, ok)
	assert.Equal(t, KindSpecialty, step.Kind)

	tr, err := f.Advance(Draft{Specialty: Selection{ID: "5", Name: "Cardiology"}})
	require.NoError(t, err)
	assert.Equal(t, StageSteps, tr.Stage)
	assert.Equal(t, 1, tr.Index)

	_, err = f.Advance(Draft{Doctor: Selection{ID: "12", Name: "Dr. Tran"}})
	require.NoError(t, err)
	_, err = f.Advance(Draft{Date: "2025-03-10", Shift: ShiftMorning})
	require.NoError(t, err)

	tr, err = f.Advance(Draft{PaymentType: PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, StageReview, tr.Stage)
	assert.Equal(t, 3, tr.Index, "review returns to the last step")

	want := seed()
	want.Specialty = Selection{ID: "5", Name: "Cardiology"}
	want.Doctor = Selection{ID: "12", Name: "Dr. Tran"}
	want.Date = "2025-03-10"
	want.Shift = ShiftMorning
	want.PaymentType = PaymentCash
	assert.Equal(t, want, tr.Draft)

	_, ok = f.Current()
	assert.False(t, ok, "no step is shown during review")

	tr = f.Retreat()
	assert.Equal(t, StageSteps, tr.Stage)
	assert.Equal(t, 3, tr.Index)
	assert.Equal(t, want, f.Draft())
}

func TestFlow_RetreatPreservesDraft(t *testing.T) {
	steps := allSteps()[:3]
	f := NewFlow(steps, Origin{}, seed())

	_, err := f.Advance(Draft{Specialty: Selection{ID: "5", Name: "Cardiology"}})
	require.NoError(t, err)
	afterFirst := f.Draft()

	_, err = f.Advance(Draft{Doctor: Selection{ID: "12"}})
	require.NoError(t, err)
	_, err = f.Advance(Draft{Date: "2025-03-10", Shift: ShiftAfternoon})
	require.NoError(t, err)
	require.Equal(t, StageReview, f.Stage())
	full := f.Draft()

	f.Retreat()
	tr := f.Retreat()
	assert.Equal(t, 1, tr.Index)

	got := f.Draft()
	assert.Equal(t, afterFirst.Specialty, got.Specialty, "step-1 fields unchanged")
	assert.Equal(t, afterFirst.HospitalID, got.HospitalID)
	assert.Equal(t, full, got, "retreat never removes or mutates fields")

	// Going forward again without re-entering anything keeps earlier values.
	_, err = f.Advance(Draft{Doctor: Selection{ID: "13"}})
	require.NoError(t, err)
	assert.Equal(t, "13", f.Draft().Doctor.ID)
	assert.Equal(t, "2025-03-10", f.Draft().Date)
}

func TestFlow_RetreatFromFirstStepExits(t *testing.T) {
	origin := Origin{Path: "/hospitals/3/services/9", Query: url.Values{"tab": {"services"}}}
	f := NewFlow(allSteps(), origin, seed())

	tr := f.Retreat()
	assert.Equal(t, StageExited, tr.Stage)
	require.NotNil(t, tr.Exit)
	assert.Equal(t, "/hospitals/3/services/9?tab=services", tr.Exit.URL())
	assert.Equal(t, seed(), f.Draft())

	_, err := f.Advance(Draft{Specialty: Selection{ID: "5"}})
	assert.ErrorIs(t, err, ErrNotOnStep)
}

func TestFlow_Validation(t *testing.T) {
	tests := []struct {
		name    string
		kind    StepKind
		partial Draft
		wantErr error
	}{
		{"specialty without id", KindSpecialty, Draft{Specialty: Selection{Name: "Cardiology"}}, ErrInvalidSelection},
		{"doctor without id", KindDoctor, Draft{}, ErrInvalidSelection},
		{"schedule bad date", KindSchedule, Draft{Date: "10/03/2025", Shift: ShiftMorning}, ErrInvalidSelection},
		{"schedule bad shift", KindSchedule, Draft{Date: "2025-03-10", Shift: "evening"}, ErrInvalidSelection},
		{"payment missing", KindPaymentMethod, Draft{}, ErrInvalidSelection},
		{"unsupported", KindUnsupported, Draft{Specialty: Selection{ID: "5"}}, ErrUnsupportedStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFlow([]Step{{ID: "x", Kind: tt.kind}}, Origin{}, seed())
			_, err := f.Advance(tt.partial)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.Index())
			assert.Equal(t, seed(), f.Draft(), "rejected input is not merged")
		})
	}
}

func TestFlow_NoSteps(t *testing.T) {
	f := NewFlow(nil, Origin{}, seed())

	_, ok := f.Current()
	assert.False(t, ok)
	_, err := f.Advance(Draft{Specialty: Selection{ID: "5"}})
	assert.ErrorIs(t, err, ErrNoSteps)
	assert.Equal(t, "booking: no steps configured", ErrNoSteps.Error())
}

func TestResume_RestoresIndexAndDraft(t *testing.T) {
	f := NewFlow(allSteps(), Origin{Path: "/services/9"}, seed())
	_, err := f.Advance(Draft{Specialty: Selection{ID: "5", Name: "Cardiology"}})
	require.NoError(t, err)
	_, err = f.Advance(Draft{Doctor: Selection{ID: "12"}})
	require.NoError(t, err)

	data, err := json.Marshal(f.State())
	require.NoError(t, err)
	var state NavigationState
	require.NoError(t, json.Unmarshal(data, &state))

	resumed := Resume(allSteps(), state)
	assert.Equal(t, 2, resumed.Index())
	assert.Equal(t, f.Draft(), resumed.Draft())
	step, ok := resumed.Current()
	require.True(t, ok)
	assert.Equal(t, KindSchedule, step.Kind)

	tr := resumed.Retreat()
	assert.Equal(t, 1, tr.Index)
	resumed.Retreat()
	tr = resumed.Retreat()
	require.NotNil(t, tr.Exit)
	assert.Equal(t, "/services/9", tr.Exit.URL())
}

func TestResume_ReviewAndClamping(t *testing.T) {
	resumed := Resume(allSteps(), NavigationState{Stage: StageReview, StepIndex: 3, ReturnIndex: 3, Draft: seed()})
	assert.Equal(t, StageReview, resumed.Stage())
	tr := resumed.Retreat()
	assert.Equal(t, 3, tr.Index)

	clamped := Resume(allSteps()[:2], NavigationState{Stage: StageSteps, StepIndex: 7})
	assert.Equal(t, 1, clamped.Index())

	empty := Resume(nil, NavigationState{Stage: StageReview, StepIndex: 2})
	assert.Equal(t, StageSteps, empty.Stage())
	_, ok := empty.Current()
	assert.False(t, ok)
}

func TestDraft_MergeIsAdditive(t *testing.T) {
	d := Draft{Specialty: Selection{ID: "5", Name: "Cardiology"}, Date: "2025-03-10"}
	merged := d.Merge(Draft{Doctor: Selection{ID: "12"}})

	assert.Equal(t, "5", merged.Specialty.ID)
	assert.Equal(t, "2025-03-10", merged.Date)
	assert.Equal(t, "12", merged.Doctor.ID)
	assert.Empty(t, d.Doctor.ID, "merge does not modify the receiver")

	merged = merged.Merge(Draft{Date: "2025-03-11"})
	assert.Equal(t, "2025-03-11", merged.Date)
	assert.Equal(t, "12", merged.Doctor.ID)
}
