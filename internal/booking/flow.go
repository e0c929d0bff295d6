package booking

import (
	"fmt"
	"net/url"
	"slices"
)

// Stage is where the patient is in the booking flow.
type Stage string

const (
	StageSteps  Stage = "steps"
	StageReview Stage = "review"
	// StageExited means the patient backed out of the first step.
	StageExited Stage = "exited"
)

// Origin is the service page the flow was entered from, so backing out of
// the first step returns there with the same query.
type Origin struct {
	Path  string     `json:"path,omitempty"`
	Query url.Values `json:"query,omitempty"`
}

// URL renders the origin as a relative URL.
func (o Origin) URL() string {
	u := url.URL{Path: o.Path, RawQuery: o.Query.Encode()}
	return u.String()
}

// Transition describes where a call to Advance or Retreat moved the flow.
type Transition struct {
	Stage Stage
	// Index is the current step index while in StageSteps, and the index
	// review returns to while in StageReview.
	Index int
	Draft Draft
	// Exit is set when the flow was left through the first step.
	Exit *Origin
}

// Flow sequences the active steps of one service and accumulates the
// draft. It is not safe for concurrent use; one flow belongs to one
// patient interaction.
type Flow struct {
	steps       []Step
	index       int
	stage       Stage
	returnIndex int
	draft       Draft
	origin      Origin
}

// NewFlow starts a flow at the first step. seed carries context chosen
// before the wizard, such as the hospital and service.
func NewFlow(steps []Step, origin Origin, seed Draft) *Flow {
	return &Flow{
		steps:  slices.Clone(steps),
		stage:  StageSteps,
		draft:  seed,
		origin: origin,
	}
}

func (f *Flow) Steps() []Step { return slices.Clone(f.steps) }
func (f *Flow) Stage() Stage  { return f.stage }
func (f *Flow) Index() int    { return f.index }
func (f *Flow) Draft() Draft  { return f.draft }

// Current returns the step being shown. ok is false when there are no steps
// or the flow is not on a step.
func (f *Flow) Current() (step Step, ok bool) {
	if f.stage != StageSteps || len(f.steps) == 0 {
		return Step{}, false
	}
	return f.steps[f.index], true
}

// Advance validates partial against the current step, merges it into the
// draft and moves forward. Completing the last step moves to review,
// remembering the last step as the place to return to.
func (f *Flow) Advance(partial Draft) (Transition, error) {
	if len(f.steps) == 0 {
		return Transition{}, ErrNoSteps
	}
	if f.stage != StageSteps {
		return Transition{}, fmt.Errorf("%w: stage is %s", ErrNotOnStep, f.stage)
	}
	step := f.steps[f.index]
	if err := validateFor(step.Kind, partial); err != nil {
		return Transition{}, err
	}

	f.draft = f.draft.Merge(partial)
	if f.index == len(f.steps)-1 {
		f.stage = StageReview
		f.returnIndex = f.index
		return Transition{Stage: StageReview, Index: f.returnIndex, Draft: f.draft}, nil
	}
	f.index++
	return Transition{Stage: StageSteps, Index: f.index, Draft: f.draft}, nil
}

// Retreat moves back. From review it returns to the last step; from the
// first step it leaves the flow. The draft is never modified.
func (f *Flow) Retreat() Transition {
	switch f.stage {
	case StageReview:
		f.stage = StageSteps
		f.index = f.returnIndex
	case StageSteps:
		if f.index == 0 {
			f.stage = StageExited
			origin := f.origin
			return Transition{Stage: StageExited, Draft: f.draft, Exit: &origin}
		}
		f.index--
	case StageExited:
		origin := f.origin
		return Transition{Stage: StageExited, Draft: f.draft, Exit: &origin}
	}
	return Transition{Stage: f.stage, Index: f.index, Draft: f.draft}
}
