package booking

// NavigationState is the part of a flow that survives leaving and
// re-entering the wizard. It round-trips through JSON.
type NavigationState struct {
	Stage       Stage  `json:"stage"`
	StepIndex   int    `json:"stepIndex"`
	ReturnIndex int    `json:"returnIndex"`
	Draft       Draft  `json:"draft"`
	Origin      Origin `json:"origin"`
}

// State captures the flow for later rehydration.
func (f *Flow) State() NavigationState {
	return NavigationState{
		Stage:       f.stage,
		StepIndex:   f.index,
		ReturnIndex: f.returnIndex,
		Draft:       f.draft,
		Origin:      f.origin,
	}
}

// Resume rebuilds a flow from saved state instead of starting over at the
// first step. Indices past the end are clamped to the last step.
func Resume(steps []Step, state NavigationState) *Flow {
	f := NewFlow(steps, state.Origin, state.Draft)
	f.index = clampIndex(state.StepIndex, len(steps))
	f.returnIndex = clampIndex(state.ReturnIndex, len(steps))

	switch state.Stage {
	case StageReview:
		if len(steps) > 0 {
			f.stage = StageReview
		}
	case StageExited:
		f.stage = StageExited
	default:
		f.stage = StageSteps
	}
	return f
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
