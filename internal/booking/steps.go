// Package booking drives the appointment wizard: it loads the steps a
// service is configured with, accumulates the patient's selections into a
// draft and submits the finished draft.
package booking

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/wolfman30/medbook/internal/api"
)

// StepKind is what a wizard step asks the patient for.
type StepKind int

const (
	// KindUnsupported is any step type this client does not know how to
	// render.
	KindUnsupported StepKind = iota
	KindSpecialty
	KindDoctor
	KindSchedule
	KindPaymentMethod
)

// KindOf maps the backend's numeric stepType.
func KindOf(stepType int) StepKind {
	switch stepType {
	case 1:
		return KindSpecialty
	case 2:
		return KindDoctor
	case 3:
		return KindSchedule
	case 4:
		return KindPaymentMethod
	default:
		return KindUnsupported
	}
}

func (k StepKind) String() string {
	switch k {
	case KindSpecialty:
		return "specialty"
	case KindDoctor:
		return "doctor"
	case KindSchedule:
		return "schedule"
	case KindPaymentMethod:
		return "payment method"
	default:
		return "unsupported step"
	}
}

// Step is one active step of a service's wizard.
type Step struct {
	ID    string   `json:"id"`
	Kind  StepKind `json:"kind"`
	Type  int      `json:"stepType"`
	Order int      `json:"stepOrder"`
}

// StepSource fetches raw step descriptors. *api.Client satisfies it.
type StepSource interface {
	ServiceSteps(ctx context.Context, serviceID string) ([]api.ServiceStep, error)
}

// LoadSteps returns the active steps for a service in ascending stepOrder.
// Steps sharing an order keep the backend's relative order. An empty result
// is not an error; the flow reports ErrNoSteps when it is used.
func LoadSteps(ctx context.Context, src StepSource, serviceID string) ([]Step, error) {
	if strings.TrimSpace(serviceID) == "" {
		return nil, fmt.Errorf("booking: load steps: service id is required")
	}
	raw, err := src.ServiceSteps(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("booking: load steps: %w", err)
	}
	return activeSteps(raw), nil
}

func activeSteps(raw []api.ServiceStep) []Step {
	steps := make([]Step, 0, len(raw))
	for _, s := range raw {
		if !s.Status {
			continue
		}
		steps = append(steps, Step{
			ID:    s.ID.String(),
			Kind:  KindOf(s.StepType),
			Type:  s.StepType,
			Order: s.StepOrder,
		})
	}
	slices.SortStableFunc(steps, func(a, b Step) int {
		return a.Order - b.Order
	})
	return steps
}
