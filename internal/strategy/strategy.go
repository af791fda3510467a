// Package strategy turns indicator snapshots into trade signals.
// Evaluators are pure: the same snapshot always yields the same signal.
package strategy

import (
	"tradegate/internal/domain"
)

// Evaluator produces at most one signal from a snapshot.
type Evaluator interface {
	// Name returns the strategy identifier recorded on emitted signals.
	Name() string

	// Evaluate returns a signal if the rule fires, nil otherwise.
	Evaluate(snap *domain.IndicatorSnapshot) *domain.Signal
}

// Registry holds evaluators in priority order.
type Registry struct {
	evaluators []Evaluator
}

// NewRegistry creates a registry evaluating in the given order.
func NewRegistry(evaluators ...Evaluator) *Registry {
	r := &Registry{}
	for _, e := range evaluators {
		r.Register(e)
	}
	return r
}

// Register appends an evaluator at the lowest priority.
func (r *Registry) Register(e Evaluator) {
	if e == nil {
		return
	}
	r.evaluators = append(r.evaluators, e)
}

// Names returns evaluator names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.evaluators))
	for i, e := range r.evaluators {
		names[i] = e.Name()
	}
	return names
}

// Len returns the number of registered evaluators.
func (r *Registry) Len() int {
	return len(r.evaluators)
}

// EvaluateAll runs every evaluator and returns the signals that fired,
// in priority order.
func (r *Registry) EvaluateAll(snap *domain.IndicatorSnapshot) []domain.Signal {
	if !snap.Valid() {
		return nil
	}

	var fired []domain.Signal
	for _, e := range r.evaluators {
		if sig := e.Evaluate(snap); sig != nil {
			fired = append(fired, *sig)
		}
	}
	return fired
}

// Select returns the fired signal with the highest base confidence.
// Ties resolve to the earlier registered evaluator. Returns nil when
// nothing fires.
func (r *Registry) Select(snap *domain.IndicatorSnapshot) *domain.Signal {
	fired := r.EvaluateAll(snap)
	if len(fired) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(fired); i++ {
		// strict comparison keeps the earlier one on ties
		if fired[i].BaseConfidence > fired[best].BaseConfidence {
			best = i
		}
	}

	sig := fired[best]
	return &sig
}
