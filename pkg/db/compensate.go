package db

import "go.uber.org/zap"

// Compensations collects the undo statements of an in-flight multi-step
// operation. The store has no rollback, so on failure the completed steps are
// reverted explicitly, in reverse order, before the error is surfaced.
type Compensations struct {
	steps []func() error
}

func NewCompensations() *Compensations {
	return &Compensations{}
}

// Add registers the undo for a step that just succeeded.
func (c *Compensations) Add(undo func() error) {
	c.steps = append(c.steps, undo)
}

// Revert replays the registered undos newest-first. A failing undo is logged
// and the remaining undos still run; at that point the store needs operator
// attention, but stopping early would only widen the inconsistency.
func (c *Compensations) Revert(log *zap.Logger) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](); err != nil {
			log.Error("compensating write failed", zap.Int("step", i), zap.Error(err))
		}
	}
	c.steps = nil
}

// Discard drops the undos after the operation committed.
func (c *Compensations) Discard() {
	c.steps = nil
}
