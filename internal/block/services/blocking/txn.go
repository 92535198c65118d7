package blocking

import (
	"context"
	"errors"
	"fmt"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// txnStep is one server request in a multi-step update. undo reverts a
// completed do; it is nil for steps that never need reverting because
// nothing runs after them.
type txnStep struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// txn runs steps in order. When a step fails, the completed steps are
// undone in reverse order. A failed undo turns the result into a
// *domain.InconsistentStateError.
type txn struct {
	op     string
	list   string
	steps  []txnStep
	logger log.Logger
}

func newTxn(op, list string, logger log.Logger) *txn {
	return &txn{op: op, list: list, logger: logger}
}

func (t *txn) add(name string, do, undo func(ctx context.Context) error) {
	t.steps = append(t.steps, txnStep{name: name, do: do, undo: undo})
}

func (t *txn) run(ctx context.Context) error {
	for i, s := range t.steps {
		err := s.do(ctx)
		if err == nil {
			t.logger.Debug(map[string]any{"step": s.name}, "step completed")
			continue
		}
		err = fmt.Errorf("%s: %w", s.name, err)
		if i == 0 {
			return err
		}

		completed := make([]string, i)
		for j := range i {
			completed[j] = t.steps[j].name
		}
		if cerr := t.compensate(ctx, i); cerr != nil {
			t.logger.Error(map[string]any{
				"step":         s.name,
				"completed":    completed,
				"error":        err.Error(),
				"compensation": cerr.Error(),
			}, "rollback failed, server state is inconsistent")
			return &domain.InconsistentStateError{
				Op:              t.op,
				List:            t.list,
				Failed:          s.name,
				Completed:       completed,
				Err:             err,
				CompensationErr: cerr,
			}
		}
		t.logger.Warn(map[string]any{
			"step":      s.name,
			"completed": completed,
			"error":     err.Error(),
		}, "step failed, completed steps rolled back")
		return err
	}
	return nil
}

// compensate undoes steps[:failed] in reverse. It runs detached from ctx's
// cancellation since ctx expiring is a common reason for the failure.
func (t *txn) compensate(ctx context.Context, failed int) error {
	cctx := context.WithoutCancel(ctx)
	var errs []error
	for j := failed - 1; j >= 0; j-- {
		s := t.steps[j]
		if s.undo == nil {
			errs = append(errs, fmt.Errorf("%s cannot be undone", s.name))
			continue
		}
		if err := s.undo(cctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
