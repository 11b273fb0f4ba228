package batcher

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
	"github.com/oasisprotocol/tablebatch/metrics"
)

// errorAggregator combines per-op failures into a batch-level status
// (spec.md §4.7). It always forwards every failure to the external
// ErrorSink; combine-mode additionally keeps a running multierror.Error
// to derive the first-error-wins-else-Combined rule.
type errorAggregator struct {
	mu sync.Mutex

	sink        api.ErrorSink
	combineMode bool
	metrics     *metrics.Collector

	hadErrors bool
	accum     *multierror.Error
	first     errs.Status
}

func newErrorAggregator(sink api.ErrorSink, combineMode bool, m *metrics.Collector) *errorAggregator {
	return &errorAggregator{sink: sink, combineMode: combineMode, metrics: m}
}

// record accumulates status against op. It calls into the external
// ErrorSink; callers must not hold the Batcher lock when calling this.
func (a *errorAggregator) record(op api.Operation, status errs.Status) {
	if a.sink != nil {
		a.sink.AddError(op, status)
	}
	if a.metrics != nil {
		a.metrics.OpErrorsTotal.WithLabelValues(status.Kind.String()).Inc()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.hadErrors = true
	if !a.combineMode {
		return
	}

	if a.accum == nil {
		a.first = status
	}
	a.accum = multierror.Append(a.accum, status)
}

// hasErrors reports whether any error has been recorded.
func (a *errorAggregator) hasErrors() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hadErrors
}

// terminalStatus derives the flush's terminal status per spec.md §4.7 /
// §4.7's combine-mode rule: OK if nothing failed; otherwise, in
// combine-mode, the first error unless a later error carries a
// different Kind (in which case the result collapses to KindCombined);
// outside combine-mode, a generic transport-failure status.
func (a *errorAggregator) terminalStatus() errs.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.hadErrors {
		return errs.OK
	}
	if !a.combineMode {
		return errs.New(errs.KindGenericFailure, "batch completed with op-level errors")
	}

	if a.accum == nil || len(a.accum.Errors) == 0 {
		return a.first
	}
	for _, e := range a.accum.Errors {
		st, ok := e.(errs.Status)
		if !ok {
			continue
		}
		if st.Kind != a.first.Kind {
			return errs.New(errs.KindCombined, "Multiple failures")
		}
	}
	return a.first
}
