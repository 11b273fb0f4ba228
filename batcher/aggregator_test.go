package batcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oasisprotocol/tablebatch/errs"
	"github.com/oasisprotocol/tablebatch/metrics"
)

func TestAggregatorTerminalStatusOKWhenNoErrors(t *testing.T) {
	a := newErrorAggregator(nil, false, metrics.Noop())
	assert.True(t, a.terminalStatus().IsOK())
	assert.False(t, a.hasErrors())
}

func TestAggregatorNonCombineModeReportsGenericFailure(t *testing.T) {
	sink := &fakeErrorSink{}
	a := newErrorAggregator(sink, false, metrics.Noop())

	a.record(writeOp("k1"), errs.New(errs.KindRpcFailed, "boom"))

	assert.True(t, a.hasErrors())
	status := a.terminalStatus()
	assert.Equal(t, errs.KindGenericFailure, status.Kind)
	assert.Len(t, sink.snapshot(), 1)
}

func TestAggregatorCombineModeFirstErrorWins(t *testing.T) {
	sink := &fakeErrorSink{}
	a := newErrorAggregator(sink, true, metrics.Noop())

	a.record(writeOp("k1"), errs.New(errs.KindRpcFailed, "first"))
	a.record(writeOp("k2"), errs.New(errs.KindRpcFailed, "second"))

	status := a.terminalStatus()
	assert.Equal(t, errs.KindRpcFailed, status.Kind)
	assert.Equal(t, "first", status.Message)
}

func TestAggregatorCombineModeDifferentKindsCollapseToCombined(t *testing.T) {
	sink := &fakeErrorSink{}
	a := newErrorAggregator(sink, true, metrics.Noop())

	a.record(writeOp("k1"), errs.New(errs.KindRpcFailed, "first"))
	a.record(writeOp("k2"), errs.New(errs.KindLookupFailed, "different kind"))

	status := a.terminalStatus()
	assert.Equal(t, errs.KindCombined, status.Kind)
}
