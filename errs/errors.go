// Package errs defines the error kinds and status type observed by
// batcher callers.
package errs

import "fmt"

// Kind classifies a Status the way callers are expected to switch on.
type Kind int

const (
	// KindNone marks a nil/zero Status.
	KindNone Kind = iota
	// KindBadKey is returned when partition-key extraction in Add fails.
	KindBadKey
	// KindInvalidState is returned when Add/FlushAsync is called out of turn.
	KindInvalidState
	// KindLookupFailed marks a ShardLocator failure recorded against a single op.
	KindLookupFailed
	// KindAborted marks an op that lost the race to Abort.
	KindAborted
	// KindRpcFailed marks a transport-level failure recorded against every op in an RPC.
	KindRpcFailed
	// KindRowError marks a per-row error from a write response.
	KindRowError
	// KindTransactionNotReady marks a Prepare readiness callback that reported failure.
	KindTransactionNotReady
	// KindIndexOutOfBounds marks a per-row error whose row index did not fit the RPC's op slice.
	KindIndexOutOfBounds
	// KindCombined is the aggregation sentinel emitted only in combine-mode
	// once two errors of different kinds have been recorded.
	KindCombined
	// KindGenericFailure is the default terminal status surfaced when
	// had_errors is true but combine-mode is off.
	KindGenericFailure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBadKey:
		return "bad_key"
	case KindInvalidState:
		return "invalid_state"
	case KindLookupFailed:
		return "lookup_failed"
	case KindAborted:
		return "aborted"
	case KindRpcFailed:
		return "rpc_failed"
	case KindRowError:
		return "row_error"
	case KindTransactionNotReady:
		return "transaction_not_ready"
	case KindIndexOutOfBounds:
		return "index_out_of_bounds"
	case KindCombined:
		return "combined"
	case KindGenericFailure:
		return "generic_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Status is the abstract status type threaded through the batcher's
// public API and its collaborator contracts.
type Status struct {
	Kind    Kind
	Message string
	Cause   error
}

// OK is the zero-value success status. Prefer comparing via Status.IsOK
// rather than equality, since Cause may differ between successes.
var OK = Status{Kind: KindNone}

// New constructs a Status of the given kind with a message.
func New(kind Kind, msg string) Status {
	return Status{Kind: kind, Message: msg}
}

// Newf constructs a Status of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) Status {
	return Status{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a Status of the given kind around a causal error.
func Wrap(kind Kind, err error) Status {
	if err == nil {
		return OK
	}
	return Status{Kind: kind, Message: err.Error(), Cause: err}
}

// IsOK reports whether the status represents success.
func (s Status) IsOK() bool {
	return s.Kind == KindNone
}

// Error implements the error interface so Status can be returned and
// compared anywhere Go code expects an error.
func (s Status) Error() string {
	if s.IsOK() {
		return "OK"
	}
	if s.Message == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}

// Unwrap exposes the causal error, if any, to errors.Is/errors.As.
func (s Status) Unwrap() error {
	return s.Cause
}
