package pipeline

import (
	"errors"

	"postroom/internal/types"
)

// ApplyResult reports what a pipeline step did with a callback. Skips are
// first-class outcomes, not errors: the scanner and sanitiser deliver
// callbacks at-least-once, so a step finding its notification already
// past the expected pre-state logs and does nothing, and callers must
// never have to catch anything to detect that.
type ApplyResult int

const (
	// Applied means the step mutated state.
	Applied ApplyResult = iota
	// SkippedAlreadyProcessed means the pre-state guard fired: the
	// notification was not in the state this step expects, so the
	// callback is a duplicate or arrived out of order. No mutation.
	SkippedAlreadyProcessed
	// Failed means the step errored; the accompanying error says how.
	Failed
)

// String implements fmt.Stringer for log output.
func (r ApplyResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case SkippedAlreadyProcessed:
		return "skipped_already_processed"
	default:
		return "failed"
	}
}

// fatalCodes are the error codes that must never be retried: referential
// corruption, storage-layer failures mid-move (the files are already in
// the wrong place; running again cannot help) and sealed payloads that
// fail authentication.
var fatalCodes = map[types.ErrorCode]bool{
	types.ErrCodeReferenceNotFound:    true,
	types.ErrCodeReferenceAmbiguous:   true,
	types.ErrCodeStorageOperation:     true,
	types.ErrCodeStorageInconsistency: true,
	types.ErrCodeNotFoundObject:       true,
	types.ErrCodeSealedPayload:        true,
	types.ErrCodeVirusScanFailed:      true,
	types.ErrCodeVirusScanError:       true,
	types.ErrCodeRetryExhausted:       true,
}

// isFatal reports whether the error belongs to the non-retryable class.
// Anything unclassified is treated as transient and retried; the retry
// bound turns persistent unknowns into technical-failure eventually.
func isFatal(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return fatalCodes[appErr.Code]
	}
	return false
}
