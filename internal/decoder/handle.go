package decoder

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/devblac/state-lens/internal/scval"
)

// swapped in tests to simulate normalizer faults
var (
	normalizeValue   = scval.Normalize
	normalizeAddress = scval.NormalizeAddress
)

// Handle runs one request synchronously. It never panics and never returns a
// Go error: any fault in the normalizer comes back as a NORMALIZE_FAILED
// Result. Each call normalizes against a fresh tracker.
func Handle(req Request) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			err, ok := p.(error)
			if !ok {
				err = fmt.Errorf("%v", p)
			}
			res = normalizeFailure(err, string(debug.Stack()))
		}
	}()

	if req.AsAddress {
		addr, err := normalizeAddress(req.ScVal)
		if err != nil {
			return normalizeFailure(err, "")
		}
		return Result{Type: ResultAddress, Address: addr}
	}
	return Result{Type: ResultValue, Value: normalizeValue(req.ScVal)}
}

func normalizeFailure(err error, stack string) Result {
	return failed(CodeNormalizeFailed, "normalize failed: "+err.Error(), &ErrorDetails{
		Name:  errorName(err),
		Stack: stack,
	})
}

// errorName is the dynamic type of the innermost wrapped error.
func errorName(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}
