package slug

import "context"

// DefaultSaveAttempts is how many times SaveWithRetry runs a write that keeps losing a slug race.
const DefaultSaveAttempts = 3

// SaveWithRetry runs save until it succeeds, fails with an error conflict rejects, or has run
// attempts times. save must resolve its slug afresh on every call. onRetry, when set, runs
// before each repeated attempt. The last conflict error is returned once attempts run out.
func SaveWithRetry[T any](ctx context.Context, attempts int, conflict func(error) bool, onRetry func(), save func(context.Context) (T, error)) (T, error) {
	if attempts <= 0 {
		attempts = DefaultSaveAttempts
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && onRetry != nil {
			onRetry()
		}
		result, err = save(ctx)
		if err == nil || !conflict(err) {
			return result, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
	}
	return result, err
}
