package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retry executes action until it succeeds or a strategy declines another
// attempt. It returns the number of attempts made.
//
// Strategies are evaluated in order, so strategies that sleep belong last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	for attempt := uint(1); ; attempt++ {
		err := action()
		if err == nil {
			return attempt, nil
		}

		if !shouldRetry(attempt, err, strategies) {
			return attempt, err
		}
	}
}

// Value is Retry for actions that produce a result. The result of the last
// attempt is returned.
func Value[T any](action func() (T, error), strategies ...Strategy) (T, uint, error) {
	var result T
	attempts, err := Retry(func() error {
		var err error
		result, err = action()
		return err
	}, strategies...)
	return result, attempts, err
}

// Loop executes action forever until a strategy declines a failed attempt.
// A successful attempt resets the attempt counter.
func Loop(action Action, strategies ...Strategy) error {
	for attempt := uint(1); ; attempt++ {
		err := action()
		if err == nil {
			attempt = 0
			continue
		}

		if !shouldRetry(attempt, err, strategies) {
			return err
		}
	}
}

func shouldRetry(attempt uint, err error, strategies []Strategy) bool {
	for _, s := range strategies {
		if !s(attempt, err) {
			return false
		}
	}
	return true
}
