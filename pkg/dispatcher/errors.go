package dispatcher

import (
	"errors"
	"fmt"
)

// ErrRoutingAmbiguous is returned by routing policies that cannot pick a
// role. The dispatcher resolves it by falling back to the default role, so
// callers only see it when no default role is configured.
var ErrRoutingAmbiguous = errors.New("routing ambiguous")

// ErrProviderTimeout indicates the model provider did not answer in time.
var ErrProviderTimeout = errors.New("provider timeout")

// ErrProviderFatal indicates a non-retryable provider failure.
var ErrProviderFatal = errors.New("provider fatal error")

// ErrDispatchInProgress is returned when a session already has an active
// dispatch and a second one arrives before it finishes queuing.
var ErrDispatchInProgress = errors.New("dispatch already in progress for session")

// MaxRoundsError marks a dispatch that exhausted its reasoning round budget.
// It is a completion, not a failure: the dispatch still ends in the done
// state with a best-effort answer, and this error is reported alongside it.
type MaxRoundsError struct {
	Rounds int
}

func (e *MaxRoundsError) Error() string {
	return fmt.Sprintf("max reasoning rounds (%d) exceeded", e.Rounds)
}

// IsMaxRounds reports whether err wraps a MaxRoundsError.
func IsMaxRounds(err error) bool {
	var mre *MaxRoundsError
	return errors.As(err, &mre)
}
