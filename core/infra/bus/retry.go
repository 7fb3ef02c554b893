package bus

import (
	"errors"
	"fmt"
	"time"
)

// RedeliverError asks the bus to redeliver the message instead of acking it.
// Only meaningful for JetStream subscriptions with explicit ack; core NATS
// subscriptions log and move on.
type RedeliverError struct {
	Err   error
	After time.Duration
}

func (e *RedeliverError) Error() string {
	if e == nil {
		return ""
	}
	if e.After > 0 {
		return fmt.Sprintf("redeliver after %s: %v", e.After, e.Err)
	}
	return fmt.Sprintf("redeliver: %v", e.Err)
}

func (e *RedeliverError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Redeliver wraps err so the subscription naks the message. A zero delay
// requests immediate redelivery.
func Redeliver(err error, after time.Duration) error {
	if err == nil {
		err = errors.New("redelivery requested")
	}
	if after < 0 {
		after = 0
	}
	return &RedeliverError{Err: err, After: after}
}

// redeliveryDelay reports whether a handler error requests redelivery and
// with what delay.
func redeliveryDelay(err error) (time.Duration, bool) {
	var re *RedeliverError
	if errors.As(err, &re) {
		return re.After, true
	}
	return 0, false
}
