package throttle

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultCapacity is the number of conversions a client may burst.
	DefaultCapacity = 5
	// DefaultWindow is how long an empty bucket takes to refill completely.
	DefaultWindow = time.Minute
)

// Decision is the result of one TryConsume call.
type Decision struct {
	Admitted bool
	// Remaining is the floor of the tokens left after the decision. It is
	// 0 whenever the request was rejected.
	Remaining int64
	// RetryAfter is how long until one token is available. Zero when admitted.
	RetryAfter time.Duration
}

// Limiter admits or rejects one unit of cost for a client id.
type Limiter interface {
	TryConsume(ctx context.Context, clientID string) (Decision, error)
}

// Limit describes a bucket shape.
type Limit struct {
	Capacity int
	Window   time.Duration
}

// DefaultLimit is 5 conversions per minute.
var DefaultLimit = Limit{Capacity: DefaultCapacity, Window: DefaultWindow}

func (l Limit) validate() error {
	if l.Capacity <= 0 {
		return fmt.Errorf("throttle: capacity must be positive, got %d", l.Capacity)
	}
	if l.Window <= 0 {
		return fmt.Errorf("throttle: window must be positive, got %v", l.Window)
	}
	return nil
}

// perToken is the refill interval of a single token.
func (l Limit) perToken() time.Duration {
	return l.Window / time.Duration(l.Capacity)
}

// retryAfter returns how long it takes to refill from tokens to one token.
func (l Limit) retryAfter(tokens float64) time.Duration {
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(l.perToken()))
}
