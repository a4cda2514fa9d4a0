package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/TxtConvert/internal/core"
	"github.com/JonMunkholm/TxtConvert/internal/logging"
	"github.com/JonMunkholm/TxtConvert/internal/throttle"
)

// RemainingHeader carries the tokens left after the decision.
const RemainingHeader = "X-Rate-Limit-Remaining"

// ThrottleOptions configures Throttle.
type ThrottleOptions struct {
	Limiter throttle.Limiter
	Stats   throttle.StatsRecorder // optional

	// Match selects the throttled requests. Nil throttles paths ending in
	// /convert.
	Match func(r *http.Request) bool

	// Action replaces the RATE001 action text in the 429 body, for bucket
	// shapes other than the default. See core.RateLimitAction.
	Action string

	// FailOpen admits the request when the limiter returns an error.
	// Otherwise the request is rejected with 503.
	FailOpen bool
}

// ConvertPaths matches every path that ends in /convert.
func ConvertPaths(r *http.Request) bool {
	return strings.HasSuffix(r.URL.Path, "/convert")
}

// rejection is the 429 body. Its text comes from the RATE001 user message.
type rejection struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Throttle charges one token per matching request to the client's bucket.
// Every throttled response carries X-Rate-Limit-Remaining; rejected ones get
// 429 with Retry-After.
func Throttle(opts ThrottleOptions) func(http.Handler) http.Handler {
	if opts.Match == nil {
		opts.Match = ConvertPaths
	}

	msg := core.MapError(core.ErrRateLimited)
	if opts.Action != "" {
		msg.Action = opts.Action
	}
	body, _ := json.Marshal(rejection{Error: msg.Message, Message: msg.Action})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Limiter == nil || !opts.Match(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			clientID := core.ClientIDFromContext(ctx)
			if clientID == "" {
				clientID = ClientIP(r)
			}

			d, err := opts.Limiter.TryConsume(ctx, clientID)
			if err != nil {
				logger := logging.FromContext(ctx)
				if opts.FailOpen {
					logger.Warn("throttle unavailable, admitting request", "error", err)
					next.ServeHTTP(w, r)
					return
				}
				logger.Error("throttle unavailable, rejecting request", "error", err)
				writeJSONError(w, http.StatusServiceUnavailable, `{"error":"Service unavailable","code":"RATE002"}`)
				return
			}

			if opts.Stats != nil {
				ev := throttle.Event{Admitted: d.Admitted, Path: r.URL.Path, At: time.Now()}
				if err := opts.Stats.Record(ctx, ev); err != nil {
					logging.FromContext(ctx).Warn("throttle stats not recorded", "error", err)
				}
			}

			w.Header().Set(RemainingHeader, strconv.FormatInt(d.Remaining, 10))
			if !d.Admitted {
				logging.FromContext(ctx).Info("conversion throttled", "retry_after", d.RetryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write(body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so a client that waits the advertised time
// finds a token.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
