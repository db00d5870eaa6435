// Package httpclient builds the HTTP clients shared by the Plex, arr,
// Overseerr and Tautulli integrations: a retrying transport for transient
// failures and a circuit breaker so a dead upstream does not stall a run.
package httpclient

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Options configures a client.
type Options struct {
	Timeout  time.Duration
	RetryMax int
	Logger   zerolog.Logger
}

// New returns an *http.Client that retries connection errors, 5xx and 429
// responses with exponential backoff.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 8 * time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = leveledLogger{log: opts.Logger}
	// Hand the final response back to the caller instead of a generic
	// "giving up" error so status codes can be mapped.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return rc.StandardClient()
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { fields(l.log.Error(), kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { fields(l.log.Debug(), kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { fields(l.log.Trace(), kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { fields(l.log.Warn(), kv).Msg(msg) }

func fields(e *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			e = e.Interface(k, kv[i+1])
		}
	}
	return e
}
