package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/testutil"
)

type scriptedProbe struct {
	configured bool
	errs       []error
	calls      int
}

func (p *scriptedProbe) IsConfigured() bool { return p.configured }

func (p *scriptedProbe) Test(context.Context) error {
	p.calls++
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxAttempts: attempts, Multiplier: 2}
}

func TestWaitFor_RetriesNetworkErrors(t *testing.T) {
	p := &scriptedProbe{configured: true, errs: []error{
		errors.New("dial tcp 10.0.0.2:32400: connection refused"),
		errors.New("i/o timeout"),
	}}
	require.NoError(t, WaitFor(context.Background(), "plex", p, fastRetry(5), testutil.NewTestLogger(t)))
	assert.Equal(t, 3, p.calls)
}

func TestWaitFor_StopsOnRejectedRequest(t *testing.T) {
	p := &scriptedProbe{configured: true, errs: []error{errors.New("plex returned status 401")}}
	err := WaitFor(context.Background(), "plex", p, fastRetry(5), testutil.NewTestLogger(t))
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestWaitFor_GivesUp(t *testing.T) {
	p := &scriptedProbe{configured: true, errs: []error{
		errors.New("no such host"), errors.New("no such host"), errors.New("no such host"),
	}}
	err := WaitFor(context.Background(), "plex", p, fastRetry(3), testutil.NewTestLogger(t))
	require.Error(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestWaitFor_Unconfigured(t *testing.T) {
	p := &scriptedProbe{}
	require.NoError(t, WaitFor(context.Background(), "plex", p, fastRetry(3), testutil.NewTestLogger(t)))
	assert.Zero(t, p.calls)
}

func TestNextDelay_Capped(t *testing.T) {
	cfg := RetryConfig{MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, cfg))
	assert.Equal(t, 3*time.Second, nextDelay(2*time.Second, cfg))
}
