package network

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
)

// Clock is the time source capability.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NTPClock is the host clock corrected by an offset learned from one NTP query.
// Times keep their monotonic reading, so interval maths is unaffected by Sync.
type NTPClock struct {
	server  string
	timeout time.Duration
	offset  atomic.Int64
	query   func(host string, opts ntp.QueryOptions) (*ntp.Response, error)
}

func NewNTPClock(server string, timeout time.Duration) *NTPClock {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NTPClock{server: server, timeout: timeout, query: ntp.QueryWithOptions}
}

func (c *NTPClock) Now() time.Time {
	return time.Now().Add(c.Offset())
}

func (c *NTPClock) Offset() time.Duration {
	return time.Duration(c.offset.Load())
}

// Sync queries the server once and adopts its clock offset. On error the previous
// offset is kept.
func (c *NTPClock) Sync(ctx context.Context) error {
	if c.server == "" {
		return errors.New("ntp: no server configured")
	}
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := c.query(c.server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("ntp query %s: %w", c.server, err)
	}
	if err := resp.Validate(); err != nil {
		return fmt.Errorf("ntp response from %s: %w", c.server, err)
	}
	c.offset.Store(int64(resp.ClockOffset))
	return nil
}
