// Package reconnect implements the jittered exponential backoff shared by
// every outbound WebSocket connector (STT, per-side haptics), grounded on
// external_haptics.py's backoff parameters and pkg/mqtt0/dialer.go's
// dial-then-hand-back-a-net.Conn shape, adapted here to hand back a
// *websocket.Conn directly since every outbound link in this system is a
// WebSocket.
package reconnect

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/ratelog"
)

// Backoff parameters from spec §5: start 0.5s, multiply by 1.7-1.8, cap 5s,
// plus uniform jitter up to 0.2s.
const (
	initialDelay  = 500 * time.Millisecond
	maxDelay      = 5 * time.Second
	jitterCeiling = 200 * time.Millisecond
	multiplierLo  = 1.7
	multiplierHi  = 1.8
)

// Dialer opens one connection attempt, given a context for cancellation and
// connect-timeout.
type Dialer func(ctx context.Context) (*websocket.Conn, error)

// Handler is invoked with each successfully established connection. It
// should block until the connection should be torn down (read loop exit,
// send error, or ctx cancellation) and return the error that ended it.
type Handler func(ctx context.Context, conn *websocket.Conn) error

// Run dials, hands the connection to handle, and on any disconnect waits a
// jittered, exponentially increasing delay before dialing again. It blocks
// until ctx is cancelled. Dial failures and connection errors are logged at
// most once every 3s (spec §7: "one line every 3s" per connector).
func Run(ctx context.Context, dial Dialer, handle Handler, log ratelog.Logger) {
	delay := initialDelay
	lastLog := time.Time{}

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := dial(ctx)
		if err != nil {
			if time.Since(lastLog) >= 3*time.Second {
				log.Warnf("reconnect: dial failed: %v", err)
				lastLog = time.Now()
			}
		} else {
			delay = initialDelay
			if err := handle(ctx, conn); err != nil && time.Since(lastLog) >= 3*time.Second {
				log.Warnf("reconnect: connection ended: %v", err)
				lastLog = time.Now()
			}
			_ = conn.Close()
		}

		if ctx.Err() != nil {
			return
		}

		jitter := time.Duration(rand.Float64() * float64(jitterCeiling))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay + jitter):
		}

		mult := multiplierLo + rand.Float64()*(multiplierHi-multiplierLo)
		delay = time.Duration(float64(delay) * mult)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
