// Package haptics implements the per-side reconnecting haptic cue senders
// from spec §6, grounded on external_haptics.py: a small drop-oldest queue
// of (durationMs, intensity) cues, three selectable wire encodings, and a
// reconnecting WebSocket client that drains whatever replies the haptic
// device sends back.
package haptics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/buffer"
	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/ratelog"
	"github.com/hudwear/hudserver/internal/reconnect"
)

// Cue is one haptic pulse request.
type Cue struct {
	DurationMs int
	Intensity  int
}

// Client manages one side's (left or right) reconnecting haptic link.
type Client struct {
	side   string
	url    string
	format string
	cfg    *config.Config
	log    ratelog.Logger

	queue *buffer.RingBuffer[Cue]
}

// NewClient creates a Client for the given side ("left" or "right").
func NewClient(side, url string, cfg *config.Config, log ratelog.Logger) *Client {
	queueCap := cfg.ExternalHapticsMaxQueue
	if queueCap <= 0 {
		queueCap = 10
	}
	return &Client{
		side:   side,
		url:    url,
		format: cfg.ExternalHapticsFormat,
		cfg:    cfg,
		log:    log,
		queue:  buffer.RingN[Cue](queueCap),
	}
}

// Enqueue clamps and pushes a cue with drop-oldest overflow policy.
func (c *Client) Enqueue(durationMs, intensity int) {
	if durationMs < 0 {
		durationMs = 0
	} else if durationMs > 60000 {
		durationMs = 60000
	}
	if intensity < 0 {
		intensity = 0
	} else if intensity > 255 {
		intensity = 255
	}
	_ = c.queue.Add(Cue{DurationMs: durationMs, Intensity: intensity})
}

// Run dials and maintains the reconnecting link until ctx is cancelled.
func (c *Client) Run(ctx context.Context, connected func(bool)) {
	if c.url == "" {
		return
	}
	dial := func(ctx context.Context) (*websocket.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, openTimeout(c.cfg))
		defer cancel()
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, http.Header{})
		return conn, err
	}

	handle := func(ctx context.Context, conn *websocket.Conn) error {
		connected(true)
		defer connected(false)
		return c.pump(ctx, conn)
	}

	reconnect.Run(ctx, dial, handle, c.log)
}

func (c *Client) pump(ctx context.Context, conn *websocket.Conn) error {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	cueCh := make(chan Cue)

	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
		}
	}()
	go func() {
		for {
			cue, err := c.queue.Next()
			if err != nil {
				return
			}
			select {
			case cueCh <- cue:
			case <-pumpCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case cue := <-cueCh:
			payload := encode(cue, c.format)
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		}
	}
}

func encode(cue Cue, format string) []byte {
	switch format {
	case "tuple":
		return []byte(fmt.Sprintf("(%d,%d)", cue.DurationMs, cue.Intensity))
	case "json":
		return []byte(fmt.Sprintf("[%d,%d]", cue.DurationMs, cue.Intensity))
	default: // csv
		return []byte(fmt.Sprintf("%d,%d", cue.DurationMs, cue.Intensity))
	}
}

func openTimeout(cfg *config.Config) time.Duration {
	if cfg.ExternalHapticsOpenTimeoutS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(cfg.ExternalHapticsOpenTimeoutS * float64(time.Second))
}
