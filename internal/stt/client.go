package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/ratelog"
	"github.com/hudwear/hudserver/internal/reconnect"
)

// Message is one inbound ElevenLabs realtime-STT event, already mapped to
// the shape the Muxer broadcasts on /stt (spec §6 STT egress).
type Message struct {
	Type    string // partial | final | status | error
	Text    string
	Status  string
	ErrText string
}

// Client is a reconnecting ElevenLabs realtime speech-to-text link, grounded
// on elevenlabs_stt.py: TLS WebSocket, xi-api-key header, JSON
// input_audio_chunk envelopes out and message_type-tagged JSON in. The link
// sends no keepalive pings; a dead connection is noticed only when a read
// fails.
type Client struct {
	cfg *config.Config
	log ratelog.Logger

	inbound chan Message

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient builds a Client. Run is a no-op if cfg.ElevenLabsAPIKey is empty.
func NewClient(cfg *config.Config, log ratelog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		log:     log,
		inbound: make(chan Message, 64),
	}
}

// Messages returns the channel of mapped inbound events.
func (c *Client) Messages() <-chan Message { return c.inbound }

// Run dials and maintains the reconnecting link until ctx is cancelled.
// Disabled entirely (spec §9: "ELEVENLABS_API_KEY not set; STT disabled")
// when no API key is configured.
func (c *Client) Run(ctx context.Context) {
	if c.cfg.ElevenLabsAPIKey == "" {
		c.log.Warnf("stt: ELEVENLABS_API_KEY not set; STT disabled")
		<-ctx.Done()
		return
	}

	dial := func(ctx context.Context) (*websocket.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, openTimeout)
		defer cancel()
		hdr := http.Header{"xi-api-key": []string{c.cfg.ElevenLabsAPIKey}}
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.buildURI(), hdr)
		return conn, err
	}

	handle := func(ctx context.Context, conn *websocket.Conn) error {
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
		}()
		return c.readLoop(ctx, conn)
	}

	reconnect.Run(ctx, dial, handle, c.log)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		if m, ok := mapMessage(raw); ok {
			select {
			case c.inbound <- m:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// mapMessage translates one ElevenLabs message_type into the /stt egress
// shape (spec §6, grounded on server.py's on_stt_message dispatch).
func mapMessage(raw map[string]any) (Message, bool) {
	msgType, _ := raw["message_type"].(string)
	switch msgType {
	case "partial_transcript":
		text, _ := raw["text"].(string)
		return Message{Type: "partial", Text: text}, true
	case "committed_transcript", "committed_transcript_with_timestamps":
		text, _ := raw["text"].(string)
		return Message{Type: "final", Text: text}, true
	case "session_started":
		return Message{Type: "status", Status: "session_started"}, true
	case "error", "auth_error", "quota_exceeded", "rate_limited":
		errText, _ := raw["error"].(string)
		if errText == "" {
			errText = msgType
		}
		return Message{Type: "error", ErrText: errText}, true
	default:
		return Message{}, false
	}
}

// SendAudio pushes one PCM16LE frame upstream as an input_audio_chunk
// envelope. A no-op, returning nil, while disconnected.
func (c *Client) SendAudio(pcm16 []byte, sampleRateHz int) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	envelope := map[string]any{
		"message_type":  "input_audio_chunk",
		"audio_base_64": base64.StdEncoding.EncodeToString(pcm16),
		"commit":        false,
		"sample_rate":   sampleRateHz,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) buildURI() string {
	q := url.Values{}
	if c.cfg.ElevenLabsModelID != "" {
		q.Set("model_id", c.cfg.ElevenLabsModelID)
	}
	if c.cfg.ElevenLabsLanguageCode != "" {
		q.Set("language_code", c.cfg.ElevenLabsLanguageCode)
	}
	q.Set("audio_format", "pcm_16000")
	if c.cfg.ElevenLabsCommitStrategy != "" {
		q.Set("commit_strategy", c.cfg.ElevenLabsCommitStrategy)
	}
	if c.cfg.ElevenLabsIncludeTimestamps {
		q.Set("include_timestamps", "true")
	}
	host := c.cfg.ElevenLabsHost
	if host == "" {
		host = "api.elevenlabs.io"
	}
	u := url.URL{
		Scheme:   "wss",
		Host:     host,
		Path:     "/v1/speech-to-text/realtime",
		RawQuery: q.Encode(),
	}
	return u.String()
}

// openTimeout is the STT connect timeout (spec §5: "5s for STT/haptics").
const openTimeout = 5 * time.Second
