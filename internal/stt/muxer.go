// Package stt implements the STT Muxer from spec §4.6: source selection
// across the front mics and phone mic, a reconnecting external speech-to-text
// client grounded on elevenlabs_stt.py, keyword scanning, and the
// partial/final/status/error fan-out to /stt clients.
package stt

import (
	"context"
	"strings"
	"time"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/broadcast"
	"github.com/hudwear/hudserver/internal/buffer"
	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/jsontime"
	"github.com/hudwear/hudserver/internal/protocol"
	"github.com/hudwear/hudserver/internal/ratelog"
	"github.com/hudwear/hudserver/internal/srcselect"
)

// pollInterval is how often the feed loop re-evaluates its source and
// checks the selected queue for a frame. Spec §4.6 specifies a single
// <=250ms wait per iteration; short polling lets source selection flip
// between frames without pinning a long-lived consumer to one queue.
const pollInterval = 25 * time.Millisecond

// Muxer is the STT Muxer component.
type Muxer struct {
	state    *audiostate.State
	selector *srcselect.Selector
	log      ratelog.Logger

	client        *Client
	sttClients    *broadcast.Set
	eventsClients *broadcast.Set

	prevWords   []string
	lastKeyword map[string]time.Time
}

// New builds a Muxer. client must be non-nil (use NewClient even with no
// API key configured; Run then idles rather than connecting).
func New(state *audiostate.State, client *Client, sttClients, eventsClients *broadcast.Set, log ratelog.Logger) *Muxer {
	return &Muxer{
		state:         state,
		selector:      srcselect.New(state),
		log:           log,
		client:        client,
		sttClients:    sttClients,
		eventsClients: eventsClients,
		lastKeyword:   make(map[string]time.Time),
	}
}

// Run drives the outbound frame-feeding loop and the inbound
// message-mapping loop until ctx is cancelled.
func (m *Muxer) Run(ctx context.Context) {
	go m.client.Run(ctx)
	go m.feedLoop(ctx)
	m.recvLoop(ctx)
}

func (m *Muxer) feedLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		q, sampleRateHz := m.selectQueue()
		if q == nil {
			continue
		}
		frame, ok := pollOnce(q)
		if !ok {
			continue
		}
		if err := m.client.SendAudio(frame, sampleRateHz); err != nil {
			m.log.Debugf("stt: send audio: %v", err)
		}
	}
}

// selectQueue picks the active source's STT feed (spec §4.2: each mic
// state carries a stt_q distinct from its analysis_q; the Alarm Loop reads
// the latter under the same selection rule via internal/srcselect).
func (m *Muxer) selectQueue() (*buffer.RingBuffer[[]byte], int) {
	src := m.selector.Select()
	switch {
	case src.Front != nil:
		return src.Front.SttQ, src.Front.SampleRateHz
	case src.Phone != nil:
		return src.Phone.SttQ, src.Phone.SampleRateHz
	default:
		return nil, 0
	}
}

func pollOnce(q *buffer.RingBuffer[[]byte]) ([]byte, bool) {
	if q.Len() == 0 {
		return nil, false
	}
	frame, err := q.Next()
	if err != nil {
		return nil, false
	}
	return frame, true
}

func (m *Muxer) recvLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-m.client.Messages():
			if !ok {
				return
			}
			m.handle(msg)
		}
	}
}

func (m *Muxer) handle(msg Message) {
	switch msg.Type {
	case "partial":
		curWords := splitWords(msg.Text)
		n, ok := deltaWords(m.prevWords, curWords)
		m.prevWords = curWords
		var delta *int
		if ok {
			delta = &n
		}
		m.sttClients.Send(&protocol.SttPartial{Type: "partial", Text: msg.Text, DeltaWords: delta})
		m.scanKeywords(msg.Text)
	case "final":
		m.sttClients.Send(&protocol.SttFinal{Type: "final", Text: msg.Text})
		m.scanKeywords(msg.Text)
		m.prevWords = nil
	case "status":
		m.sttClients.Send(&protocol.SttStatus{Type: "status", Stt: msg.Status})
	case "error":
		m.sttClients.Send(&protocol.SttError{Type: "error", Message: msg.ErrText})
	}
}

// scanKeywords applies normalized whitespace + lowercase + substring
// matching with a per-keyword cooldown (spec §4.6), broadcasting
// `alert.keyword` to the /events HUD clients.
func (m *Muxer) scanKeywords(text string) {
	normalized := config.NormalizeKeyword(text)
	if normalized == "" {
		return
	}
	tuning := m.state.Tuning()
	cooldown := time.Duration(tuning.KeywordCooldownS * float64(time.Second))
	now := time.Now()

	for _, kw := range tuning.Keywords {
		if kw == "" || !strings.Contains(normalized, kw) {
			continue
		}
		if last, ok := m.lastKeyword[kw]; ok && now.Sub(last) < cooldown {
			continue
		}
		m.lastKeyword[kw] = now
		m.eventsClients.Send(&protocol.AlertKeyword{Type: "alert.keyword", Keyword: kw, Text: text, TsMs: jsontime.NowEpochMilli()})
	}
}
