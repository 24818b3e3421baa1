// Package alarm implements the Alarm Loop from spec §4.7: a 1s rolling
// window fed from the same source-selection rule as the STT Muxer, a 200ms
// classifier pass, and a per-class hold-timer state machine that edge-
// triggers `alarm.<name>` broadcasts and haptic cues.
package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/broadcast"
	"github.com/hudwear/hudserver/internal/haptics"
	"github.com/hudwear/hudserver/internal/jsontime"
	"github.com/hudwear/hudserver/internal/pcm"
	"github.com/hudwear/hudserver/internal/protocol"
	"github.com/hudwear/hudserver/internal/ratelog"
	"github.com/hudwear/hudserver/internal/samplering"
	"github.com/hudwear/hudserver/internal/srcselect"
)

const (
	windowSeconds  = 1
	sampleRateHz   = 16000
	feedPoll       = 25 * time.Millisecond
	classifyPeriod = 200 * time.Millisecond
)

// cueFor is each alarm class's haptic pulse (duration ms, intensity 0-255).
// Spec §4.7 requires firing a cue on detection but does not pin exact
// values; chosen so fire (most urgent, longest hold) pulses longest.
var cueFor = map[string]struct{ durationMs, intensity int }{
	"fire":     {500, 220},
	"car_horn": {150, 160},
	"siren":    {300, 190},
}

// Loop is the Alarm Loop component.
type Loop struct {
	state    *audiostate.State
	selector *srcselect.Selector

	classifier Classifier
	events     *broadcast.Set
	hapticsLR  []*haptics.Client
	log        ratelog.Logger

	window *samplering.Ring

	lastPositive map[string]time.Time
	active       map[string]bool

	mu            sync.Mutex
	lastScore     map[string]float64
	lastThreshold map[string]float64
}

// New builds a Loop. Either haptics client may be nil if that side has no
// configured URL.
func New(state *audiostate.State, classifier Classifier, events *broadcast.Set, left, right *haptics.Client, log ratelog.Logger) *Loop {
	return &Loop{
		state:        state,
		selector:     srcselect.New(state),
		classifier:   classifier,
		events:       events,
		hapticsLR:    []*haptics.Client{left, right},
		log:          log,
		window:       samplering.New(windowSeconds * sampleRateHz),
		lastPositive:  make(map[string]time.Time),
		active:        make(map[string]bool),
		lastScore:     make(map[string]float64),
		lastThreshold: make(map[string]float64),
	}
}

// Active reports whether class is currently in its hold window.
func (l *Loop) Active(class string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[class]
}

// Snapshot returns the most recent score and threshold seen for class, for
// the status snapshot's alarm detector block.
func (l *Loop) Snapshot(class string) (active bool, score, threshold float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[class], l.lastScore[class], l.lastThreshold[class]
}

// Run drives the feed and classify loops until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	go l.feedLoop(ctx)

	ticker := time.NewTicker(classifyPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.step(time.Now())
		}
	}
}

func (l *Loop) feedLoop(ctx context.Context) {
	ticker := time.NewTicker(feedPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		src := l.selector.Select()
		var q interface {
			Len() int
			Next() ([]byte, error)
		}
		switch {
		case src.Front != nil:
			q = src.Front.AnalysisQ
		case src.Phone != nil:
			q = src.Phone.AnalysisQ
		default:
			continue
		}
		if q.Len() == 0 {
			continue
		}
		frame, err := q.Next()
		if err != nil {
			continue
		}
		l.window.Append(pcm.DecodeS16LE(frame))
	}
}

func (l *Loop) step(now time.Time) {
	samples := l.window.Get()
	tuning := l.state.Tuning()

	var scores Scores
	if float64(pcm.RMS(samples)) >= tuning.AlarmRmsThreshold {
		scores = l.classifier.Classify(samples, sampleRateHz)
	}

	fireThresh, hornThresh, sirenThresh := l.classifier.Thresholds(tuning)
	cfg := l.state.Cfg

	l.evaluate(now, "fire", scores.FireAlarm, fireThresh, cfg.AlarmFireHoldS)
	l.evaluate(now, "car_horn", scores.CarHorn, hornThresh, cfg.AlarmCarHornHoldS)
	l.evaluate(now, "siren", scores.Siren, sirenThresh, cfg.AlarmSirenHoldS)
}

func (l *Loop) evaluate(now time.Time, class string, score, threshold, holdS float64) {
	if score >= threshold {
		l.lastPositive[class] = now
	}

	last, seen := l.lastPositive[class]
	isActive := seen && now.Sub(last) < time.Duration(holdS*float64(time.Second))

	l.mu.Lock()
	wasActive := l.active[class]
	l.active[class] = isActive
	l.lastScore[class] = score
	l.lastThreshold[class] = threshold
	l.mu.Unlock()

	if isActive == wasActive {
		return
	}

	state := "ended"
	if isActive {
		state = "started"
	}
	l.events.Send(&protocol.AlarmEvent{
		Type:        "alarm." + class,
		State:       state,
		Confidence:  score,
		TsMs:        jsontime.NowEpochMilli(),
		DirectionUI: l.state.LatestDirection(),
	})

	if isActive {
		l.fireHaptics(class)
	}
}

func (l *Loop) fireHaptics(class string) {
	cue, ok := cueFor[class]
	if !ok {
		return
	}
	for _, c := range l.hapticsLR {
		if c != nil {
			c.Enqueue(cue.durationMs, cue.intensity)
		}
	}
}
