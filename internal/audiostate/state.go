// Package audiostate owns the shared mutable state block described in
// spec.md §9: mic states, poses, radar tracks, sample rings, and the latest
// published direction payload. It is mutated by every Ingress connection and
// both periodic loops, so the package exposes a single coarse mutex rather
// than per-field locks — the hot sections (an RMS store, one ring append, two
// queue pushes) are microseconds long and never cross an I/O suspension
// point, matching the "do not hold it across I/O" rule the spec calls out.
package audiostate

import (
	"sync"
	"time"

	"github.com/hudwear/hudserver/internal/buffer"
	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/protocol"
	"github.com/hudwear/hudserver/internal/samplering"
)

// FrameQueueCap is the per-connection bound on stt_q/analysis_q: 200 frames
// is ~4s at 20ms framing, the backpressure ceiling from spec §4.2.
const FrameQueueCap = 200

// SampleRingSamples sizes each channel's SampleRing to 0.5s at 16kHz.
const SampleRingSamples = 8000

// FreshWindow is how long a pose or mic reading stays "fresh".
const FreshWindow = 1 * time.Second

// FrontMicState tracks one head-mounted microphone, keyed by role.
type FrontMicState struct {
	DeviceID      string
	Role          string // left | right
	SampleRateHz  int
	Channels      int
	FrameMs       int
	BytesPerFrame int

	LastRMS        float32
	LastSeen       time.Time
	FramesReceived uint64
	DroppedFrames  uint64
	BadFrameSizes  uint64

	SttQ      *buffer.RingBuffer[[]byte]
	AnalysisQ *buffer.RingBuffer[[]byte]
}

func newFrontMicState(deviceID, role string, sampleRateHz, channels, frameMs int) *FrontMicState {
	return &FrontMicState{
		DeviceID:      deviceID,
		Role:          role,
		SampleRateHz:  sampleRateHz,
		Channels:      channels,
		FrameMs:       frameMs,
		BytesPerFrame: bytesPerFrame(channels, sampleRateHz, frameMs),
		SttQ:          buffer.RingN[[]byte](FrameQueueCap),
		AnalysisQ:     buffer.RingN[[]byte](FrameQueueCap),
	}
}

// Fresh reports whether the mic's last reading is within FreshWindow of now.
func (f *FrontMicState) Fresh(now time.Time) bool {
	return f != nil && now.Sub(f.LastSeen) < FreshWindow
}

// PhoneMicState tracks the wearer's phone mic, keyed by connection identity.
type PhoneMicState struct {
	DeviceID      string
	SampleRateHz  int
	Channels      int
	FrameMs       int
	BytesPerFrame int

	LastRMS      float32
	LastRMSLeft  float32
	LastRMSRight float32
	LastSeen     time.Time

	DroppedFrames uint64

	SttQ      *buffer.RingBuffer[[]byte]
	AnalysisQ *buffer.RingBuffer[[]byte]
}

func newPhoneMicState(deviceID string, sampleRateHz, channels, frameMs int) *PhoneMicState {
	return &PhoneMicState{
		DeviceID:      deviceID,
		SampleRateHz:  sampleRateHz,
		Channels:      channels,
		FrameMs:       frameMs,
		BytesPerFrame: bytesPerFrame(channels, sampleRateHz, frameMs),
		SttQ:          buffer.RingN[[]byte](FrameQueueCap),
		AnalysisQ:     buffer.RingN[[]byte](FrameQueueCap),
	}
}

// Fresh reports whether the phone mic's last reading is within FreshWindow.
func (p *PhoneMicState) Fresh(now time.Time) bool {
	return p != nil && now.Sub(p.LastSeen) < FreshWindow
}

func bytesPerFrame(channels, sampleRateHz, frameMs int) int {
	return channels * (sampleRateHz * frameMs / 1000) * 2
}

// HeadPose is the wearer's head orientation, in degrees.
type HeadPose struct {
	YawDeg, PitchDeg, RollDeg float64
	LastSeen                  time.Time
}

func (h *HeadPose) fresh(now time.Time) bool {
	return h != nil && !h.LastSeen.IsZero() && now.Sub(h.LastSeen) < FreshWindow
}

// TorsoPose is the wearer's torso orientation, in degrees.
type TorsoPose struct {
	YawDeg   float64
	LastSeen time.Time
}

func (t *TorsoPose) fresh(now time.Time) bool {
	return t != nil && !t.LastSeen.IsZero() && now.Sub(t.LastSeen) < FreshWindow
}

// PoseZero is the calibration offset captured by calibrate.pose_zero.
type PoseZero struct {
	Head0YawDeg  *float64
	Torso0YawDeg *float64
}

// RadarTrack is one live spectral peak, smoothed across update ticks.
type RadarTrack struct {
	TrackID           uint64
	FreqHz            float64
	Intensity         float64
	TorsoDirectionDeg float64
	LastSeen          time.Time
	Used              bool // scratch flag for one association pass
}

// Tuning holds the subset of config knobs a HUD client may mutate at
// runtime via config.update (spec §6). It starts from the static Config and
// diverges from it as updates land.
type Tuning struct {
	AlarmRmsThreshold   float64
	FireRatioThreshold  float64
	HornRatioThreshold  float64
	KeywordCooldownS    float64
	Keywords            []string
	ESP32GainLeft       float64
	ESP32GainRight      float64
	YamnetFireThreshold float64
	YamnetHornThreshold float64
	YamnetMinRms        float64
}

func newTuning(c *config.Config) Tuning {
	return Tuning{
		AlarmRmsThreshold:   c.AlarmRmsMin,
		FireRatioThreshold:  c.AlarmFireRatioThresh,
		HornRatioThreshold:  c.AlarmHornRatioThresh,
		KeywordCooldownS:    c.KeywordCooldownS,
		Keywords:            append([]string(nil), c.Keywords...),
		ESP32GainLeft:       c.ESP32GainLeft,
		ESP32GainRight:      c.ESP32GainRight,
		YamnetFireThreshold: c.YamnetFireThreshold,
		YamnetHornThreshold: c.YamnetHornThreshold,
		YamnetMinRms:        c.YamnetMinRms,
	}
}

// HUDMeta is the metadata recorded from an /events `hello` message.
type HUDMeta struct {
	V      int
	Client string
	Model  string
	SdkInt int
}

// State is the coarsely-locked shared audio state block.
type State struct {
	Cfg *config.Config

	mu sync.Mutex

	front     map[string]*FrontMicState // keyed by role
	phone     map[string]*PhoneMicState // keyed by connection id
	head      *HeadPose
	torso     *TorsoPose
	poseZero  PoseZero
	hudMeta   HUDMeta
	sttSource string // auto | android_mic | esp32

	rings map[string]*samplering.Ring // fl, fr, bl, br

	tracks    []*RadarTrack
	nextTrack uint64

	latestDirection *protocol.DirectionUI

	tuning Tuning

	hapticsLeftOK, hapticsRightOK bool
}

// New creates a State seeded from cfg.
func New(cfg *config.Config) *State {
	s := &State{
		Cfg:       cfg,
		front:     make(map[string]*FrontMicState, 2),
		phone:     make(map[string]*PhoneMicState, 1),
		sttSource: cfg.STTAudioSource,
		tuning:    newTuning(cfg),
	}
	s.rings = map[string]*samplering.Ring{
		"fl": samplering.New(SampleRingSamples),
		"fr": samplering.New(SampleRingSamples),
		"bl": samplering.New(SampleRingSamples),
		"br": samplering.New(SampleRingSamples),
	}
	return s
}

// Lock/Unlock expose the coarse mutex for callers that need to group several
// reads or writes into one atomic section. Callers must never suspend (I/O,
// sleep, channel receive) while held.
func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

// Ring returns the SampleRing for channel name (fl, fr, bl, br). SampleRing
// itself is independently locked, so this may be called without holding the
// coarse State lock.
func (s *State) Ring(channel string) *samplering.Ring {
	return s.rings[channel]
}

// RegisterFrontMic installs (or replaces) the FrontMicState for role.
// HandleESP32Audio logs the replacement when the device identity changes.
func (s *State) RegisterFrontMic(role, deviceID string, sampleRateHz, channels, frameMs int) *FrontMicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newFrontMicState(deviceID, role, sampleRateHz, channels, frameMs)
	s.front[role] = st
	return st
}

// FrontMic returns the current state for role, or nil.
func (s *State) FrontMic(role string) *FrontMicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front[role]
}

// UnregisterFrontMic removes role's state iff it still belongs to deviceID,
// avoiding a race with an already-reconnected device (spec §4.2 Teardown).
func (s *State) UnregisterFrontMic(role, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.front[role]; ok && cur.DeviceID == deviceID {
		delete(s.front, role)
	}
}

// RegisterPhoneMic installs the PhoneMicState for a connection id.
func (s *State) RegisterPhoneMic(connID, deviceID string, sampleRateHz, channels, frameMs int) *PhoneMicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newPhoneMicState(deviceID, sampleRateHz, channels, frameMs)
	s.phone[connID] = st
	return st
}

// PhoneMic returns the current phone mic state for connID, or nil.
func (s *State) PhoneMic(connID string) *PhoneMicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone[connID]
}

// UnregisterPhoneMic removes connID's state.
func (s *State) UnregisterPhoneMic(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.phone, connID)
}

// FreshSnapshot is a point-in-time snapshot of which mics are fresh,
// used by the Direction Loop and Radar Track Loop's fusion-mode selection.
type FreshSnapshot struct {
	Now time.Time

	Left, Right *FrontMicState // nil if stale or absent
	Phone       *PhoneMicState // nil if stale, absent, or mono
	PhoneMono   *PhoneMicState // nil if stale, absent, or stereo; the mono counterpart of Phone

	HeadYawDeg, Head0YawDeg   float64
	TorsoYawDeg, Torso0YawDeg float64
	HasHead, HasTorso         bool
}

// Snapshot gathers a consistent view of fresh mic state and calibrated
// poses under a single lock acquisition.
func (s *State) Snapshot(now time.Time) FreshSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := FreshSnapshot{Now: now}

	if l := s.front["left"]; l.Fresh(now) {
		snap.Left = l
	}
	if r := s.front["right"]; r.Fresh(now) {
		snap.Right = r
	}
	for _, p := range s.phone {
		if !p.Fresh(now) {
			continue
		}
		if p.Channels == 2 {
			snap.Phone = p
			break
		}
		if snap.PhoneMono == nil {
			snap.PhoneMono = p
		}
	}

	if s.head.fresh(now) {
		snap.HeadYawDeg = s.head.YawDeg
		snap.HasHead = true
	}
	if s.torso.fresh(now) {
		snap.TorsoYawDeg = s.torso.YawDeg
		snap.HasTorso = true
	}
	if s.poseZero.Head0YawDeg != nil {
		snap.Head0YawDeg = *s.poseZero.Head0YawDeg
	}
	if s.poseZero.Torso0YawDeg != nil {
		snap.Torso0YawDeg = *s.poseZero.Torso0YawDeg
	}
	return snap
}

// FrontFreshByRole reports whether role's front mic is currently fresh,
// independent of whether its counterpart role is also fresh. Used by the
// Radar Track Loop, which treats each channel independently (spec §4.4).
func (s *State) FrontFreshByRole(role string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front[role].Fresh(now)
}

// PhoneFreshAny reports whether any phone mic connection is fresh, and how
// many channels it reports (1 or 2), for channels where exact stereo
// freshness (as required by Direction Loop quad/back modes) is not needed.
func (s *State) PhoneFreshAny(now time.Time) (fresh bool, channels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.phone {
		if p.Fresh(now) {
			return true, p.Channels
		}
	}
	return false, 0
}

// AnyPhoneMic returns an arbitrary connected phone mic's state, or nil.
// The STT Muxer uses this once PhoneFreshAny (or the android_mic override)
// has already decided the phone mic is the active source.
func (s *State) AnyPhoneMic() *PhoneMicState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.phone {
		return p
	}
	return nil
}

// SetHeadPose replaces the HeadPose.
func (s *State) SetHeadPose(yaw, pitch, roll float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = &HeadPose{YawDeg: yaw, PitchDeg: pitch, RollDeg: roll, LastSeen: now}
}

// SetTorsoPose replaces the TorsoPose.
func (s *State) SetTorsoPose(yaw float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torso = &TorsoPose{YawDeg: yaw, LastSeen: now}
}

// CalibratePoseZero snapshots the current fresh head/torso yaw into
// PoseZero, returning ok=false if either pose is stale.
func (s *State) CalibratePoseZero(now time.Time) (headYaw, torsoYaw float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.head.fresh(now) || !s.torso.fresh(now) {
		return 0, 0, false
	}
	headYaw, torsoYaw = s.head.YawDeg, s.torso.YawDeg
	s.poseZero = PoseZero{Head0YawDeg: &headYaw, Torso0YawDeg: &torsoYaw}
	return headYaw, torsoYaw, true
}

// AutoCalibrateIfNeeded sets PoseZero the first time both poses are fresh,
// if it has never been set (spec §3 PoseZero lifecycle).
func (s *State) AutoCalibrateIfNeeded(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poseZero.Head0YawDeg != nil || s.poseZero.Torso0YawDeg != nil {
		return
	}
	if !s.head.fresh(now) || !s.torso.fresh(now) {
		return
	}
	headYaw, torsoYaw := s.head.YawDeg, s.torso.YawDeg
	s.poseZero = PoseZero{Head0YawDeg: &headYaw, Torso0YawDeg: &torsoYaw}
}

// SetHUDMeta records a HUD client's hello metadata.
func (s *State) SetHUDMeta(m HUDMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hudMeta = m
}

// SetSTTSource switches the audio.source selection knob.
func (s *State) SetSTTSource(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sttSource = source
}

// STTSource returns the current audio.source selection.
func (s *State) STTSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sttSource
}

// Tuning returns a copy of the current runtime tuning knobs.
func (s *State) Tuning() Tuning {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tuning
	t.Keywords = append([]string(nil), s.tuning.Keywords...)
	return t
}

// MutateTuning runs fn with the tuning struct under lock, for config.update.
func (s *State) MutateTuning(fn func(*Tuning)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.tuning)
}

// LatestDirection returns the most recently published direction payload, or
// nil if the Direction Loop has never published.
func (s *State) LatestDirection() *protocol.DirectionUI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestDirection
}

// SetLatestDirection caches the freshly published direction payload.
func (s *State) SetLatestDirection(d *protocol.DirectionUI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestDirection = d
}

// Tracks returns a snapshot copy of the live radar track table.
func (s *State) Tracks() []*RadarTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*RadarTrack, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// NewTrackID allocates the next monotonic track id.
func (s *State) NewTrackID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTrack++
	return s.nextTrack
}

// ReplaceTracks atomically swaps the track table, used by the Radar Track
// Loop after an association pass.
func (s *State) ReplaceTracks(tracks []*RadarTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = tracks
}

// SetHapticsConnected records connectivity flags for the status snapshot.
func (s *State) SetHapticsConnected(left, right bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hapticsLeftOK, s.hapticsRightOK = left, right
}

// SetHapticsSideConnected updates one side's connectivity flag, leaving the
// other side untouched. Used by each side's independent reconnect loop.
func (s *State) SetHapticsSideConnected(side string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if side == "left" {
		s.hapticsLeftOK = ok
	} else {
		s.hapticsRightOK = ok
	}
}

// HapticsConnected reports both sides' connectivity flags.
func (s *State) HapticsConnected() (left, right bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hapticsLeftOK, s.hapticsRightOK
}

// PushFrame pushes frame into q with drop-oldest semantics, reporting
// whether an existing element was evicted to make room.
func PushFrame(q *buffer.RingBuffer[[]byte], frame []byte) (evicted bool) {
	evicted = q.Len() >= FrameQueueCap
	_ = q.Add(frame)
	return evicted
}
