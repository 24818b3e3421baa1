package protocol

import "github.com/hudwear/hudserver/internal/jsontime"

// DirectionUI is the `direction.ui` broadcast, published at 20 Hz (spec §4.3).
type DirectionUI struct {
	Type              string    `json:"type"`
	Source            string    `json:"source"` // quad | front | back | mono
	DirectionDeg      float64   `json:"directionDeg"`
	RawDirectionDeg   float64   `json:"rawDirectionDeg"`
	TorsoDirectionDeg float64   `json:"torsoDirectionDeg"`
	DeltaYawDeg       float64   `json:"deltaYawDeg"`
	Intensity         float64   `json:"intensity"`
	RadarDots         []RadarDot `json:"radarDots"`
	RadarX            float64   `json:"radarX"`
	RadarY            float64   `json:"radarY"`
	GlowEdge          string    `json:"glowEdge"`
	GlowStrength      float64   `json:"glowStrength"`
}

// RadarDot is one emitted live track (spec §4.4 "Emit").
type RadarDot struct {
	TrackID           uint64  `json:"trackId"`
	FreqHz            float64 `json:"freqHz"`
	DirectionDeg      float64 `json:"directionDeg"`
	TorsoDirectionDeg float64 `json:"torsoDirectionDeg"`
	Intensity         float64 `json:"intensity"`
	RadarX            float64 `json:"radarX"`
	RadarY            float64 `json:"radarY"`
}

// AlarmEvent is `alarm.fire` / `alarm.car_horn` / `alarm.siren` (spec §4.7).
type AlarmEvent struct {
	Type       string         `json:"type"`
	State      string         `json:"state"` // started | ended
	Confidence float64        `json:"confidence"`
	TsMs       jsontime.Milli `json:"tsMs"`
	*DirectionUI
}

// AlertKeyword is `alert.keyword` (spec §4.6).
type AlertKeyword struct {
	Type    string         `json:"type"`
	Keyword string         `json:"keyword"`
	Text    string         `json:"text"`
	TsMs    jsontime.Milli `json:"tsMs"`
}

// CalibratePoseZeroReply replies to `calibrate.pose_zero` (spec §6).
type CalibratePoseZeroReply struct {
	Type          string  `json:"type"`
	OK            bool    `json:"ok"`
	Head0YawDeg   float64 `json:"head0YawDeg"`
	Torso0YawDeg  float64 `json:"torso0YawDeg"`
}

// SttPartial / SttFinal / SttStatus / SttError are `/stt` egress (spec §6).
type SttPartial struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	DeltaWords *int   `json:"deltaWords,omitempty"` // nil on a revision (spec §6: emit no delta)
}

type SttFinal struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SttStatus struct {
	Type string `json:"type"`
	Stt  string `json:"stt"`
}

type SttError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// FrontMicStats is one role's front-mic entry in a status snapshot.
type FrontMicStats struct {
	Connected      bool    `json:"connected"`
	DeviceID       string  `json:"deviceId"`
	SampleRateHz   int     `json:"sampleRateHz"`
	FrameMs        int     `json:"frameMs"`
	LastRMS        float32 `json:"lastRms"`
	AgeMs          int64   `json:"ageMs"`
	FramesReceived uint64  `json:"framesReceived"`
	DroppedFrames  uint64  `json:"droppedFrames"`
	BadFrameSizes  uint64  `json:"badFrameSizes"`
	SttQueueDepth  int     `json:"sttQueueDepth"`
}

// PhoneMicStats is the status snapshot's phone-mic entry.
type PhoneMicStats struct {
	Connected     bool    `json:"connected"`
	SampleRateHz  int     `json:"sampleRateHz"`
	Channels      int     `json:"channels"`
	LastRMS       float32 `json:"lastRms"`
	LastRMSLeft   float32 `json:"lastRmsLeft"`
	LastRMSRight  float32 `json:"lastRmsRight"`
	AgeMs         int64   `json:"ageMs"`
	DroppedFrames uint64  `json:"droppedFrames"`
}

// ArrayPoint is one mic's XY position in the status snapshot's geometry block.
type ArrayPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ArrayGeometry is the derived mic array layout (spec §6 "Array geometry").
type ArrayGeometry struct {
	FL ArrayPoint `json:"fl"`
	FR ArrayPoint `json:"fr"`
	BL ArrayPoint `json:"bl"`
	BR ArrayPoint `json:"br"`
}

// AlarmState is one alarm class's entry in the status snapshot.
type AlarmState struct {
	Active     bool    `json:"active"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
}

// DirectionTuning mirrors the runtime-mutable subset of config.Config that
// the status snapshot reports back to HUD clients.
type DirectionTuning struct {
	AlarmRmsThreshold   float64  `json:"alarmRmsThreshold"`
	FireRatioThreshold  float64  `json:"fireRatioThreshold"`
	HornRatioThreshold  float64  `json:"hornRatioThreshold"`
	KeywordCooldownS    float64  `json:"keywordCooldownS"`
	Keywords            []string `json:"keywords"`
	ESP32GainLeft       float64  `json:"esp32GainLeft"`
	ESP32GainRight      float64  `json:"esp32GainRight"`
	YamnetFireThreshold float64  `json:"yamnetFireThreshold"`
	YamnetHornThreshold float64  `json:"yamnetHornThreshold"`
	YamnetMinRms        float64  `json:"yamnetMinRms"`
}

// StatusSnapshot is the `status` heartbeat broadcast at 1 Hz and sent
// immediately in reply to `status.request` (spec §6 "Status snapshot").
type StatusSnapshot struct {
	Type string `json:"type"`

	EventsClients int `json:"eventsClients"`
	SttClients    int `json:"sttClients"`

	FrontMics     map[string]FrontMicStats `json:"frontMics"` // left, right
	PhoneMic      PhoneMicStats            `json:"phoneMic"`
	SttAudioSource string                  `json:"sttAudioSource"`

	HapticsLeftConnected  bool `json:"hapticsLeftConnected"`
	HapticsRightConnected bool `json:"hapticsRightConnected"`

	Alarms map[string]AlarmState `json:"alarms"` // fire, car_horn, siren

	DirectionTuning DirectionTuning `json:"directionTuning"`

	HeadYawDeg   float64 `json:"headYawDeg"`
	HeadPitchDeg float64 `json:"headPitchDeg"`
	HeadRollDeg  float64 `json:"headRollDeg"`
	TorsoYawDeg  float64 `json:"torsoYawDeg"`
	HasHead      bool    `json:"hasHead"`
	HasTorso     bool    `json:"hasTorso"`
	Head0YawDeg  float64 `json:"head0YawDeg,omitempty"`
	Torso0YawDeg float64 `json:"torso0YawDeg,omitempty"`

	Geometry ArrayGeometry `json:"geometry"`
}
