package server

import (
	"context"
	"time"

	"github.com/hudwear/hudserver/internal/geometry"
	"github.com/hudwear/hudserver/internal/protocol"
)

// statusLoop broadcasts a heartbeat status snapshot at statusInterval (spec
// §6 "status … 1 Hz") until ctx is cancelled.
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.eventsClients.Send(s.buildStatusSnapshot())
		}
	}
}

func (s *Server) buildStatusSnapshot() *protocol.StatusSnapshot {
	now := time.Now()
	cfg := s.cfg
	tuning := s.state.Tuning()
	snap := s.state.Snapshot(now)

	frontMics := make(map[string]protocol.FrontMicStats, 2)
	for _, role := range []string{"left", "right"} {
		mic := s.state.FrontMic(role)
		if mic == nil {
			frontMics[role] = protocol.FrontMicStats{Connected: false}
			continue
		}
		frontMics[role] = protocol.FrontMicStats{
			Connected:      true,
			DeviceID:       mic.DeviceID,
			SampleRateHz:   mic.SampleRateHz,
			FrameMs:        mic.FrameMs,
			LastRMS:        mic.LastRMS,
			AgeMs:          now.Sub(mic.LastSeen).Milliseconds(),
			FramesReceived: mic.FramesReceived,
			DroppedFrames:  mic.DroppedFrames,
			BadFrameSizes:  mic.BadFrameSizes,
			SttQueueDepth:  mic.SttQ.Len(),
		}
	}

	phoneStats := protocol.PhoneMicStats{}
	if phone := s.state.AnyPhoneMic(); phone != nil {
		phoneStats = protocol.PhoneMicStats{
			Connected:     true,
			SampleRateHz:  phone.SampleRateHz,
			Channels:      phone.Channels,
			LastRMS:       phone.LastRMS,
			LastRMSLeft:   phone.LastRMSLeft,
			LastRMSRight:  phone.LastRMSRight,
			AgeMs:         now.Sub(phone.LastSeen).Milliseconds(),
			DroppedFrames: phone.DroppedFrames,
		}
	}

	hapticsLeftOK, hapticsRightOK := s.state.HapticsConnected()

	fireActive, fireScore, fireThresh := s.alarmLoop.Snapshot("fire")
	hornActive, hornScore, hornThresh := s.alarmLoop.Snapshot("car_horn")
	sirenActive, sirenScore, sirenThresh := s.alarmLoop.Snapshot("siren")

	arr := geometry.Derive(cfg.ArrayBackWidthMm, cfg.ArrayFrontWidthMm, cfg.ArraySideLenMm)

	return &protocol.StatusSnapshot{
		Type:           "status",
		EventsClients:  s.eventsClients.Len(),
		SttClients:     s.sttClients.Len(),
		FrontMics:      frontMics,
		PhoneMic:       phoneStats,
		SttAudioSource: s.state.STTSource(),

		HapticsLeftConnected:  hapticsLeftOK,
		HapticsRightConnected: hapticsRightOK,

		Alarms: map[string]protocol.AlarmState{
			"fire":     {Active: fireActive, Confidence: fireScore, Threshold: fireThresh},
			"car_horn": {Active: hornActive, Confidence: hornScore, Threshold: hornThresh},
			"siren":    {Active: sirenActive, Confidence: sirenScore, Threshold: sirenThresh},
		},

		DirectionTuning: protocol.DirectionTuning{
			AlarmRmsThreshold:   tuning.AlarmRmsThreshold,
			FireRatioThreshold:  tuning.FireRatioThreshold,
			HornRatioThreshold:  tuning.HornRatioThreshold,
			KeywordCooldownS:    tuning.KeywordCooldownS,
			Keywords:            tuning.Keywords,
			ESP32GainLeft:       tuning.ESP32GainLeft,
			ESP32GainRight:      tuning.ESP32GainRight,
			YamnetFireThreshold: tuning.YamnetFireThreshold,
			YamnetHornThreshold: tuning.YamnetHornThreshold,
			YamnetMinRms:        tuning.YamnetMinRms,
		},

		HeadYawDeg:   snap.HeadYawDeg,
		TorsoYawDeg:  snap.TorsoYawDeg,
		HasHead:      snap.HasHead,
		HasTorso:     snap.HasTorso,
		Head0YawDeg:  snap.Head0YawDeg,
		Torso0YawDeg: snap.Torso0YawDeg,

		Geometry: protocol.ArrayGeometry{
			FL: protocol.ArrayPoint{X: arr.FL.X, Y: arr.FL.Y},
			FR: protocol.ArrayPoint{X: arr.FR.X, Y: arr.FR.Y},
			BL: protocol.ArrayPoint{X: arr.BL.X, Y: arr.BL.Y},
			BR: protocol.ArrayPoint{X: arr.BR.X, Y: arr.BR.Y},
		},
	}
}
