package ingress

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/broadcast"
	"github.com/hudwear/hudserver/internal/pcm"
	"github.com/hudwear/hudserver/internal/protocol"
	"github.com/hudwear/hudserver/internal/ratelog"
)

// HandlePhoneMic drives one /stt connection. Every /stt socket is a
// transcript broadcast member from the moment it connects, whether or not
// its client ever sends a mic hello — a HUD-only listener and an
// Android phone pushing mic audio share the same path (spec §6).
func HandlePhoneMic(ctx context.Context, conn *websocket.Conn, connID string, state *audiostate.State, sttClients *broadcast.Set, log ratelog.Logger) {
	sttClients.Add(conn)
	defer sttClients.Remove(conn)
	defer state.UnregisterPhoneMic(connID)

	var mic *audiostate.PhoneMicState
	badFrameLimiter := ratelog.NewLimiter(frameBadSizeBurst, frameBadSizeEvery)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			var hello protocol.MicHello
			if protocol.Loads(string(data), &hello) != nil {
				continue
			}
			if hello.Audio.SampleRateHz != 0 && hello.Audio.SampleRateHz != 16000 {
				log.Warnf("phone mic: rejecting hello with sampleRateHz=%d, want 16000", hello.Audio.SampleRateHz)
				continue
			}
			channels := orDefault(hello.Audio.Channels, 1)
			frameMs := orDefault(hello.Audio.FrameMs, 20)
			deviceID := hello.DeviceID
			if deviceID == "" {
				deviceID = connID
			}
			mic = state.RegisterPhoneMic(connID, deviceID, 16000, channels, frameMs)

		case websocket.BinaryMessage:
			if mic == nil {
				continue
			}
			processPhoneFrame(mic, state, data, badFrameLimiter, log)
		}
	}
}

func processPhoneFrame(mic *audiostate.PhoneMicState, state *audiostate.State, data []byte, limiter *ratelog.Limiter, log ratelog.Logger) {
	expected := mic.BytesPerFrame
	monoBytes := 1 * (mic.SampleRateHz * mic.FrameMs / 1000) * 2
	stereoBytes := 2 * (mic.SampleRateHz * mic.FrameMs / 1000) * 2

	switch {
	case len(data) == expected:
		// matches configured framing
	case mic.Channels == 1 && len(data) == stereoBytes:
		mic.Channels = 2
		mic.BytesPerFrame = stereoBytes
		expected = stereoBytes
	case mic.Channels == 2 && len(data) == monoBytes:
		mic.Channels = 1
		mic.BytesPerFrame = monoBytes
		expected = monoBytes
	default:
		if limiter.Allow() {
			log.Warnf("phone mic: frame size %d != expected %d", len(data), expected)
		}
	}

	samples := pcm.DecodeS16LE(data)
	now := time.Now()

	var mono []float32
	if mic.Channels == 2 {
		left, right := pcm.Deinterleave(samples)
		mic.LastRMSLeft = pcm.RMS(left)
		mic.LastRMSRight = pcm.RMS(right)
		mic.LastRMS = pcm.RMS(samples)
		state.Ring("bl").Append(left)
		state.Ring("br").Append(right)
		mono = pcm.DownmixMono(left, right)
	} else {
		mic.LastRMS = pcm.RMS(samples)
		mic.LastRMSLeft, mic.LastRMSRight = mic.LastRMS, mic.LastRMS
		state.Ring("bl").Append(samples)
		state.Ring("br").Append(samples)
		mono = samples
	}
	mic.LastSeen = now

	frame := pcm.EncodeS16LE(mono)
	if audiostate.PushFrame(mic.SttQ, frame) {
		mic.DroppedFrames++
	}
	audiostate.PushFrame(mic.AnalysisQ, frame)
}
