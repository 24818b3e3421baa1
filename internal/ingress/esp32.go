// Package ingress implements the Audio Ingress component from spec §4.2:
// one handler per inbound audio WebSocket connection, covering the front
// mic (ESP32) and phone mic (HUD /stt) transports. Both share the hello →
// register → frame loop → teardown shape; RMS, ring append, and queue push
// are the only state mutations, kept short enough to run entirely inside
// the coarse audiostate lock.
package ingress

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/pcm"
	"github.com/hudwear/hudserver/internal/protocol"
	"github.com/hudwear/hudserver/internal/ratelog"
)

const frameBadSizeBurst = 3
const frameBadSizeEvery = 50

// targetSampleRateHz is the rate every Sample Ring and queue frame assumes.
const targetSampleRateHz = 16000

// HandleESP32Audio drives one /esp32/audio connection from hello through
// teardown. It blocks until the connection closes or ctx is cancelled.
func HandleESP32Audio(ctx context.Context, conn *websocket.Conn, query url.Values, state *audiostate.State, log ratelog.Logger) {
	hello, err := readHello(conn)
	if err == errNoHelloText {
		closeWith(conn, websocket.CloseUnsupportedData, "Expected JSON hello")
		return
	}
	if err != nil {
		closeWith(conn, websocket.CloseUnsupportedData, "Invalid hello")
		return
	}

	role := hello.Role
	if role == "" {
		role = query.Get("role")
	}
	deviceID := hello.DeviceID
	if deviceID == "" {
		deviceID = query.Get("deviceId")
	}
	if role != "left" && role != "right" {
		closeWith(conn, websocket.CloseUnsupportedData, "Invalid hello")
		return
	}

	sampleRateHz := orDefault(hello.Audio.SampleRateHz, 16000)
	frameMs := orDefault(hello.Audio.FrameMs, 20)
	channels := orDefault(hello.Audio.Channels, 1)
	if hello.Audio.Format != "" && hello.Audio.Format != "pcm_s16le" {
		log.Warnf("esp32 %s: unsupported audio.format %q, proceeding anyway", role, hello.Audio.Format)
	}
	if channels != 1 {
		log.Warnf("esp32 %s: non-mono front channel (channels=%d)", role, channels)
	}

	if prior := state.FrontMic(role); prior != nil && prior.DeviceID != deviceID {
		log.Infof("esp32 %s: replacing device %q with %q", role, prior.DeviceID, deviceID)
	}
	mic := state.RegisterFrontMic(role, deviceID, sampleRateHz, channels, frameMs)
	defer state.UnregisterFrontMic(role, deviceID)

	var resampler *pcm.Resampler
	if sampleRateHz != targetSampleRateHz {
		r, err := pcm.NewResampler(sampleRateHz, targetSampleRateHz, channels)
		if err != nil {
			log.Warnf("esp32 %s: resampler %dHz->%dHz unavailable, frames will stay at %dHz: %v", role, sampleRateHz, targetSampleRateHz, sampleRateHz, err)
		} else {
			resampler = r
			log.Infof("esp32 %s: resampling %dHz front mic to %dHz", role, sampleRateHz, targetSampleRateHz)
		}
	}

	ring := channelForRole(role)
	badFrameLimiter := ratelog.NewLimiter(frameBadSizeBurst, frameBadSizeEvery)
	gainOf := func() float32 {
		t := state.Tuning()
		if role == "left" {
			return float32(t.ESP32GainLeft)
		}
		return float32(t.ESP32GainRight)
	}

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
		if msgType != websocket.BinaryMessage {
			continue
		}

		if len(data) != mic.BytesPerFrame {
			mic.BadFrameSizes++
			if badFrameLimiter.Allow() {
				log.Warnf("esp32 %s: frame size %d != expected %d", role, len(data), mic.BytesPerFrame)
			}
		}

		samples := pcm.DecodeS16LE(data)
		samples = pcm.GainClip(samples, gainOf())

		if resampler != nil {
			resampled, err := resampler.Process(samples)
			if err != nil {
				log.Warnf("esp32 %s: resample failed, dropping frame: %v", role, err)
				continue
			}
			samples = resampled
		}

		now := time.Now()
		rms := pcm.RMS(samples)

		mic.LastRMS = rms
		mic.LastSeen = now
		mic.FramesReceived++

		state.Ring(ring).Append(samples)

		frame := pcm.EncodeS16LE(samples)
		if audiostate.PushFrame(mic.SttQ, frame) {
			mic.DroppedFrames++
		}
		audiostate.PushFrame(mic.AnalysisQ, frame)
	}
}

var errNoHelloText = errors.New("first message was not text")

func readHello(conn *websocket.Conn) (protocol.MicHello, error) {
	var hello protocol.MicHello
	msgType, data, err := conn.ReadMessage()
	if err != nil || msgType != websocket.TextMessage {
		return hello, errNoHelloText
	}
	if err := protocol.Loads(string(data), &hello); err != nil {
		return hello, err
	}
	return hello, nil
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func channelForRole(role string) string {
	if role == "left" {
		return "fl"
	}
	return "fr"
}
