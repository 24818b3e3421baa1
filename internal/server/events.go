package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/protocol"
)

// handleEvents drives one /events connection: the HUD control channel,
// carrying tolerant tagged-variant ingress (hello, head_pose, torso_pose,
// calibrate.pose_zero, config.update, audio.source, status.request) and
// receiving direction.ui / alarm.* / alert.keyword / status broadcasts.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("events upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageBytes)
	defer conn.Close()

	s.eventsClients.Add(conn)
	defer s.eventsClients.Remove(conn)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatchEvent(conn, string(data))
	}
}

func (s *Server) dispatchEvent(conn *websocket.Conn, text string) {
	envelope, err := protocol.ParseEnvelope(text)
	if err != nil {
		s.log.Warnf("events: malformed message, ignoring: %v", err)
		return
	}

	switch envelope.Type {
	case "hello":
		var hello protocol.Hello
		if protocol.Loads(text, &hello) == nil {
			s.state.SetHUDMeta(audiostate.HUDMeta{
				V:      hello.V,
				Client: hello.Client,
				Model:  hello.Model,
				SdkInt: hello.SdkInt,
			})
		}

	case "head_pose":
		var pose protocol.HeadPose
		if protocol.Loads(text, &pose) == nil {
			now := time.Now()
			s.state.SetHeadPose(pose.Yaw, pose.Pitch, pose.Roll, now)
			s.state.AutoCalibrateIfNeeded(now)
		}

	case "torso_pose":
		var pose protocol.TorsoPose
		if protocol.Loads(text, &pose) == nil {
			now := time.Now()
			s.state.SetTorsoPose(pose.ResolvedYaw(), now)
			s.state.AutoCalibrateIfNeeded(now)
		}

	case "calibrate.pose_zero":
		headYaw, torsoYaw, ok := s.state.CalibratePoseZero(time.Now())
		reply, err := protocol.Dumps(&protocol.CalibratePoseZeroReply{
			Type:         "calibrate.pose_zero",
			OK:           ok,
			Head0YawDeg:  headYaw,
			Torso0YawDeg: torsoYaw,
		})
		if err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, reply)
		}

	case "config.update":
		var raw protocol.ConfigUpdateRaw
		if protocol.Loads(text, &raw) == nil {
			delete(raw, "type")
			s.state.ApplyConfigUpdate(raw)
		}

	case "audio.source":
		var src protocol.AudioSource
		if protocol.Loads(text, &src) == nil && src.Source != "" {
			s.state.SetSTTSource(src.Source)
		}

	case "status.request":
		reply, err := protocol.Dumps(s.buildStatusSnapshot())
		if err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, reply)
		}

	default:
		s.log.Debugf("events: unrecognized type %q, ignoring", envelope.Type)
	}
}
