// Package protocol implements the dynamic JSON envelopes described in
// spec.md §6 and the "Dynamic JSON shapes" design note in §9: incoming
// /events messages are open-ended maps, represented here as tagged variants
// with tolerant parsing — unknown fields ignored, missing fields defaulted,
// a type-mismatched field dropped without failing the rest of the message.
//
// Dumps/Loads mirror original_source/server/hudserver/protocol.py's
// dumps()/loads() helpers (compact separators, no HTML escaping) rather than
// reinventing a wire format.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// Dumps serializes v as compact JSON, matching protocol.py's separators.
func Dumps(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Loads parses text as JSON and, if that fails, retries once on a
// best-effort repair of the text, so a single dropped brace from flaky
// firmware doesn't discard the whole message (see SPEC_FULL.md's DOMAIN
// STACK entry for jsonrepair). A value whose JSON type does not fit its
// target field leaves that field at its zero value; the rest of the
// message still decodes and Loads reports success.
func Loads(text string, v any) error {
	var typeErr *json.UnmarshalTypeError
	if err := json.Unmarshal([]byte(text), v); err == nil || errors.As(err, &typeErr) {
		return nil
	}
	repaired, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return fmt.Errorf("protocol: invalid json: %w", rerr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil && !errors.As(err, &typeErr) {
		return err
	}
	return nil
}

// Envelope is the minimal shape every /events and /stt message shares.
type Envelope struct {
	Type string `json:"type"`
}

// Hello is the `hello` message from an Android HUD client (§6).
type Hello struct {
	V      int    `json:"v"`
	Client string `json:"client"`
	Model  string `json:"model"`
	SdkInt int    `json:"sdkInt"`
}

// HeadPose is the `head_pose` message (degrees).
type HeadPose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// TorsoPose is the `torso_pose` message. Either `yawDeg` or `yaw` is
// accepted, matching the "fields may be named either way" tolerance spec.md
// implies by listing both.
type TorsoPose struct {
	YawDeg *float64 `json:"yawDeg"`
	Yaw    *float64 `json:"yaw"`
}

// ResolvedYaw returns YawDeg if present, else Yaw, else 0.
func (t TorsoPose) ResolvedYaw() float64 {
	if t.YawDeg != nil {
		return *t.YawDeg
	}
	if t.Yaw != nil {
		return *t.Yaw
	}
	return 0
}

// AudioSource is the `audio.source` message.
type AudioSource struct {
	Source string `json:"source"` // auto | android | android_mic | esp32
}

// ConfigUpdateRaw is parsed field-by-field by ApplyConfigUpdate so one bad
// field never rejects the others, per the §9 design note.
type ConfigUpdateRaw map[string]json.RawMessage

// ParseEnvelope extracts just the `type` tag, tolerating repairable JSON.
func ParseEnvelope(text string) (Envelope, error) {
	var e Envelope
	err := Loads(text, &e)
	return e, err
}

// DecodeField attempts to decode a single raw field into dst, returning
// false (not an error) on mismatch so callers can skip it and keep going.
func DecodeField(raw json.RawMessage, dst any) bool {
	if raw == nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
