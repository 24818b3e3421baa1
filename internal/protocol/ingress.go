package protocol

// AudioBlock describes the PCM framing of an inbound audio connection
// (spec §6, shared by the ESP32 and phone-mic hellos).
type AudioBlock struct {
	Format       string `json:"format"`
	SampleRateHz int    `json:"sampleRateHz"`
	Channels     int    `json:"channels"`
	FrameMs      int    `json:"frameMs"`
}

// MicHello is the `hello` message sent on /esp32/audio (front mic) or /stt
// (phone mic) before binary frames begin.
type MicHello struct {
	V         int        `json:"v"`
	Type      string     `json:"type"`
	DeviceID  string     `json:"deviceId"`
	Role      string     `json:"role"`
	FwVersion string     `json:"fwVersion"`
	Audio     AudioBlock `json:"audio"`
}
