package alarm

import "github.com/hudwear/hudserver/internal/audiostate"

// Scores is one classification pass over a rolling audio window, shaped
// after yamnet_detector.py's YamnetScores (fire_alarm/car_horn/siren maxed
// over each class's AudioSet indices), each in [0, 1].
type Scores struct {
	FireAlarm float64
	CarHorn   float64
	Siren     float64
}

// Classifier scores one 1s rolling mono window. Implementations may wrap a
// real model (YAMNet-shaped) or, as here, a cheaper signal heuristic; the
// Alarm Loop only depends on this interface.
type Classifier interface {
	Classify(window []float32, sampleRateHz int) Scores

	// Thresholds returns the class-specific detection thresholds this
	// classifier's scores should be compared against, sourced from the
	// runtime tuning knobs (spec §6 config.update).
	Thresholds(t audiostate.Tuning) (fire, carHorn, siren float64)
}
