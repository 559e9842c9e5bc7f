// Package vad provides a frame-wise voice-activity detector and its
// validated factory. The detector classifies speech using RMS energy
// with a consecutive-frame confirmation hysteresis, the same shape as
// the RMS-based detectors used elsewhere for real-time audio gating.
package vad

import (
	"fmt"
	"math"

	"github.com/agentflow-ai/heycat/internal/domain"
)

// Vad is a frame-wise speech-probability classifier. It is not safe for
// concurrent use by multiple goroutines; callers (WakeWordDetector,
// SilenceDetector) each own a private instance.
type Vad interface {
	// Process classifies one chunk of ChunkSize() samples, returning true
	// if the chunk is classified as speech.
	Process(chunk domain.Pcm) bool
	// ChunkSize is the number of samples Process expects per call.
	ChunkSize() int
	// Reset clears any hysteresis state (consecutive-frame counters).
	Reset()
}

// rmsVad is the default Vad implementation: energy-threshold
// classification with consecutive-frame confirmation before flipping
// state, so a single noisy frame cannot toggle the result.
type rmsVad struct {
	cfg               domain.VadConfig
	consecutiveAbove  int
	consecutiveBelow  int
	minConfirmed      int
	speaking          bool
}

// Create validates cfg and constructs a Vad. SampleRate must be 8000 or
// 16000; any other value returns a ConfigurationInvalid-class error
// whose message names both accepted values.
func Create(cfg domain.VadConfig) (Vad, error) {
	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return nil, domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("vad: sample_rate must be 8000 or 16000, got %d", cfg.SampleRate),
			domain.ErrConfigInvalid)
	}
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold >= 1 {
		return nil, domain.NewError(domain.KindConfiguration,
			fmt.Sprintf("vad: speech_threshold must be in (0,1), got %f", cfg.SpeechThreshold),
			domain.ErrConfigInvalid)
	}
	cfg.ChunkSize = cfg.SampleRate * 32 / 1000

	minConfirmed := cfg.MinSpeechFrames
	if minConfirmed <= 0 {
		minConfirmed = 1
	}

	return &rmsVad{cfg: cfg, minConfirmed: minConfirmed}, nil
}

// WakeWord returns a Vad built from domain.WakeWordPreset.
func WakeWord() (Vad, error) { return Create(domain.WakeWordPreset()) }

// Silence returns a Vad built from domain.SilencePreset.
func Silence() (Vad, error) { return Create(domain.SilencePreset()) }

func (v *rmsVad) ChunkSize() int { return v.cfg.ChunkSize }

func (v *rmsVad) Reset() {
	v.consecutiveAbove = 0
	v.consecutiveBelow = 0
	v.speaking = false
}

func (v *rmsVad) Process(chunk domain.Pcm) bool {
	if len(chunk) == 0 {
		return v.speaking
	}

	var sumSq float64
	for _, s := range chunk {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(chunk)))

	above := rms >= v.cfg.SpeechThreshold
	if above {
		v.consecutiveAbove++
		v.consecutiveBelow = 0
	} else {
		v.consecutiveBelow++
		v.consecutiveAbove = 0
	}

	if !v.speaking && v.consecutiveAbove >= v.minConfirmed {
		v.speaking = true
	} else if v.speaking && v.consecutiveBelow >= v.minConfirmed {
		v.speaking = false
	}

	return v.speaking
}

// SpeechFraction runs vad over pcm in ChunkSize()-sized frames (the last
// partial frame, if any, is skipped) and returns the fraction classified
// as speech. WakeWordDetector's speech gate and SilenceDetector's tick
// both treat any fraction above zero as speech.
func SpeechFraction(v Vad, pcm domain.Pcm) float64 {
	n := v.ChunkSize()
	if n <= 0 || len(pcm) < n {
		return 0
	}
	v.Reset()
	frames := len(pcm) / n
	speechFrames := 0
	for i := 0; i < frames; i++ {
		if v.Process(pcm[i*n : (i+1)*n]) {
			speechFrames++
		}
	}
	return float64(speechFrames) / float64(frames)
}
