// Package domain holds the value types, error taxonomy, and port
// interfaces shared across the capture, recognition, and orchestration
// packages. Nothing in this package performs I/O.
package domain

import "time"

// Pcm is an ordered sequence of single-channel samples in [-1, 1],
// implicit 16 kHz. It carries no framing metadata.
type Pcm []float32

// StreamingChunkSize is the fixed size of one streaming chunk: 160 ms
// at 16 kHz.
const StreamingChunkSize = 2560

// TranscriptionMode selects which pipeline a new recording uses.
type TranscriptionMode int

const (
	ModeBatch TranscriptionMode = iota
	ModeStreaming
)

func (m TranscriptionMode) String() string {
	switch m {
	case ModeBatch:
		return "batch"
	case ModeStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// ModeFromString parses the persisted configuration value for
// transcription_mode. Unknown strings fall back to ModeBatch.
func ModeFromString(s string) TranscriptionMode {
	switch s {
	case "streaming":
		return ModeStreaming
	default:
		return ModeBatch
	}
}

// VadConfig parametrizes construction of a voice-activity detector.
// SampleRate must be 8000 or 16000; ChunkSize is derived, not set
// directly.
type VadConfig struct {
	SpeechThreshold float64
	SampleRate      int
	ChunkSize       int
	MinSpeechFrames int
}

// WakeWordPreset returns the VadConfig used while listening for the
// wake phrase: sensitive, favoring recall.
func WakeWordPreset() VadConfig {
	return VadConfig{SpeechThreshold: 0.3, SampleRate: 16000, ChunkSize: 16000 * 32 / 1000, MinSpeechFrames: 1}
}

// SilencePreset returns the VadConfig used to detect end-of-utterance:
// precise, favoring avoidance of premature auto-stop.
func SilencePreset() VadConfig {
	return VadConfig{SpeechThreshold: 0.5, SampleRate: 16000, ChunkSize: 16000 * 32 / 1000, MinSpeechFrames: 1}
}

// RecordingState is the orchestrator's finite state.
type RecordingState int

const (
	StateIdle RecordingState = iota
	StateRecording
	StateProcessing
)

func (s RecordingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// SharedModelState is the ASR model wrapper's state machine.
type SharedModelState int

const (
	ModelUnloaded SharedModelState = iota
	ModelIdle
	ModelTranscribing
	ModelCompleted
	ModelError
)

func (s SharedModelState) String() string {
	switch s {
	case ModelUnloaded:
		return "unloaded"
	case ModelIdle:
		return "idle"
	case ModelTranscribing:
		return "transcribing"
	case ModelCompleted:
		return "completed"
	case ModelError:
		return "error"
	default:
		return "unknown"
	}
}

// TranscriptionResult is the outcome of a completed transcription.
type TranscriptionResult struct {
	Text             string
	MatchedCommandID string
	DurationMs       int64
}

// WakeWordEventKind tags the variant of a WakeWordEvent.
type WakeWordEventKind int

const (
	WakeWordDetected WakeWordEventKind = iota
	WakeWordUnavailable
	WakeWordError
)

// WakeWordEvent is emitted by the wake-word detector's analysis tick.
type WakeWordEvent struct {
	Kind           WakeWordEventKind
	Phrase         string
	RecognizedText string
	Reason         string
}

// Fingerprint is a compact digest of a short audio window, used only to
// suppress duplicate wake-word triggers over a sliding window of recent
// detections. Never persisted.
type Fingerprint uint64

// Event is the envelope for everything the EventBus fans out to the
// host/UI. Type is one of the Event* constants below; Payload carries the
// type-specific fields as a typed struct.
type Event struct {
	Type    EventType
	Payload any
	At      time.Time
}

type EventType string

const (
	EventRecordingStarted        EventType = "recording_started"
	EventRecordingStopped        EventType = "recording_stopped"
	EventRecordingCancelled      EventType = "recording_cancelled"
	EventTranscriptionPartial    EventType = "transcription_partial"
	EventTranscriptionCompleted  EventType = "transcription_completed"
	EventTranscriptionError      EventType = "transcription_error"
	EventWakeWordDetected        EventType = "wake_word_detected"
	EventWakeWordUnavailable     EventType = "wake_word_unavailable"
	EventListeningStarted        EventType = "listening_started"
	EventListeningStopped        EventType = "listening_stopped"
	EventModelDownloadProgress   EventType = "model_file_download_progress"
	EventModelDownloadCompleted  EventType = "model_download_completed"
)

// RecordingStoppedPayload is the payload for EventRecordingStopped.
type RecordingStoppedPayload struct {
	FilePath string
}

// TranscriptionPartialPayload is the payload for EventTranscriptionPartial.
type TranscriptionPartialPayload struct {
	Text    string
	IsFinal bool
}

// TranscriptionCompletedPayload is the payload for EventTranscriptionCompleted.
type TranscriptionCompletedPayload struct {
	Text             string
	DurationMs       int64
	MatchedCommandID string
}

// TranscriptionErrorPayload is the payload for EventTranscriptionError.
type TranscriptionErrorPayload struct {
	Reason string
}

// WakeWordDetectedPayload is the payload for EventWakeWordDetected.
type WakeWordDetectedPayload struct {
	Phrase         string
	RecognizedText string
}

// WakeWordUnavailablePayload is the payload for EventWakeWordUnavailable.
type WakeWordUnavailablePayload struct {
	Reason string
}

// ListeningStatus is returned by get_listening_status.
type ListeningStatus struct {
	Enabled      bool
	Active       bool
	MicAvailable bool
}
