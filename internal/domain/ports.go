package domain

import "context"

// ClipboardEffector writes recognized text to the OS clipboard. The GUI
// layer, auto-paste behavior, and the actual OS clipboard binding are
// external collaborators; the core only depends on this interface.
type ClipboardEffector interface {
	Write(ctx context.Context, text string) error
}

// CommandMatcher matches recognized text against a user-defined registry
// of voice commands. The registry's storage and editing UI are external
// collaborators; the core only depends on this interface.
type CommandMatcher interface {
	// Match returns the matched command's ID and true if text matches a
	// registered command, false otherwise.
	Match(ctx context.Context, text string) (commandID string, matched bool)
	// Dispatch invokes whatever action is bound to commandID.
	Dispatch(ctx context.Context, commandID string) error
}

// SettingsStore persists the configuration document described in the
// external-interfaces configuration table. Implementations can be
// in-memory, a file in the host's per-app config location, or any other
// backend.
type SettingsStore interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

// HotkeyBackend registers a single global keyboard shortcut and delivers
// toggle events. The platform key-capture implementation is an external
// collaborator; the core only depends on this interface.
type HotkeyBackend interface {
	Register(shortcut string, onToggle func()) error
	Unregister() error
}

// ModelDownloader resolves a model directory, possibly fetching files on
// first use. Model-file downloading and on-disk layout are explicitly
// out of scope for the core; SharedModel only ever consumes an
// already-resolved directory path, but callers may use this interface to
// obtain one.
type ModelDownloader interface {
	EnsureModel(ctx context.Context, kind string) (dir string, err error)
}

// Settings is the Go representation of the single per-user settings
// document described in the external-interfaces section.
type Settings struct {
	TranscriptionMode       TranscriptionMode
	SilenceDetectionEnabled bool
	VadWakeWord             VadConfig
	VadSilence              VadConfig
	PreferredBufferSize     int
	TranscriptionTimeout    int // seconds
	WakeWordTimeout         int // seconds
	WakePhrases             []string
	HotkeyShortcut          string
}

// DefaultSettings returns the documented defaults from the external
// interfaces configuration table.
func DefaultSettings() *Settings {
	return &Settings{
		TranscriptionMode:       ModeBatch,
		SilenceDetectionEnabled: false,
		VadWakeWord:             WakeWordPreset(),
		VadSilence:              SilencePreset(),
		PreferredBufferSize:     256,
		TranscriptionTimeout:    60,
		WakeWordTimeout:         10,
		WakePhrases:             []string{"hey cat"},
		HotkeyShortcut:          "",
	}
}
