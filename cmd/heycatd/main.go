// heycatd is the voice-input orchestration daemon: it owns the
// microphone, the two ASR model instances, and the recording state
// machine, and fans out events over its EventBus for a host UI to
// subscribe to.
//
// Usage:
//
//	heycatd [-verbose] [-quiet] [-listen]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agentflow-ai/heycat/internal/audio"
	"github.com/agentflow-ai/heycat/internal/clipboard"
	"github.com/agentflow-ai/heycat/internal/commandmatcher"
	"github.com/agentflow-ai/heycat/internal/config"
	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/events"
	"github.com/agentflow-ai/heycat/internal/hotkey"
	"github.com/agentflow-ai/heycat/internal/listening"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/model"
	"github.com/agentflow-ai/heycat/internal/orchestrator"
	"github.com/agentflow-ai/heycat/internal/recording"
	"github.com/agentflow-ai/heycat/internal/streaming"
	"github.com/agentflow-ai/heycat/internal/transcription"
	"github.com/agentflow-ai/heycat/internal/wakeword"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".heycat-logs/heycat.log", "file to write logs to (use \"stderr\" to log to console)")
	batchModelDir := flag.String("batch-model-dir", "", "directory containing the batch (TDT) model files")
	streamModelDir := flag.String("streaming-model-dir", "", "directory containing the streaming (EOU) model files")
	onnxLib := flag.String("onnx-lib", "", "path to the ONNX Runtime shared library (overrides the default search path)")
	recordingsDir := flag.String("recordings-dir", os.TempDir(), "directory batch-mode WAV files are written to before transcription")
	wakePhrases := flag.String("wake-phrases", "hey cat", "comma-separated list of wake phrases")
	hotkeyShortcut := flag.String("hotkey", "", "global shortcut that toggles recording (empty disables the hotkey entry point)")
	listen := flag.Bool("listen", false, "enable always-on wake-word listening at startup")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *onnxLib != "" {
		model.SetOnnxLibraryPath(*onnxLib)
	}

	batchModel := model.New("batch", log)
	streamModel := model.New("streaming", log)

	if *batchModelDir != "" {
		if err := batchModel.Load(*batchModelDir, model.NewOnnxEngineLoader(model.KindBatchTDT)); err != nil {
			log.Error("batch model load failed: %v", err)
		}
	} else {
		log.Warn("no -batch-model-dir given, batch transcription will fail until one is loaded")
	}
	if *streamModelDir != "" {
		if err := streamModel.Load(*streamModelDir, model.NewOnnxEngineLoader(model.KindStreamingEOU)); err != nil {
			log.Error("streaming model load failed: %v", err)
		}
	} else {
		log.Warn("no -streaming-model-dir given, streaming transcription and wake-word detection will fail until one is loaded")
	}

	bus := events.New(log)
	settings := config.NewMemoryStore(log)

	phrases := splitWakePhrases(*wakePhrases)
	if cur, err := settings.Load(ctx); err == nil {
		cur.WakePhrases = phrases
		cur.HotkeyShortcut = *hotkeyShortcut
		_ = settings.Save(ctx, cur)
	}

	recordBuf := recording.New()
	recordCapture := audio.New(log)

	clip := clipboard.New(log)
	matcher := commandmatcher.New(log)
	batchSvc := transcription.New(batchModel, matcher, clip, bus, recordBuf, log)
	streamer := streaming.New(streamModel, log)

	listenCapture := audio.New(log)
	wwDetector, err := wakeword.New(streamModel, log, wakeword.DefaultConfig(phrases))
	if err != nil {
		log.Error("wake-word detector init failed: %v", err)
	}
	pipeline := listening.New(log)

	orchOpts := []orchestrator.Option{orchestrator.WithRecordingsDir(*recordingsDir)}
	if wwDetector != nil {
		orchOpts = append(orchOpts, orchestrator.WithListening(pipeline, listenCapture, wwDetector))
	}
	orch := orchestrator.New(recordBuf, recordCapture, settings, bus, batchSvc, streamer, log, orchOpts...)

	hk := hotkey.New(log)
	if *hotkeyShortcut != "" {
		if err := hk.Register(*hotkeyShortcut, func() {
			if err := orch.HandleHotkeyToggle(ctx); err != nil {
				log.Error("hotkey toggle: %v", err)
			}
		}); err != nil {
			log.Error("hotkey registration failed: %v", err)
		}
	}

	hostEvents := bus.Subscribe(events.DefaultSubscriberQueueSize)
	pipelineEvents := make(chan domain.Event, events.DefaultSubscriberQueueSize)
	pipeline.SubscribeEvents(pipelineEvents)
	go forwardPipelineEvents(pipelineEvents, bus)
	go dispatchWakeWord(ctx, hostEvents, orch, log)

	if *listen {
		if err := orch.EnableListening(ctx); err != nil {
			log.Error("enable listening failed: %v", err)
		}
	}

	log.Info("heycatd started (wake_phrases=%v, hotkey=%q, listen=%v)", phrases, *hotkeyShortcut, *listen)

	<-ctx.Done()
	log.Info("shutting down")

	orch.DisableListening()
	_ = hk.Unregister()
	if orch.State() == domain.StateRecording {
		_ = orch.Cancel(context.Background())
	}
}

func splitWakePhrases(raw string) []string {
	parts := strings.Split(raw, ",")
	phrases := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	if len(phrases) == 0 {
		return []string{"hey cat"}
	}
	return phrases
}

// forwardPipelineEvents relays ListeningPipeline's own event stream
// (listening_started/stopped, wake_word_detected/unavailable) onto the
// process-wide EventBus, so the host only ever subscribes in one place.
func forwardPipelineEvents(in <-chan domain.Event, bus *events.Bus) {
	for evt := range in {
		bus.Publish(evt)
	}
}

// dispatchWakeWord is the wake-word entry point's consumer task: it
// watches the bus for wake_word_detected and invokes the same start
// path the hotkey and button entry points use.
func dispatchWakeWord(ctx context.Context, in <-chan domain.Event, orch *orchestrator.Orchestrator, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-in:
			if !ok {
				return
			}
			if evt.Type != domain.EventWakeWordDetected {
				continue
			}
			if err := orch.HandleWakeWordDetected(ctx); err != nil {
				log.Error("wake-word start: %v", err)
			}
		}
	}
}
