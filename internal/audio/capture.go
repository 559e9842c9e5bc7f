// Package audio owns microphone capture: each Capture is one malgo
// capture stream, resampled to 16 kHz mono and fanned out to the
// recording buffer, an optional streaming channel, and the analysis ring
// the wake-word and listening pipelines drain. A process may hold more
// than one Capture (heycatd uses one per recording and one for
// listening); each opens its own stream.
package audio

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/agentflow-ai/heycat/internal/config"
	"github.com/agentflow-ai/heycat/internal/domain"
	"github.com/agentflow-ai/heycat/internal/logger"
	"github.com/agentflow-ai/heycat/internal/recording"
)

const (
	nativeSampleRate    = 48000
	targetSampleRate    = 16000
	preferredBufferSize = 256
)

// Capture owns the device handle. Only one Start may be in flight at a
// time; Stop is idempotent and safe before Start or after a prior Stop.
type Capture struct {
	log *logger.Logger

	mu      sync.Mutex
	running bool
	malCtx  *malgo.AllocatedContext
	device  *malgo.Device

	ring *AnalysisRing
}

// New creates a capture device wrapper. No device is opened yet.
func New(log *logger.Logger) *Capture {
	return &Capture{log: log, ring: NewAnalysisRing(targetSampleRate)}
}

// AnalysisRing returns the transport ring ListeningPipeline drains once
// per analysis cycle. It exists independently of any running capture so
// callers can wire it up before the first Start.
func (c *Capture) AnalysisRing() *AnalysisRing {
	return c.ring
}

// Start opens the capture device at the buffer size configured via
// HEYCAT_AUDIO_BUFFER_SIZE (falling back to 256 frames), and begins
// resampling and fanning samples out. buf receives every sample for the
// life of the recording. stream, if non-nil, additionally receives
// StreamingChunkSize-aligned chunks by non-blocking send, for
// StreamingTranscriber; a full channel drops the chunk rather than
// blocking the real-time callback. stop, if non-nil, is an auxiliary
// cancellation channel: its closure triggers exactly one Stop() call, in
// addition to whatever explicit Stop() the caller makes.
//
// Returns the sample rate samples are delivered at — always 16000 — so
// callers never hardcode it twice.
func (c *Capture) Start(buf *recording.Buffer, stop <-chan struct{}, stream chan<- domain.Pcm) (int, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return 0, domain.NewError(domain.KindState, "audio: capture already running", domain.ErrAlreadyRunning)
	}

	bufferFrames, ok := config.BufferSizeFromEnv(preferredBufferSize)
	if !ok {
		c.log.Warn("audio: HEYCAT_AUDIO_BUFFER_SIZE invalid, using default %d", preferredBufferSize)
	}

	malCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		c.mu.Unlock()
		return 0, domain.NewError(domain.KindResource, "audio: init context", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = nativeSampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1
	devCfg.PeriodSizeInFrames = uint32(bufferFrames)

	rs := newResampler(nativeSampleRate, targetSampleRate, bufferFrames)
	var accum domain.Pcm        // streaming-chunk accumulator, touched only on the callback thread
	var lastDropWarn time.Time // same thread-confinement as accum

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			n := len(raw) / 2
			samples := make([]float32, n)
			for i := 0; i < n; i++ {
				samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:i*2+2]))) / 32768.0
			}

			resampled := rs.process(samples)
			if len(resampled) == 0 {
				return
			}

			buf.Append(resampled)
			c.ring.Push(resampled)

			if stream == nil {
				return
			}
			accum = append(accum, resampled...)
			for len(accum) >= domain.StreamingChunkSize {
				chunk := make(domain.Pcm, domain.StreamingChunkSize)
				copy(chunk, accum[:domain.StreamingChunkSize])
				accum = accum[domain.StreamingChunkSize:]
				select {
				case stream <- chunk:
				default:
					if now := time.Now(); now.Sub(lastDropWarn) >= time.Second {
						lastDropWarn = now
						c.log.Warn("audio: streaming channel full, dropping chunk")
					}
				}
			}
		},
	}

	device, err := malgo.InitDevice(malCtx.Context, devCfg, callbacks)
	if err != nil {
		_ = malCtx.Uninit()
		malCtx.Free()
		c.mu.Unlock()
		return 0, domain.NewError(domain.KindResource, "audio: init device", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malCtx.Uninit()
		malCtx.Free()
		c.mu.Unlock()
		return 0, domain.NewError(domain.KindResource, "audio: device start", err)
	}

	c.malCtx = malCtx
	c.device = device
	c.running = true
	c.mu.Unlock()

	if stop != nil {
		go func() {
			<-stop
			_ = c.Stop()
		}()
	}

	c.log.Info("audio: capture started (native=%dHz, target=%dHz, buffer=%d frames)", nativeSampleRate, targetSampleRate, bufferFrames)
	return targetSampleRate, nil
}

// Stop tears the device down. Idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}

	_ = c.device.Stop()
	c.device.Uninit()
	_ = c.malCtx.Uninit()
	c.malCtx.Free()
	c.device = nil
	c.malCtx = nil
	c.running = false
	c.log.Info("audio: capture stopped")
	return nil
}

// Running reports whether the device is currently open.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
