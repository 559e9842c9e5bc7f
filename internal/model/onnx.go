package model

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	ort "github.com/yalue/onnxruntime_go"
)

// onnxLibPath is the path to the ONNX Runtime shared library. It must be
// set once via SetOnnxLibraryPath before the first NewOnnxEngineLoader
// call in the process; ort.InitializeEnvironment is a process-global
// operation, matching the teacher's wakeword.Detector.Start.
var (
	onnxLibMu   sync.Mutex
	onnxLibPath string
	onnxInited  bool
)

// SetOnnxLibraryPath records the ONNX Runtime shared library location.
// Call once during process start-up, before loading any model.
func SetOnnxLibraryPath(path string) {
	onnxLibMu.Lock()
	defer onnxLibMu.Unlock()
	onnxLibPath = path
}

func ensureOnnxEnvironment() error {
	onnxLibMu.Lock()
	defer onnxLibMu.Unlock()
	if onnxInited {
		return nil
	}
	if onnxLibPath != "" {
		ort.SetSharedLibraryPath(onnxLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}
	onnxInited = true
	return nil
}

// onnxKind distinguishes the two model directory layouts this core
// consumes. Batch (TDT) is a token-and-duration transducer: encoder,
// decoder, joiner. Streaming (EOU) is a single end-of-utterance model
// run once per chunk.
type onnxKind int

const (
	KindBatchTDT onnxKind = iota
	KindStreamingEOU
)

// melConfig mirrors the mel-spectrogram front end shared by both model
// kinds: 16 kHz, 25 ms windows, 10 ms hop.
var melConfig = MelConfig{SampleRate: 16000, NMels: 64, HopLength: 160, WinLength: 400, NFFT: 400}

// NewOnnxEngineLoader returns an EngineLoader for kind. modelDir must
// contain, depending on kind:
//
//	Batch (TDT):     encoder.onnx, decoder.onnx, joiner.onnx, vocab.txt
//	Streaming (EOU): model.onnx, vocab.txt
//
// File names and on-disk layout are the model format's own contract
// (opaque to this package beyond what it needs to open a session); the
// model-download component is responsible for populating modelDir
// before this loader ever runs.
func NewOnnxEngineLoader(kind onnxKind) EngineLoader {
	return func(modelDir string) (Engine, error) {
		if err := ensureOnnxEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx environment: %w", err)
		}
		vocab, blankID, err := loadVocab(filepath.Join(modelDir, "vocab.txt"))
		if err != nil {
			return nil, err
		}
		mp := newMelProcessor(melConfig)

		switch kind {
		case KindStreamingEOU:
			return newEouEngine(modelDir, vocab, blankID, mp)
		default:
			return newTdtEngine(modelDir, vocab, blankID, mp)
		}
	}
}

func loadVocab(path string) (vocab []string, blankID int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("model: opening vocab %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		vocab = append(vocab, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	if len(vocab) == 0 {
		return nil, 0, fmt.Errorf("model: empty vocab %q", path)
	}
	// Convention shared by transducer exports: the blank/unknown symbol
	// is the first line of the vocab file.
	return vocab, 0, nil
}

// dynSession wraps a DynamicAdvancedSession with the output-count it was
// opened with, since Run takes a pre-sized (possibly nil-filled) output
// slice rather than returning one.
type dynSession struct {
	sess     *ort.DynamicAdvancedSession
	nOutputs int
}

func (s *dynSession) run(inputs []ort.Value) ([]ort.Value, error) {
	outputs := make([]ort.Value, s.nOutputs)
	if err := s.sess.Run(inputs, outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (s *dynSession) Destroy() { s.sess.Destroy() }

// tdtEngine is the batch, file-based, multilingual transducer: a
// classic encoder/decoder/joiner transducer triplet, greedy-decoded.
type tdtEngine struct {
	mu sync.Mutex

	encoder *dynSession
	decoder *dynSession
	joiner  *dynSession

	vocab   []string
	blankID int
	mel     *melProcessor
}

var _ Engine = (*tdtEngine)(nil)

func newTdtEngine(modelDir string, vocab []string, blankID int, mp *melProcessor) (*tdtEngine, error) {
	encPath := filepath.Join(modelDir, "encoder.onnx")
	decPath := filepath.Join(modelDir, "decoder.onnx")
	joinPath := filepath.Join(modelDir, "joiner.onnx")

	enc, err := newDynamicSession(encPath)
	if err != nil {
		return nil, fmt.Errorf("model: loading encoder: %w", err)
	}
	dec, err := newDynamicSession(decPath)
	if err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("model: loading decoder: %w", err)
	}
	join, err := newDynamicSession(joinPath)
	if err != nil {
		enc.Destroy()
		dec.Destroy()
		return nil, fmt.Errorf("model: loading joiner: %w", err)
	}

	return &tdtEngine{encoder: enc, decoder: dec, joiner: join, vocab: vocab, blankID: blankID, mel: mp}, nil
}

func (e *tdtEngine) Transcribe(ctx context.Context, pcm []float32, sampleRate, channels int) ([]Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mono := downmix(pcm, channels)
	feats := e.mel.compute(mono)

	encTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(feats)), int64(melConfig.NMels)), flatten(feats))
	if err != nil {
		return nil, err
	}
	defer encTensor.Destroy()

	encOut, err := e.encoder.run([]ort.Value{encTensor})
	if err != nil {
		return nil, fmt.Errorf("encoder run: %w", err)
	}
	defer destroyAll(encOut)

	return greedyDecode(e.decoder, e.joiner, encOut[0], e.vocab, e.blankID)
}

func (e *tdtEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.encoder.Destroy()
	e.decoder.Destroy()
	e.joiner.Destroy()
	return nil
}

// eouEngine is the streaming end-of-utterance model: one forward pass
// per call over the log-mel features of the samples it is given. The
// only input tensor is those features; no end-of-stream (is_final) input
// is passed to the model, so a final flush runs exactly like any other
// chunk.
type eouEngine struct {
	mu sync.Mutex

	session *dynSession
	vocab   []string
	blankID int
	mel     *melProcessor
}

var _ Engine = (*eouEngine)(nil)

func newEouEngine(modelDir string, vocab []string, blankID int, mp *melProcessor) (*eouEngine, error) {
	sess, err := newDynamicSession(filepath.Join(modelDir, "model.onnx"))
	if err != nil {
		return nil, fmt.Errorf("model: loading streaming model: %w", err)
	}
	return &eouEngine{session: sess, vocab: vocab, blankID: blankID, mel: mp}, nil
}

func (e *eouEngine) Transcribe(ctx context.Context, pcm []float32, sampleRate, channels int) ([]Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mono := downmix(pcm, channels)
	feats := e.mel.compute(mono)

	inTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(feats)), int64(melConfig.NMels)), flatten(feats))
	if err != nil {
		return nil, err
	}
	defer inTensor.Destroy()

	out, err := e.session.run([]ort.Value{inTensor})
	if err != nil {
		return nil, fmt.Errorf("streaming model run: %w", err)
	}
	defer destroyAll(out)

	ids := argmaxSequence(out[0].(*ort.Tensor[float32]).GetData(), len(e.vocab))
	return idsToTokens(ids, e.vocab, e.blankID), nil
}

func (e *eouEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Destroy()
	return nil
}

// newDynamicSession opens an ONNX Runtime session whose input/output
// names are discovered from the model file itself, the way every engine
// in the corpus does it rather than hard-coding tensor names.
func newDynamicSession(path string) (*dynSession, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, err
	}
	inNames := make([]string, len(inInfo))
	for i, v := range inInfo {
		inNames[i] = v.Name
	}
	outNames := make([]string, len(outInfo))
	for i, v := range outInfo {
		outNames[i] = v.Name
	}
	sess, err := ort.NewDynamicAdvancedSession(path, inNames, outNames, nil)
	if err != nil {
		return nil, err
	}
	return &dynSession{sess: sess, nOutputs: len(outNames)}, nil
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		v.Destroy()
	}
}

// greedyDecode runs the decoder/joiner loop one encoder frame at a time,
// emitting at most maxSymbolsPerFrame symbols before advancing — the
// standard transducer greedy-search shape.
const maxSymbolsPerFrame = 10

func greedyDecode(decoder, joiner *dynSession, encOut ort.Value, vocab []string, blankID int) ([]Token, error) {
	encTensor, ok := encOut.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("model: unexpected encoder output tensor type")
	}
	shape := encTensor.GetShape()
	if len(shape) < 3 {
		return nil, fmt.Errorf("model: unexpected encoder output rank %d", len(shape))
	}
	frames := int(shape[1])
	dim := int(shape[2])
	data := encTensor.GetData()

	var tokens []Token
	prevToken := blankID

	for f := 0; f < frames; f++ {
		frame := data[f*dim : (f+1)*dim]
		for step := 0; step < maxSymbolsPerFrame; step++ {
			decIn, err := ort.NewTensor(ort.NewShape(1, 1), []int64{int64(prevToken)})
			if err != nil {
				return nil, err
			}
			decOut, err := decoder.run([]ort.Value{decIn})
			decIn.Destroy()
			if err != nil {
				return nil, fmt.Errorf("decoder run: %w", err)
			}

			encFrameTensor, err := ort.NewTensor(ort.NewShape(1, int64(dim)), append([]float32{}, frame...))
			if err != nil {
				destroyAll(decOut)
				return nil, err
			}
			joinOut, err := joiner.run(append([]ort.Value{encFrameTensor}, decOut...))
			encFrameTensor.Destroy()
			destroyAll(decOut)
			if err != nil {
				return nil, fmt.Errorf("joiner run: %w", err)
			}

			logits := joinOut[0].(*ort.Tensor[float32]).GetData()
			destroyAll(joinOut)

			id := argmax(logits)
			if id == blankID {
				break
			}
			if id >= 0 && id < len(vocab) {
				tokens = append(tokens, Token{Text: vocab[id]})
			}
			prevToken = id
		}
	}
	return tokens, nil
}

func argmax(logits []float32) int {
	best, bestIdx := float32(math.Inf(-1)), -1
	for i, v := range logits {
		if v > best {
			best = v
			bestIdx = i
		}
	}
	return bestIdx
}

// argmaxSequence splits a flat [frames*vocabSize] logits buffer into
// per-frame argmax ids, for the streaming engine's single forward pass.
func argmaxSequence(logits []float32, vocabSize int) []int {
	if vocabSize == 0 {
		return nil
	}
	frames := len(logits) / vocabSize
	ids := make([]int, frames)
	for f := 0; f < frames; f++ {
		ids[f] = argmax(logits[f*vocabSize : (f+1)*vocabSize])
	}
	return ids
}

func idsToTokens(ids []int, vocab []string, blankID int) []Token {
	var tokens []Token
	prev := -1
	for _, id := range ids {
		if id == blankID || id == prev {
			prev = id
			continue
		}
		if id >= 0 && id < len(vocab) {
			tokens = append(tokens, Token{Text: vocab[id]})
		}
		prev = id
	}
	return tokens
}

func downmix(pcm []float32, channels int) []float32 {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += pcm[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func flatten(feats [][]float32) []float32 {
	if len(feats) == 0 {
		return nil
	}
	out := make([]float32, 0, len(feats)*len(feats[0]))
	for _, f := range feats {
		out = append(out, f...)
	}
	return out
}

// MelConfig parametrizes the log-mel front end shared by both model
// kinds, grounded on the mel-spectrogram stage every ONNX ASR pipeline
// in the corpus runs ahead of its encoder.
type MelConfig struct {
	SampleRate int
	NMels      int
	HopLength  int
	WinLength  int
	NFFT       int
}

type melProcessor struct {
	cfg     MelConfig
	filters [][]float64
	window  []float64
	fft     *fourier.FFT
}

func newMelProcessor(cfg MelConfig) *melProcessor {
	return &melProcessor{
		cfg:     cfg,
		filters: melFilterbank(cfg.NFFT, cfg.NMels, cfg.SampleRate),
		window:  hannWindow(cfg.WinLength),
		fft:     fourier.NewFFT(cfg.NFFT),
	}
}

// compute returns one log-mel frame per hop across samples, left-aligned
// (no centering): frames = (len-winLength)/hopLength + 1.
func (p *melProcessor) compute(samples []float32) [][]float32 {
	if len(samples) < p.cfg.WinLength {
		samples = append(append([]float32{}, samples...), make([]float32, p.cfg.WinLength-len(samples))...)
	}
	frames := (len(samples)-p.cfg.WinLength)/p.cfg.HopLength + 1
	if frames < 1 {
		frames = 1
	}

	windowed := make([]float64, p.cfg.NFFT)
	out := make([][]float32, frames)

	for fr := 0; fr < frames; fr++ {
		start := fr * p.cfg.HopLength
		for i := range windowed {
			windowed[i] = 0
		}
		for i := 0; i < p.cfg.WinLength && start+i < len(samples); i++ {
			windowed[i] = float64(samples[start+i]) * p.window[i]
		}

		spectrum := p.fft.Coefficients(nil, windowed)
		power := make([]float64, len(spectrum))
		for i, c := range spectrum {
			power[i] = real(c)*real(c) + imag(c)*imag(c)
		}

		melFrame := make([]float32, p.cfg.NMels)
		for m, filt := range p.filters {
			var e float64
			for k, w := range filt {
				if k < len(power) {
					e += w * power[k]
				}
			}
			melFrame[m] = float32(math.Log(e + 1e-10))
		}
		out[fr] = melFrame
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// melFilterbank builds a triangular mel filterbank over nfft/2+1 FFT
// bins, the standard construction every log-mel front end in the corpus
// shares regardless of which neural backend consumes it.
func melFilterbank(nfft, nmels, sampleRate int) [][]float64 {
	nBins := nfft/2 + 1
	hzToMel := func(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }
	melToHz := func(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

	lowMel, highMel := hzToMel(0), hzToMel(float64(sampleRate)/2)
	points := make([]float64, nmels+2)
	for i := range points {
		points[i] = melToHz(lowMel + (highMel-lowMel)*float64(i)/float64(nmels+1))
	}
	binIdx := make([]int, len(points))
	for i, hz := range points {
		binIdx[i] = int(math.Floor((float64(nfft) + 1) * hz / float64(sampleRate)))
	}

	filters := make([][]float64, nmels)
	for m := 0; m < nmels; m++ {
		filt := make([]float64, nBins)
		left, center, right := binIdx[m], binIdx[m+1], binIdx[m+2]
		for k := left; k < center && k < nBins; k++ {
			if center > left {
				filt[k] = float64(k-left) / float64(center-left)
			}
		}
		for k := center; k < right && k < nBins; k++ {
			if right > center {
				filt[k] = float64(right-k) / float64(right-center)
			}
		}
		filters[m] = filt
	}
	return filters
}
