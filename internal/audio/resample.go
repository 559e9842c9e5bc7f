package audio

import "gonum.org/v1/gonum/dsp/fourier"

// resampler converts fixed-size blocks from the device's native sample
// rate to 16 kHz via a frequency-domain block resample: forward FFT at
// the input block size, truncate or zero-pad the spectrum to the output
// block size, inverse FFT. The two FFT plans are built once at
// construction and reused for every block — never reinitialized inside
// the capture callback.
type resampler struct {
	srcRate, dstRate int
	blockIn          int
	blockOut         int
	fftIn            *fourier.FFT
	fftOut           *fourier.FFT
	pending          []float32
}

// newResampler builds a resampler for a fixed input block size, expressed
// in source-rate frames. blockIn should match the device's configured
// period size so the callback feeds it whole blocks most of the time.
func newResampler(srcRate, dstRate, blockIn int) *resampler {
	if blockIn < 2 {
		blockIn = 2
	}
	blockOut := blockIn * dstRate / srcRate
	if blockOut < 1 {
		blockOut = 1
	}
	r := &resampler{
		srcRate:  srcRate,
		dstRate:  dstRate,
		blockIn:  blockIn,
		blockOut: blockOut,
	}
	if srcRate != dstRate {
		r.fftIn = fourier.NewFFT(blockIn)
		r.fftOut = fourier.NewFFT(blockOut)
	}
	return r
}

// process appends in to the pending tail and resamples every complete
// block it now contains, in order, leaving a partial block buffered for
// the next call.
func (r *resampler) process(in []float32) []float32 {
	if r.srcRate == r.dstRate {
		return append([]float32{}, in...)
	}

	r.pending = append(r.pending, in...)
	var out []float32
	for len(r.pending) >= r.blockIn {
		block := r.pending[:r.blockIn]
		r.pending = r.pending[r.blockIn:]
		out = append(out, r.resampleBlock(block)...)
	}
	return out
}

func (r *resampler) resampleBlock(block []float32) []float32 {
	src := make([]float64, r.blockIn)
	for i, s := range block {
		src[i] = float64(s)
	}
	spectrum := r.fftIn.Coefficients(nil, src)

	outLen := r.blockOut/2 + 1
	reband := make([]complex128, outLen)
	n := outLen
	if len(spectrum) < n {
		n = len(spectrum)
	}
	copy(reband[:n], spectrum[:n])

	seq := r.fftOut.Sequence(nil, reband)
	scale := 1.0 / float64(r.blockIn)
	out := make([]float32, len(seq))
	for i, v := range seq {
		out[i] = float32(v * scale)
	}
	return out
}
