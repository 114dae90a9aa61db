package ft2engine

import (
	"math"
	"sync"
)

// InterpolationMode selects the resampling kernel the mixer uses, per
// spec.md §3/§4.2. Sinc further subselects among three precomputed
// kernels at voice-update time based on the voice's fixed-point delta,
// so the mixer's inner loop is always a single indexed multiply-add
// regardless of which of the five user-facing modes is active.
type InterpolationMode int

const (
	InterpNearest InterpolationMode = iota
	InterpLinear
	InterpQuadratic
	InterpCubic
	InterpSinc
)

const (
	lutFracBits = 13
	lutFracSize = 1 << lutFracBits // 8192

	sinc8Taps  = 8
	sinc16Taps = 16
)

// sincKernelSpec describes one of the three Kaiser-windowed sinc kernel
// families spec.md §4.2 requires, at both the 8-tap and 16-tap lengths.
type sincKernelSpec struct {
	cutoff float64
	beta   float64
}

var sincKernelSpecs = [3]sincKernelSpec{
	{cutoff: 1.0, beta: 9.64},
	{cutoff: 0.75, beta: 8.5},
	{cutoff: 0.425, beta: 7.3},
}

// interpTables holds the process-wide, refcounted interpolation LUTs of
// spec.md §4.2: one quadratic spline table, one cubic (Catmull-Rom)
// table, and three sinc kernel families at two tap lengths each.
type interpTables struct {
	// quadratic/cubic store per-fraction weight tuples flattened:
	// quadratic has 3 weights per fraction, cubic has 4.
	quadratic []float32 // lutFracSize*3
	cubic     []float32 // lutFracSize*4

	sinc8  [3][]float32 // each lutFracSize*sinc8Taps
	sinc16 [3][]float32 // each lutFracSize*sinc16Taps
}

var (
	lutMu    sync.Mutex
	lutTable *interpTables
	lutRefs  int
)

// acquireInterpTables increments the process-wide refcount, building the
// tables on the first acquisition (lazy init). Every Engine calls this
// once at creation and releaseInterpTables once at destruction, per
// spec.md §5/§9 "Global state".
func acquireInterpTables() *interpTables {
	lutMu.Lock()
	defer lutMu.Unlock()
	if lutTable == nil {
		lutTable = buildInterpTables()
	}
	lutRefs++
	return lutTable
}

func releaseInterpTables() {
	lutMu.Lock()
	defer lutMu.Unlock()
	if lutRefs == 0 {
		return
	}
	lutRefs--
	if lutRefs == 0 {
		lutTable = nil
	}
}

func buildInterpTables() *interpTables {
	t := &interpTables{
		quadratic: make([]float32, lutFracSize*3),
		cubic:     make([]float32, lutFracSize*4),
	}
	for i := 0; i < lutFracSize; i++ {
		frac := float64(i) / float64(lutFracSize)

		// 3-point Lagrange ("quadratic spline") weights for taps at
		// offsets -1, 0, +1 relative to the integer sample position.
		w0 := 0.5 * frac * (frac - 1)
		w1 := 1 - frac*frac
		w2 := 0.5 * frac * (frac + 1)
		t.quadratic[i*3+0] = float32(w0)
		t.quadratic[i*3+1] = float32(w1)
		t.quadratic[i*3+2] = float32(w2)

		// Catmull-Rom cubic weights for taps at offsets -1, 0, +1, +2.
		fr2 := frac * frac
		fr3 := fr2 * frac
		c0 := -0.5*fr3 + fr2 - 0.5*frac
		c1 := 1.5*fr3 - 2.5*fr2 + 1
		c2 := -1.5*fr3 + 2*fr2 + 0.5*frac
		c3 := 0.5*fr3 - 0.5*fr2
		t.cubic[i*4+0] = float32(c0)
		t.cubic[i*4+1] = float32(c1)
		t.cubic[i*4+2] = float32(c2)
		t.cubic[i*4+3] = float32(c3)
	}

	for k, spec := range sincKernelSpecs {
		t.sinc8[k] = buildSincTable(sinc8Taps, spec)
		t.sinc16[k] = buildSincTable(sinc16Taps, spec)
	}

	return t
}

// buildSincTable fills a lutFracSize*taps table of Kaiser-windowed sinc
// coefficients for a given cutoff/beta kernel, normalized so each row
// (one fractional position) sums to 1.
func buildSincTable(taps int, spec sincKernelSpec) []float32 {
	tbl := make([]float32, lutFracSize*taps)
	half := taps / 2

	for i := 0; i < lutFracSize; i++ {
		frac := float64(i) / float64(lutFracSize)

		row := make([]float64, taps)
		sum := 0.0
		for t := 0; t < taps; t++ {
			// Sample position relative to this tap, centred so taps
			// straddle the fractional offset symmetrically.
			x := float64(t-half+1) - frac
			row[t] = sincFn(x*spec.cutoff) * spec.cutoff * kaiserWindow(x, taps, spec.beta)
			sum += row[t]
		}
		if sum != 0 {
			for t := range row {
				row[t] /= sum
			}
		}
		for t := 0; t < taps; t++ {
			tbl[i*taps+t] = float32(row[t])
		}
	}
	return tbl
}

func sincFn(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// kaiserWindow evaluates the Kaiser-Bessel window at tap position x
// (relative to the kernel centre, in taps) for a kernel of the given
// length and beta.
func kaiserWindow(x float64, taps int, beta float64) float64 {
	half := float64(taps-1) / 2
	r := (x + half - float64(taps/2-1)) / half
	if r < -1 || r > 1 {
		return 0
	}
	return besselI0(beta*math.Sqrt(1-r*r)) / besselI0(beta)
}

// besselI0 computes the modified Bessel function of the first kind,
// order 0, via its power series - the standard way to evaluate a
// Kaiser window without a table, accurate to float64 precision well
// past the beta values spec.md §4.2 uses (<=9.64).
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfXSq := (x / 2) * (x / 2)
	for k := 1; k < 32; k++ {
		term *= halfXSq / (float64(k) * float64(k))
		sum += term
		if term < 1e-15*sum {
			break
		}
	}
	return sum
}

// chooseSincKernel selects which of the three precomputed sinc kernel
// families, and which tap count, a voice should use given its current
// fixed-point delta, per spec.md §4.2's exact thresholds.
func chooseSincKernel(delta uint64) (taps int, kernel int) {
	switch {
	case delta <= uint64(float64(scale)*1.1875):
		return sinc16Taps, 0
	case delta <= uint64(float64(scale)*1.5):
		return sinc8Taps, 1
	default:
		return sinc8Taps, 2
	}
}
