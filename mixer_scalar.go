package ft2engine

// These are scalar mixing routines: no SIMD, plain Go, one voice mixed
// at a time. Mirrors the teacher's own mixer_scalar.go split between a
// mono/stereo accumulate loop and the dispatch file (mixer.go) that
// picks it by build tag; generalized here to float L/R buffers, volume
// ramping and the five interpolation kernels of spec.md §4.4, instead of
// the teacher's int16 nearest-neighbour-only mix.

const fracToFloat = 1.0 / 4294967296.0 // 1/2^32

// mixVoiceScalar mixes up to n frames of v into outL/outR, returning how
// many frames were actually produced (less than n only if a non-looping
// voice reaches its sample end partway through). Implements the four
// per-frame steps of spec.md §4.4.
func mixVoiceScalar(v *Voice, t *interpTables, outL, outR []float32, n int) int {
	if !v.active || v.sample == nil {
		return 0
	}

	if v.rampRemain == 0 && v.currVolL == 0 && v.currVolR == 0 {
		return v.advanceSilently(n)
	}

	for i := 0; i < n; i++ {
		s := v.sampleValue(t)
		outL[i] += s * v.currVolL
		outR[i] += s * v.currVolR

		if v.rampRemain > 0 {
			v.currVolL += v.rampDeltaL
			v.currVolR += v.rampDeltaR
			v.rampRemain--
			if v.rampRemain == 0 {
				v.currVolL, v.currVolR = v.targetVolL, v.targetVolR
			}
		}

		if !v.advanceOne() {
			return i + 1
		}
	}
	return n
}

// advanceSilently advances a voice's position/position_frac (and, for
// ping-pong, samplingBackwards/hasLooped) as if n frames of the full
// mixer had run, without touching the output buffers or the LUTs. This
// is the silence fast-path of spec.md §4.4/§8.8: because it calls the
// exact same per-frame state transition as the audible path
// (advanceOne), the end state is identical by construction, which is
// what the equivalence property in spec.md §8.8 requires.
//
// TODO: batch the forward-loop case with a single modulo instead of
// stepping frame by frame once a profile shows this path is hot.
func (v *Voice) advanceSilently(n int) int {
	for i := 0; i < n; i++ {
		if !v.advanceOne() {
			return i + 1
		}
	}
	return n
}

// sampleValue computes one interpolated sample in [-1, 1] at the voice's
// current fractional position, dispatching on interpolation mode.
func (v *Voice) sampleValue(t *interpTables) float32 {
	dir := 1
	if v.samplingBackwards {
		dir = -1
	}

	read := func(off int) float32 {
		return v.sample.floatAt(int(v.position) + off*dir)
	}

	fi := int(v.positionFrac >> (32 - lutFracBits))

	switch v.interp {
	case InterpNearest:
		return read(0)
	case InterpLinear:
		a, b := read(0), read(1)
		f := float32(v.positionFrac) * fracToFloat
		return a + (b-a)*f
	case InterpQuadratic:
		w := t.quadratic[fi*3 : fi*3+3]
		return read(-1)*w[0] + read(0)*w[1] + read(1)*w[2]
	case InterpCubic:
		w := t.cubic[fi*4 : fi*4+4]
		return read(-1)*w[0] + read(0)*w[1] + read(1)*w[2] + read(2)*w[3]
	case InterpSinc:
		var tbl []float32
		taps := v.sincTaps
		if taps == sinc16Taps {
			tbl = t.sinc16[v.sincIdx]
		} else {
			tbl = t.sinc8[v.sincIdx]
		}
		w := tbl[fi*taps : fi*taps+taps]
		half := taps / 2
		var sum float32
		for k := 0; k < taps; k++ {
			sum += read(k-half+1) * w[k]
		}
		return sum
	default:
		return read(0)
	}
}

// floatAt reads the sample's padded data at a logical offset (may be
// negative, reaching into the left taps, or past Length, reaching into
// the right taps) and scales it to [-1, 1].
func (s *Sample) floatAt(idx int) float32 {
	lo, hi := -MaxLeftTaps, s.Length+MaxRightTaps
	if idx < lo {
		idx = lo
	}
	if idx >= hi {
		idx = hi - 1
	}
	if s.Is16Bit {
		return float32(s.at16(idx)) / 32768
	}
	return float32(s.at8(idx)) / 128
}

// advanceOne steps the voice forward by one output frame: advances
// position_frac/position, then applies loop-type-specific wrap/bounce.
// Returns false if the voice became inactive (non-looping sample ran
// past its end) during this step.
func (v *Voice) advanceOne() bool {
	sum := uint64(v.positionFrac) + v.delta
	carry := int64(sum >> 32)
	v.positionFrac = uint32(sum)

	if v.samplingBackwards {
		v.position -= carry
	} else {
		v.position += carry
	}

	switch v.loopType {
	case LoopNone:
		if v.position >= int64(v.sampleEnd) {
			v.deactivate()
			return false
		}
	case LoopForward:
		for v.position >= int64(v.loopEnd) {
			v.position -= int64(v.loopLen)
			v.hasLooped = true
		}
	case LoopPingPong:
		// The -1 offsets keep each reflected position inside
		// [loopStart, loopEnd): reflecting a position that lands exactly
		// on a boundary back onto that same boundary would otherwise
		// leave the loop condition true forever. A step longer than the
		// loop can reflect past the opposite end, so bouncing repeats
		// until the position is inside.
		for v.position >= int64(v.loopEnd) || v.position < int64(v.loopStart) {
			if v.position >= int64(v.loopEnd) {
				over := v.position - int64(v.loopEnd)
				v.position = int64(v.loopEnd) - over - 1
			} else {
				under := int64(v.loopStart) - v.position
				v.position = int64(v.loopStart) + under - 1
			}
			v.samplingBackwards = !v.samplingBackwards
			v.hasLooped = true
		}
	}
	return true
}
