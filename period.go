package ft2engine

import "math"

// periodBase and fineTuning are lifted directly from the teacher's own
// period math: periodBase is "the amiga MOD period value for C-(-1)"
// (mod.go's periodToPlayerNote comment), and fineTuning is the 16-step
// .12 fixed-point fine-tune scalar table mod.go/player.go used to scale
// a period before handing it to the mixer.
const periodBase = 13696

var fineTuning = [16]int{
	4340, 4308, 4277, 4247, 4216, 4186, 4156, 4126,
	4096, 4067, 4037, 4008, 3979, 3951, 3922, 3894,
}

// retraceNTSCHz is the Amiga NTSC vertical-retrace clock the teacher's
// mixer divides by a period to get a playback frequency (player.go).
const retraceNTSCHz = 7159090.5

// scale is 2^32, the fixed-point unit for Voice.delta (spec.md §3/§4.2).
const scale = uint64(1) << 32

// amigaPeriodForNote inverts mod.go's periodToPlayerNote: given a
// playerNote (C-0 == 12) it returns the Amiga period, then applies the
// fine-tune scalar the same way the teacher's sequenceTick does
// (`period * fineTuning[fineTune] >> 12`). fineTune256 is in FT2's
// -128..127 range and is rescaled to the teacher's 16-step table.
func amigaPeriodForNote(n playerNote, fineTune256 int) int {
	base := periodBase / math.Pow(2, float64(n)/12.0)
	idx := (fineTune256/16 + 8)
	if idx < 0 {
		idx = 0
	}
	if idx > 15 {
		idx = 15
	}
	return int(base) * fineTuning[idx] >> 12
}

// linearPeriodForNote computes the XM linear period for a note plus a
// 16ths-of-a-semitone resolution fine tune (this is the formula XM
// trackers since FT2 use so that a semitone is always exactly 64 linear
// period units regardless of octave, unlike the Amiga table).
func linearPeriodForNote(n playerNote, fineTune256 int) int {
	return 7680 - int(n)*64 - fineTune256/2
}

// periodToFrequency converts a period to a playback frequency in Hz,
// dispatching on whether the song uses Amiga or linear periods. This is
// the §4.2/§3 "period_to_delta" building block; monotonicity
// (period_to_delta(p1) > period_to_delta(p2) for p1 < p2, spec.md §8.3)
// falls out of both branches being strictly decreasing in period.
func periodToFrequency(period int, linear bool) float64 {
	if period <= 0 {
		return 0
	}
	if linear {
		return 8363.0 * math.Pow(2, float64(4608-period)/768.0)
	}
	return retraceNTSCHz / (float64(period) * 2)
}

// periodToDelta turns a period into the Voice.delta fixed-point mixer
// step: 2^32 * (sourceFreq / outputFreq), per spec.md §3.
func periodToDelta(period int, linear bool, outputFreq int) uint64 {
	freq := periodToFrequency(period, linear)
	if freq <= 0 || outputFreq <= 0 {
		return 0
	}
	return uint64(freq / float64(outputFreq) * float64(scale))
}

// samplesPerTick returns the BPM-dependent tick length as a 32:32
// fixed-point value (integer part in the high 32 bits), satisfying the
// exact-ratio invariant of spec.md §8.4:
// samplesPerTickInt + samplesPerTickFrac/2^32 == sampleRate*2.5/bpm.
// Computed as an exact 64-bit ratio (sampleRate*5*2^32)/(2*bpm) rather
// than via floating point, so there is no rounding error to characterize.
func samplesPerTick(sampleRate, bpm int) (intPart uint32, frac uint32) {
	if bpm <= 0 {
		bpm = 125
	}
	num := uint64(sampleRate) * 5 * scale
	den := uint64(bpm) * 2
	v := num / den
	return uint32(v >> 32), uint32(v)
}
