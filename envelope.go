package ft2engine

import "math"

// Envelope evaluation and autovibrato, generalized from the teacher's
// tick-based channel update (player.go's per-tick channel stepping) and
// grounded on other_examples/peakle-xm's envelope-tick/arpeggio-table
// idiom (stream.go), which is the only example in the pack that carries
// XM-style envelopes end to end.

// envelopeValue walks one tick of env for a channel, given whether the
// channel has been key-released (released=true after a key-off or past
// note duration), returning the envelope's current Y value scaled 0..64.
// pos/tick are the channel's persisted phase (volEnvPos/volEnvTick or
// panEnvPos/panEnvTick); done reports whether the envelope has reached
// its end (no loop, no sustain, past the last point).
func envelopeValue(env *Envelope, pos, tick int, released bool) (value, newPos, newTick int, done bool) {
	if env.Flags&EnvelopeOn == 0 || len(env.Points) == 0 {
		return 64, pos, tick, false
	}
	if pos >= len(env.Points) {
		pos = len(env.Points) - 1
	}

	// Sustain: hold at the sustain point until the note is released.
	if !released && env.Flags&EnvelopeSustain != 0 && pos == env.SustainPt {
		return env.Points[pos].Y, pos, tick, false
	}

	if tick >= env.Points[pos].X {
		if env.Flags&EnvelopeLoop != 0 && pos >= env.LoopEnd {
			pos = env.LoopStart
			tick = env.Points[pos].X
		} else if pos+1 < len(env.Points) {
			pos++
		} else {
			return env.Points[pos].Y, pos, tick, true
		}
	}

	y := interpolateEnvelope(env, pos, tick)
	tick++
	return y, pos, tick, false
}

// seekEnvelopeToTick finds the point index an Lxx (set envelope
// position) effect should land on for the given absolute tick, walking
// points the way FT2's setEnvelopePos does: advance until the next
// point's X exceeds the target tick, landing on the point whose segment
// contains it.
func seekEnvelopeToTick(env *Envelope, t int) (pos, tick int) {
	if len(env.Points) == 0 {
		return 0, t
	}
	pos = 0
	for pos < len(env.Points)-1 && env.Points[pos].X <= t {
		pos++
	}
	return pos, t
}

// interpolateEnvelope linearly interpolates between points[pos-1] and
// points[pos] at the given tick, or returns the flat value if pos is 0
// or the two points share an X (a "hold" segment FT2 envelopes permit).
func interpolateEnvelope(env *Envelope, pos, tick int) int {
	if pos == 0 {
		return env.Points[0].Y
	}
	p0, p1 := env.Points[pos-1], env.Points[pos]
	if p1.X <= p0.X {
		return p1.Y
	}
	if tick <= p0.X {
		return p0.Y
	}
	frac := float64(tick-p0.X) / float64(p1.X-p0.X)
	return p0.Y + int(frac*float64(p1.Y-p0.Y))
}

// autoVibratoOffset computes the current autovibrato period offset for
// an instrument, per spec.md §4.1's auto-vibrato (sweep-in depth, one
// of four waveforms).
func autoVibratoOffset(av *AutoVibrato, pos, sweepPos int) int {
	if av.Rate == 0 || av.Depth == 0 {
		return 0
	}
	var wave int
	switch av.Wave {
	case AutoVibSine:
		wave = sineTable[pos&0xFF]
	case AutoVibSquare:
		if pos&0x80 != 0 {
			wave = 64
		} else {
			wave = -64
		}
	case AutoVibRampDown:
		wave = 64 - (pos&0xFF)/2
	case AutoVibRampUp:
		wave = (pos&0xFF)/2 - 64
	}

	depth := av.Depth
	if av.Sweep > 0 && sweepPos < av.Sweep {
		depth = depth * sweepPos / av.Sweep
	}
	return wave * depth / 256
}

// sineTable is the classic 0..255-index, -64..64-range sine lookup
// FT2-family trackers use for vibrato/tremolo/autovibrato waveform 0,
// values at 1-degree-ish resolution (64*sin(2*pi*i/256)).
var sineTable = buildSineTable()

func buildSineTable() [256]int {
	var t [256]int
	for i := 0; i < 256; i++ {
		t[i] = int(64.0 * math.Sin(2*math.Pi*float64(i)/256.0))
	}
	return t
}
