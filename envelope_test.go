package ft2engine

import "testing"

func flatEnvelope() *Envelope {
	return &Envelope{
		Points: []EnvelopePoint{{X: 0, Y: 64}, {X: 10, Y: 0}},
		Flags:  EnvelopeOn,
	}
}

func TestEnvelopeValueOffReturnsFullScale(t *testing.T) {
	env := &Envelope{Flags: 0}
	y, pos, tick, done := envelopeValue(env, 0, 0, false)
	if y != 64 || pos != 0 || tick != 0 || done {
		t.Errorf("envelopeValue(off) = (%d, %d, %d, %v), want (64, 0, 0, false)", y, pos, tick, done)
	}
}

func TestEnvelopeValueHoldsAtSustainUntilReleased(t *testing.T) {
	env := &Envelope{
		Points:    []EnvelopePoint{{X: 0, Y: 64}, {X: 10, Y: 32}, {X: 20, Y: 0}},
		Flags:     EnvelopeOn | EnvelopeSustain,
		SustainPt: 1,
	}
	y, pos, tick, done := envelopeValue(env, 1, 5, false)
	if done || y != 32 || pos != 1 || tick != 5 {
		t.Errorf("envelopeValue(sustain, unreleased) = (%d,%d,%d,%v), want (32,1,5,false)", y, pos, tick, done)
	}

	// Once released, the sustain point no longer holds and the envelope
	// advances normally.
	_, _, _, done = envelopeValue(env, 1, 5, true)
	if done {
		t.Error("a released envelope mid-points shouldn't already be done")
	}
}

func TestEnvelopeValueDoneAtLastPointNoLoop(t *testing.T) {
	env := flatEnvelope()
	// Drive past the last point's X with no loop flag set.
	_, pos, _, done := envelopeValue(env, 1, 10, true)
	if !done || pos != 1 {
		t.Errorf("envelopeValue(past end) = pos=%d done=%v, want pos=1 done=true", pos, done)
	}
}

func TestEnvelopeValueLoopsBackAtLoopEnd(t *testing.T) {
	env := &Envelope{
		Points:    []EnvelopePoint{{X: 0, Y: 0}, {X: 5, Y: 64}, {X: 10, Y: 0}},
		Flags:     EnvelopeOn | EnvelopeLoop,
		LoopStart: 0,
		LoopEnd:   1,
	}
	_, pos, tick, done := envelopeValue(env, 1, 5, true)
	if done || pos != 0 || tick != env.Points[0].X+1 {
		t.Errorf("envelopeValue(loop) = pos=%d tick=%d done=%v, want pos=0 tick=%d done=false",
			pos, tick, done, env.Points[0].X+1)
	}
}

func TestInterpolateEnvelopeLinearMidpoint(t *testing.T) {
	env := &Envelope{Points: []EnvelopePoint{{X: 0, Y: 0}, {X: 10, Y: 64}}}
	if got := interpolateEnvelope(env, 1, 5); got != 32 {
		t.Errorf("interpolateEnvelope(midpoint) = %d, want 32", got)
	}
	if got := interpolateEnvelope(env, 1, 0); got != 0 {
		t.Errorf("interpolateEnvelope(start) = %d, want 0", got)
	}
}

func TestInterpolateEnvelopeFirstPointIsFlat(t *testing.T) {
	env := &Envelope{Points: []EnvelopePoint{{X: 0, Y: 40}}}
	if got := interpolateEnvelope(env, 0, 100); got != 40 {
		t.Errorf("interpolateEnvelope(pos=0) = %d, want 40", got)
	}
}

func TestInterpolateEnvelopeHoldSegmentReturnsFlatValue(t *testing.T) {
	env := &Envelope{Points: []EnvelopePoint{{X: 5, Y: 10}, {X: 5, Y: 50}}}
	if got := interpolateEnvelope(env, 1, 5); got != 50 {
		t.Errorf("interpolateEnvelope(hold) = %d, want 50 (p1.Y)", got)
	}
}

func TestAutoVibratoOffsetZeroWhenRateOrDepthZero(t *testing.T) {
	av := &AutoVibrato{Wave: AutoVibSine, Rate: 0, Depth: 10}
	if got := autoVibratoOffset(av, 64, 255); got != 0 {
		t.Errorf("autoVibratoOffset(rate=0) = %d, want 0", got)
	}
	av = &AutoVibrato{Wave: AutoVibSine, Rate: 10, Depth: 0}
	if got := autoVibratoOffset(av, 64, 255); got != 0 {
		t.Errorf("autoVibratoOffset(depth=0) = %d, want 0", got)
	}
}

func TestAutoVibratoOffsetSquareWave(t *testing.T) {
	av := &AutoVibrato{Wave: AutoVibSquare, Rate: 10, Depth: 16, Sweep: 0}
	if got := autoVibratoOffset(av, 0x80, 0); got <= 0 {
		t.Errorf("autoVibratoOffset(square, pos=0x80) = %d, want > 0", got)
	}
	if got := autoVibratoOffset(av, 0x00, 0); got >= 0 {
		t.Errorf("autoVibratoOffset(square, pos=0x00) = %d, want < 0", got)
	}
}

func TestAutoVibratoOffsetRampDownAndUpAreOpposite(t *testing.T) {
	down := &AutoVibrato{Wave: AutoVibRampDown, Rate: 10, Depth: 16}
	up := &AutoVibrato{Wave: AutoVibRampUp, Rate: 10, Depth: 16}
	dv := autoVibratoOffset(down, 0, 0)
	uv := autoVibratoOffset(up, 0, 0)
	if dv <= 0 || uv >= 0 {
		t.Errorf("ramp down/up at pos=0 = (%d, %d), want (>0, <0)", dv, uv)
	}
}

func TestAutoVibratoOffsetSweepScalesDepth(t *testing.T) {
	av := &AutoVibrato{Wave: AutoVibSquare, Rate: 10, Depth: 64, Sweep: 100}
	early := autoVibratoOffset(av, 0x80, 10)
	late := autoVibratoOffset(av, 0x80, 100)
	if early >= late {
		t.Errorf("sweep-in offset at pos 10 (%d) should be smaller than at pos 100 (%d)", early, late)
	}
}

func TestSineTableSymmetry(t *testing.T) {
	if sineTable[0] != 0 {
		t.Errorf("sineTable[0] = %d, want 0", sineTable[0])
	}
	if sineTable[64] < 60 {
		t.Errorf("sineTable[64] (quarter phase, peak) = %d, want close to 64", sineTable[64])
	}
	if sineTable[192] > -60 {
		t.Errorf("sineTable[192] (three-quarter phase, trough) = %d, want close to -64", sineTable[192])
	}
}
