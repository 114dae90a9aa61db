package ft2engine

import "testing"

func TestApplyVolumeColumnSetsVolume(t *testing.T) {
	c := newChannel()
	applyVolumeColumn(c, 0x10+40)
	if c.volume != 40 {
		t.Errorf("volume = %d, want 40", c.volume)
	}
}

func TestApplyVolumeColumnNoNoteVolumeIsNoOp(t *testing.T) {
	c := newChannel()
	c.volume = 12
	applyVolumeColumn(c, noNoteVolume)
	if c.volume != 12 {
		t.Errorf("volume = %d, want unchanged 12", c.volume)
	}
}

func TestApplyVolumeColumnSlideClampsAtZeroAndMax(t *testing.T) {
	c := newChannel()
	c.volume = 2
	applyVolumeColumn(c, 0x60+10) // slide down by 10, would go negative
	if c.volume != 0 {
		t.Errorf("volume = %d, want clamped to 0", c.volume)
	}

	c.volume = 60
	applyVolumeColumn(c, 0x70+10) // slide up by 10, would exceed 64
	if c.volume != 64 {
		t.Errorf("volume = %d, want clamped to 64", c.volume)
	}
}

func TestApplyVolumeColumnSetPanning(t *testing.T) {
	c := newChannel()
	applyVolumeColumn(c, 0xC0+8) // set panning, 8*17 = 136
	if c.panning != 136 {
		t.Errorf("panning = %d, want 136", c.panning)
	}
}

func TestApplyVolumeColumnPanningSlideClamps(t *testing.T) {
	c := newChannel()
	c.panning = 3
	applyVolumeColumn(c, 0xD0+5) // slide left by 10, would go negative
	if c.panning != 0 {
		t.Errorf("panning = %d, want clamped to 0", c.panning)
	}

	c.panning = 250
	applyVolumeColumn(c, 0xE0+5) // slide right by 10, would exceed 255
	if c.panning != 255 {
		t.Errorf("panning = %d, want clamped to 255", c.panning)
	}
}

func TestSemitoneRatioOctaveDoublesFrequency(t *testing.T) {
	if got := semitoneRatio(12); got < 1.999 || got > 2.001 {
		t.Errorf("semitoneRatio(12) = %v, want ~2.0", got)
	}
	if got := semitoneRatio(0); got != 1.0 {
		t.Errorf("semitoneRatio(0) = %v, want 1.0", got)
	}
}

func TestPeriodForArpeggioLowersAsSemitonesRise(t *testing.T) {
	c := newChannel()
	c.period = 1000
	p4 := periodForArpeggio(c, 4)
	p0 := periodForArpeggio(c, 0)
	if p0 != c.period {
		t.Errorf("periodForArpeggio(0) = %d, want %d", p0, c.period)
	}
	if p4 >= p0 {
		t.Errorf("periodForArpeggio(4) = %d, want < periodForArpeggio(0) = %d", p4, p0)
	}
}

func TestApplyArpeggioCyclesThroughThreeTicks(t *testing.T) {
	c := newChannel()
	c.period = 1000
	param := byte(0x47) // x=4, y=7

	applyArpeggio(c, param, 0)
	if c.realPeriod != c.period {
		t.Errorf("tick 0 realPeriod = %d, want base period %d", c.realPeriod, c.period)
	}
	applyArpeggio(c, param, 1)
	want1 := periodForArpeggio(c, 4)
	if c.realPeriod != want1 {
		t.Errorf("tick 1 realPeriod = %d, want %d", c.realPeriod, want1)
	}
	applyArpeggio(c, param, 2)
	want2 := periodForArpeggio(c, 7)
	if c.realPeriod != want2 {
		t.Errorf("tick 2 realPeriod = %d, want %d", c.realPeriod, want2)
	}
	applyArpeggio(c, param, 3) // tick 3 == tick%3==0, back to base
	if c.realPeriod != c.period {
		t.Errorf("tick 3 realPeriod = %d, want base period %d", c.realPeriod, c.period)
	}
}

func TestVolSlideDeltaPrefersUpNibble(t *testing.T) {
	if got := volSlideDelta(0x30); got != 3 {
		t.Errorf("volSlideDelta(0x30) = %d, want 3", got)
	}
	if got := volSlideDelta(0x04); got != -4 {
		t.Errorf("volSlideDelta(0x04) = %d, want -4", got)
	}
	if got := volSlideDelta(0x00); got != 0 {
		t.Errorf("volSlideDelta(0x00) = %d, want 0", got)
	}
}

func TestApplyVolumeSlideClampsRange(t *testing.T) {
	c := newChannel()
	c.volume = 62
	applyVolumeSlide(c, 0x50) // up by 5
	if c.volume != 64 {
		t.Errorf("volume = %d, want clamped to 64", c.volume)
	}

	c.volume = 2
	applyVolumeSlide(c, 0x05) // down by 5
	if c.volume != 0 {
		t.Errorf("volume = %d, want clamped to 0", c.volume)
	}
}

func TestApplyPortaToNoteStepsTowardsTargetAndClamps(t *testing.T) {
	c := newChannel()
	c.period = 100
	c.portaToNoteTarget = 150
	c.lastPortaToNoteParam = 10 // step = 40/tick

	applyPortaToNote(c)
	if c.period != 140 {
		t.Errorf("period after first step = %d, want 140", c.period)
	}
	applyPortaToNote(c) // would overshoot to 180, clamps to target
	if c.period != 150 {
		t.Errorf("period after overshoot step = %d, want clamped to 150", c.period)
	}
}

func TestApplyPortaToNoteDescendingClampsAtTarget(t *testing.T) {
	c := newChannel()
	c.period = 200
	c.portaToNoteTarget = 150
	c.lastPortaToNoteParam = 20 // step = 80

	applyPortaToNote(c)
	if c.period != 150 {
		t.Errorf("period = %d, want clamped to target 150", c.period)
	}
}

func TestApplyPortaToNoteNoTargetIsNoOp(t *testing.T) {
	c := newChannel()
	c.period = 100
	applyPortaToNote(c)
	if c.period != 100 {
		t.Errorf("period = %d, want unchanged 100 when no porta target set", c.period)
	}
}

func TestApplyTremorTogglesOnOffAcrossPeriod(t *testing.T) {
	c := newChannel()
	c.lastTremorParam = 0x10 // onLen=2, offLen=1, period=3

	wantOn := []bool{true, true, false, true, true, false}
	for tick, want := range wantOn {
		applyTremor(c, tick)
		if c.tremorOn != want {
			t.Errorf("tick %d: tremorOn = %v, want %v", tick, c.tremorOn, want)
		}
	}
}

func TestApplyRetrigVolumeTable(t *testing.T) {
	cases := []struct {
		kind    int
		in, out int
	}{
		{0, 40, 40},  // no change
		{1, 40, 39},  // -1
		{9, 40, 41},  // +1
		{7, 40, 20},  // /2
		{15, 40, 64}, // *2, clamped to 64
		{5, 1, 0},    // -16, clamped to 0
	}
	for _, c := range cases {
		if got := applyRetrigVolume(c.in, c.kind); got != c.out {
			t.Errorf("applyRetrigVolume(%d, kind=%d) = %d, want %d", c.in, c.kind, got, c.out)
		}
	}
}

// newRetriggableChannel returns a channel with a real sample attached so
// retrigNote's trigger path actually runs (it no-ops when c.sample is nil).
func newRetriggableChannel(t *testing.T) *channel {
	t.Helper()
	c := newChannel()
	c.sample = NewSample8(make([]int8, 16))
	c.volume = 40
	return c
}

func TestMultiRetrigFiresOnTickZeroWhenVolumeColumnEmpty(t *testing.T) {
	r := NewReplayer(testSong(4), 44100)
	c := newRetriggableChannel(t)

	n := note{Effect: effectMultiRetrig, Param: 0x10, Volume: noNoteVolume} // kind 1: v-1
	tickZeroEffect(r, 0, c, &n)

	if c.volume != 39 {
		t.Errorf("volume after Rxy with empty volume column = %d, want 39 (retrigger should fire)", c.volume)
	}
}

func TestMultiRetrigFiresOnTickZeroWhenVolumeColumnByteIsZero(t *testing.T) {
	r := NewReplayer(testSong(4), 44100)
	c := newRetriggableChannel(t)

	n := note{Effect: effectMultiRetrig, Param: 0x10, Volume: 0} // kind 1: v-1
	tickZeroEffect(r, 0, c, &n)

	if c.volume != 39 {
		t.Errorf("volume after Rxy with volume column byte 0 = %d, want 39 (retrigger should fire)", c.volume)
	}
}

func TestMultiRetrigSuppressedOnTickZeroWhenVolumeColumnSet(t *testing.T) {
	r := NewReplayer(testSong(4), 44100)
	c := newRetriggableChannel(t)

	n := note{Effect: effectMultiRetrig, Param: 0x10, Volume: 0x10 + 20} // a real volume-column command present
	tickZeroEffect(r, 0, c, &n)

	if c.volume != 40 {
		t.Errorf("volume after Rxy with a volume-column value present = %d, want unchanged 40 (retrigger should be suppressed)", c.volume)
	}
}

func TestHandlePatternLoopMarksStartAndCountsDown(t *testing.T) {
	r := &Replayer{row: 5}

	handlePatternLoop(r, 0) // E60 marks the loop start row
	if r.loopStartRow != 5 || r.loopBackPending {
		t.Fatalf("after E60: loopStartRow=%d loopBackPending=%v, want 5,false", r.loopStartRow, r.loopBackPending)
	}

	r.row = 9
	handlePatternLoop(r, 2) // E62: loop twice
	if !r.loopBackPending || r.loopCounter != 2 {
		t.Fatalf("after first E62: loopBackPending=%v loopCounter=%d, want true,2", r.loopBackPending, r.loopCounter)
	}

	r.loopBackPending = false
	handlePatternLoop(r, 2)
	if !r.loopBackPending || r.loopCounter != 1 {
		t.Fatalf("after second E62: loopBackPending=%v loopCounter=%d, want true,1", r.loopBackPending, r.loopCounter)
	}

	r.loopBackPending = false
	handlePatternLoop(r, 2)
	if r.loopBackPending || r.loopCounter != 0 {
		t.Fatalf("after loop exhausted: loopBackPending=%v loopCounter=%d, want false,0", r.loopBackPending, r.loopCounter)
	}
}

func TestWaveformValueSineMatchesTable(t *testing.T) {
	if got := waveformValue(0, 64); got != sineTable[64] {
		t.Errorf("waveformValue(sine, 64) = %d, want sineTable[64] = %d", got, sineTable[64])
	}
}

func TestWaveformValueSquareFlipsAtMidPhase(t *testing.T) {
	if got := waveformValue(2, 0); got != -64 {
		t.Errorf("waveformValue(square, 0) = %d, want -64", got)
	}
	if got := waveformValue(2, 0x80); got != 64 {
		t.Errorf("waveformValue(square, 0x80) = %d, want 64", got)
	}
}

func TestTremoloValueNonRampWaveformIgnoresVibratoPos(t *testing.T) {
	// Sine (wave 0) never complements on vibratoPos's sign - only the
	// ramp waveform (wave 1) carries the cross-read quirk.
	want := waveformValue(0, 40)
	if got := tremoloValue(0, 40, -1); got != want {
		t.Errorf("tremoloValue(sine, 40, vibratoPos=-1) = %d, want %d (unaffected)", got, want)
	}
}

func TestTremoloValueRampWaveformComplementsOnNegativeVibratoPos(t *testing.T) {
	base := waveformValue(1, 40)
	if got := tremoloValue(1, 40, -1); got != -base {
		t.Errorf("tremoloValue(ramp, tremoloPos=40, vibratoPos=-1) = %d, want %d (complemented)", got, -base)
	}
}

func TestTremoloValueRampWaveformUsesVibratoPosNotTremoloPosSign(t *testing.T) {
	// The documented FT2 cross-read bug: even though tremoloPos itself
	// is negative, the sign that matters is vibratoPos's.
	base := waveformValue(1, -40)
	if got := tremoloValue(1, -40, 1); got != base {
		t.Errorf("tremoloValue(ramp, tremoloPos=-40, vibratoPos=1) = %d, want %d (not complemented, vibratoPos is positive)", got, base)
	}
}

func TestSeekEnvelopeToTickLandsOnContainingSegment(t *testing.T) {
	env := &Envelope{Points: []EnvelopePoint{{X: 0, Y: 0}, {X: 10, Y: 64}, {X: 20, Y: 0}}}

	pos, tick := seekEnvelopeToTick(env, 5)
	if pos != 1 || tick != 5 {
		t.Errorf("seekEnvelopeToTick(tick=5) = (%d,%d), want (1,5)", pos, tick)
	}
}

func TestSeekEnvelopeToTickPastLastPointClampsToLastPoint(t *testing.T) {
	env := &Envelope{Points: []EnvelopePoint{{X: 0, Y: 0}, {X: 10, Y: 64}}}

	pos, tick := seekEnvelopeToTick(env, 999)
	if pos != 1 || tick != 999 {
		t.Errorf("seekEnvelopeToTick(tick=999) = (%d,%d), want (1,999)", pos, tick)
	}
}

func TestSeekEnvelopeToTickEmptyEnvelopeReturnsZero(t *testing.T) {
	env := &Envelope{}
	pos, tick := seekEnvelopeToTick(env, 42)
	if pos != 0 || tick != 42 {
		t.Errorf("seekEnvelopeToTick(empty, tick=42) = (%d,%d), want (0,42)", pos, tick)
	}
}

func TestSetEnvelopePosUpdatesVolumeEnvelopeWhenEnabled(t *testing.T) {
	c := newChannel()
	c.instrument = &Instrument{
		VolumeEnvelope: Envelope{
			Flags:  EnvelopeOn,
			Points: []EnvelopePoint{{X: 0, Y: 0}, {X: 10, Y: 64}, {X: 20, Y: 0}},
		},
	}

	n := note{Effect: effectSetEnvelopePos, Param: 5}
	tickZeroEffect(&Replayer{}, 0, c, &n)

	if c.volEnvPos != 1 || c.volEnvTick != 5 {
		t.Errorf("after Lxx(5): volEnvPos=%d volEnvTick=%d, want 1,5", c.volEnvPos, c.volEnvTick)
	}
}

func TestSetEnvelopePosUpdatesPanningEnvelopeOnlyWhenVolumeSustainFlagSet(t *testing.T) {
	c := newChannel()
	c.instrument = &Instrument{
		// Volume envelope off but its Sustain bit is set - FT2's own bug
		// gates the *panning* envelope update on this bit.
		VolumeEnvelope: Envelope{
			Flags: EnvelopeSustain,
		},
		PanningEnvelope: Envelope{
			Points: []EnvelopePoint{{X: 0, Y: 32}, {X: 8, Y: 64}},
		},
	}

	n := note{Effect: effectSetEnvelopePos, Param: 3}
	tickZeroEffect(&Replayer{}, 0, c, &n)

	if c.panEnvPos != 1 || c.panEnvTick != 3 {
		t.Errorf("after Lxx(3): panEnvPos=%d panEnvTick=%d, want 1,3", c.panEnvPos, c.panEnvTick)
	}
}

func TestSetEnvelopePosLeavesPanningEnvelopeUntouchedWhenVolumeSustainFlagUnset(t *testing.T) {
	c := newChannel()
	c.instrument = &Instrument{
		VolumeEnvelope: Envelope{}, // no Sustain bit
		PanningEnvelope: Envelope{
			Points: []EnvelopePoint{{X: 0, Y: 32}, {X: 8, Y: 64}},
		},
	}
	c.panEnvPos, c.panEnvTick = 7, 99

	n := note{Effect: effectSetEnvelopePos, Param: 3}
	tickZeroEffect(&Replayer{}, 0, c, &n)

	if c.panEnvPos != 7 || c.panEnvTick != 99 {
		t.Errorf("panEnvPos/panEnvTick changed to %d,%d, want unchanged 7,99", c.panEnvPos, c.panEnvTick)
	}
}

func TestSetEnvelopePosWithNoInstrumentIsNoOp(t *testing.T) {
	c := newChannel()
	n := note{Effect: effectSetEnvelopePos, Param: 5}
	tickZeroEffect(&Replayer{}, 0, c, &n) // must not panic with c.instrument == nil
	if c.volEnvPos != 0 {
		t.Errorf("volEnvPos = %d, want unchanged 0", c.volEnvPos)
	}
}
