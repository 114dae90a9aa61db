package ft2engine

// Voice is the mixer-side playback state for one channel column, per
// spec.md §3. It holds only a borrowed (non-owning) pointer to the
// Sample it plays; stopVoicesForSample must run before any edit/free of
// that Sample (spec.md §3 Ownership, §8.7).
type Voice struct {
	sample *Sample

	position     int64  // integer sample index into the logical data window
	positionFrac uint32 // 32-bit fractional position
	delta        uint64 // 32:32 fixed-point step, see period.go
	samplingBackwards bool
	hasLooped    bool

	loopType  LoopType
	loopStart int
	loopLen   int
	loopEnd   int
	sampleEnd int

	currVolL, currVolR     float32
	targetVolL, targetVolR float32
	rampDeltaL, rampDeltaR float32
	rampRemain             int

	interp   InterpolationMode
	sincTaps int
	sincIdx  int

	active bool
}

// quickRampSamples is the ~5ms quick-ramp duration of spec.md §4.3/§4.4,
// used both for normal quick-volramp retriggers and for the fade-out
// shadow voice's ramp-to-zero.
func quickRampSamples(sampleRate int) int {
	n := sampleRate / 200
	if n < 1 {
		n = 1
	}
	return n
}

// trigger (re)starts a voice playing sample s from startPos, per
// spec.md §4.1/§4.3 "trigger sample". The sample must already be fixed;
// the callers (Replayer.triggerNote, Replayer.PlaySample) fix it first.
func (v *Voice) trigger(s *Sample, startPos int, outputFreq int) {
	v.sample = s
	v.position = int64(startPos)
	v.positionFrac = 0
	v.samplingBackwards = false
	v.hasLooped = false
	v.loopType = s.LoopType
	v.loopStart = s.LoopStart
	v.loopLen = s.LoopLen
	v.loopEnd = s.LoopStart + s.LoopLen
	v.sampleEnd = s.Length
	v.active = s != nil && s.Length > 0
}

// setPeriodAndInterp derives delta from a period and, for sinc mode,
// reselects the kernel variant appropriate to the resulting delta
// (spec.md §4.2's "kernel selection at voice-update time").
func (v *Voice) setPeriodAndInterp(period int, linear bool, outputFreq int, mode InterpolationMode) {
	v.delta = periodToDelta(period, linear, outputFreq)
	v.interp = mode
	if mode == InterpSinc {
		v.sincTaps, v.sincIdx = chooseSincKernel(v.delta)
	}
}

// setVolumePan sets the voice's target gains from a 0..64 volume and a
// 0..255 (centred 128) panning value, and arms a ramp of rampLen samples
// toward them (0 means "snap immediately", used on the very first
// trigger of a previously-inactive voice).
func (v *Voice) setVolumePan(volume, panning int, rampLen int) {
	l, r := panLawGains(volume, panning)
	if rampLen <= 0 {
		v.currVolL, v.currVolR = l, r
		v.rampRemain = 0
		return
	}
	v.targetVolL, v.targetVolR = l, r
	v.rampDeltaL = (l - v.currVolL) / float32(rampLen)
	v.rampDeltaR = (r - v.currVolR) / float32(rampLen)
	v.rampRemain = rampLen
}

// panLawGains converts an FT2 0..64 volume and 0..255 (centre 128)
// panning into L/R gains using a linear pan law, vol*(1-p) and vol*p with
// p = panning/255, like the teacher's own `(127-pan)*vol>>7` / `pan*vol>>7`
// but normalized to floats in [0,1] for the float mixer spec.md §4.4
// requires.
func panLawGains(volume, panning int) (l, r float32) {
	if volume < 0 {
		volume = 0
	}
	if volume > 64 {
		volume = 64
	}
	if panning < 0 {
		panning = 0
	}
	if panning > 255 {
		panning = 255
	}
	vol := float32(volume) / 64
	p := float32(panning) / 255
	return vol * (1 - p), vol * p
}

// deactivate marks the voice inactive and clears its sample reference,
// satisfying §8.7 (after stopping, no voice holds the old base pointer).
func (v *Voice) deactivate() {
	v.active = false
	v.sample = nil
}

// refsSample reports whether this voice currently plays s, used by
// stopVoicesForSample.
func (v *Voice) refsSample(s *Sample) bool {
	return v.active && v.sample == s
}
