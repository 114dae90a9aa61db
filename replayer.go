package ft2engine

// Replayer is the per-tick effect/sequencing engine of spec.md §3/§4.3,
// generalized from the teacher's player.go sequenceTick/channelTick
// pair (one function walking the order list and rows, one function
// walking effect columns) into the XM-scale effect set SPEC_FULL.md
// calls for. It owns one *channel per column and writes into the
// matching *Voice via update_voices each tick; it never touches the
// mixer's sample buffers directly.
type Replayer struct {
	song *Song

	channels []channel
	voices   []Voice
	fadeVoices []Voice // one shadow voice per channel, spec.md §3

	linearPeriods bool
	outputFreq    int
	interpMode    InterpolationMode

	order int
	row   int
	tick  int

	samplesPerTickInt  uint32
	samplesPerTickFrac uint32
	tickFracAccum      uint32

	bpm          int
	globalVolume int

	playing bool
	playingSinglePattern bool
	mode    PlayMode

	// Tick-zero sequencing requests, set by effects.go's
	// tickZeroEffect and consumed at the end of tick().
	pendingOrder    int
	jumpPending     bool
	pendingRow      int
	breakPending    bool
	patternDelay    int
	patternDelayRemain int
	loopStartRow    int
	loopCounter     int
	loopBackPending bool

	previewPattern int // pattern index locked by PlayPattern

	onNewRow func(order, row int) // optional host hook, e.g. for time-map recording
}

// NewReplayer builds a Replayer for song at the given output sample
// rate, one channel/voice pair per song channel plus one fade-out
// shadow voice per channel (spec.md §3 "Ownership").
func NewReplayer(song *Song, outputFreq int) *Replayer {
	r := &Replayer{
		song:          song,
		channels:      make([]channel, song.Channels),
		voices:        make([]Voice, song.Channels),
		fadeVoices:    make([]Voice, song.Channels),
		linearPeriods: song.LinearFreq,
		outputFreq:    outputFreq,
		interpMode:    InterpLinear,
		bpm:           song.Tempo,
		globalVolume:  song.GlobalVolume,
	}
	if r.globalVolume == 0 {
		r.globalVolume = 64
	}
	for i := range r.channels {
		r.channels[i] = *newChannel()
	}
	r.setBPM(r.bpm)
	return r
}

// SetOutputFreq changes the sample rate future ticks render at (spec.md
// §6's "set_sample_rate"), recomputing the tick-to-sample-count split at
// the replayer's current bpm. Per spec.md §5, callers must not call this
// while a Render is in flight - Engine.SetSampleRate serializes it under
// the same critical section as Render.
func (r *Replayer) SetOutputFreq(freq int) {
	r.outputFreq = freq
	r.setBPM(r.bpm)
}

// SetInterpolation changes the mixer kernel used for all future voice
// triggers/updates (spec.md §4.2's "set_interpolation").
func (r *Replayer) SetInterpolation(mode InterpolationMode) {
	r.interpMode = mode
}

// PlayMode is one of FT2's six transport states, spec.md §4.3 "Play
// modes". Idle means nothing is playing; Edit/RecSong/RecPattern track
// whether the host is simultaneously capturing live input into the
// pattern data, a pattern-editor concern this engine doesn't implement
// (spec.md §1 Non-goals) - but the mode itself still gates sequencing
// the way FT2_PLAYMODE_PATT/FT2_PLAYMODE_RECPATT do for Bxx/Dxx (only
// Song/RecSong honour position jumps; Pattern/RecPattern loop in place).
type PlayMode int

const (
	ModeIdle PlayMode = iota
	ModeEdit
	ModeSong
	ModePattern
	ModeRecSong
	ModeRecPattern
)

// Play starts playback from order 0, row 0 (spec.md §4.3 "play").
func (r *Replayer) Play() {
	r.PlayFromRow(ModeSong, 0)
}

// PlayFromRow is the full form of spec.md §4.3's "play(mode, start_row)":
// starts song-order playback from row startRow under the given mode.
func (r *Replayer) PlayFromRow(mode PlayMode, startRow int) {
	r.order, r.row, r.tick = 0, startRow, 0
	r.playing = true
	r.playingSinglePattern = false
	r.mode = mode
	r.resetChannels()
}

// PlayPattern loops a single pattern index in place, ignoring the order
// list (spec.md §4.3 "play_pattern", used by pattern-editor preview).
func (r *Replayer) PlayPattern(patternIdx int) {
	r.PlayPatternFromRow(ModePattern, patternIdx, 0)
}

// PlayPatternFromRow is PlayPattern's full form, accepting a start row
// and whether this is a plain preview (ModePattern) or a recording
// preview (ModeRecPattern).
func (r *Replayer) PlayPatternFromRow(mode PlayMode, patternIdx, startRow int) {
	r.order = -1
	r.row = startRow
	r.tick = 0
	r.playing = true
	r.playingSinglePattern = true
	r.mode = mode
	r.previewPattern = patternIdx
	r.resetChannels()
}

// Mode reports the replayer's current transport mode.
func (r *Replayer) Mode() PlayMode { return r.mode }

// Stop halts the transport and deactivates every voice (spec.md §4.3
// "stop").
func (r *Replayer) Stop() {
	r.playing = false
	r.mode = ModeIdle
	for i := range r.voices {
		r.voices[i].deactivate()
		r.fadeVoices[i].deactivate()
	}
}

// SetPosition seeks to a given order/row without re-triggering notes,
// for DAW/host scrubbing (spec.md §4.5's time map calls this on seek).
func (r *Replayer) SetPosition(order, row int) {
	r.order, r.row, r.tick = order, row, 0
}

func (r *Replayer) resetChannels() {
	for i := range r.channels {
		r.channels[i].reset()
	}
}

// SetBPM changes tempo immediately, recomputing the exact fixed-point
// samples-per-tick ratio spec.md §8.4 requires.
func (r *Replayer) setBPM(bpm int) {
	if bpm <= 0 {
		bpm = 125
	}
	r.bpm = bpm
	r.samplesPerTickInt, r.samplesPerTickFrac = samplesPerTick(r.outputFreq, bpm)
}

// SetBPM is the public form of setBPM, for hosts that want direct tempo
// control outside of a Fxx effect.
func (r *Replayer) SetBPM(bpm int) { r.setBPM(bpm) }

// Tick advances the replayer by exactly one tick: on tick 0 of a new
// row it reads notes and triggers channels, then every tick it steps
// per-tick effects, envelopes and autovibrato, and finally writes the
// resulting period/volume/pan into each channel's Voice. Returns the
// number of output samples this tick should mix (spec.md §4.3 "tick").
func (r *Replayer) Tick() int {
	if !r.playing {
		return 0
	}

	if r.tick == 0 {
		r.beginRow()
	} else {
		r.stepEffects()
	}

	r.updateVolPanAutoVib()
	r.updateVoices()

	r.tick++
	if r.tick >= r.song.Speed {
		r.tick = 0
		r.advanceRow()
	}

	samples := int(r.samplesPerTickInt)
	sum := uint64(r.tickFracAccum) + uint64(r.samplesPerTickFrac)
	r.tickFracAccum = uint32(sum)
	if sum>>32 != 0 {
		samples++
	}
	return samples
}

// JamTick advances envelope/autovibrato/voice state by one tick without
// sequencing a pattern row, for spec.md §4.6's "jam-only" render path: a
// host that has stopped transport but still has live notes sounding
// from trigger_note needs their envelopes and fadeout to keep moving.
// Unlike Tick, this never calls beginRow/stepEffects/advanceRow, so a
// song's own effects and row advance are frozen; it still returns the
// sample count the caller should mix for this tick, at the replayer's
// last-set bpm/sample rate.
func (r *Replayer) JamTick() int {
	r.updateVolPanAutoVib()
	r.updateVoices()

	samples := int(r.samplesPerTickInt)
	sum := uint64(r.tickFracAccum) + uint64(r.samplesPerTickFrac)
	r.tickFracAccum = uint32(sum)
	if sum>>32 != 0 {
		samples++
	}
	return samples
}

func (r *Replayer) beginRow() {
	pat := r.currentPattern()
	for ch := range r.channels {
		c := &r.channels[ch]
		var n note
		if pat != nil {
			n = *pat.at(r.row, ch, r.song.Channels)
		} else {
			n.Volume = noNoteVolume
		}
		c.note = n

		applyVolumeColumn(c, n.Volume)
		r.getNewNote(ch, c, &n)
		tickZeroEffect(r, ch, c, &n)
	}
	if r.onNewRow != nil {
		r.onNewRow(r.order, r.row)
	}
}

// getNewNote implements spec.md §4.3's "get_new_note": resolves the
// instrument/sample for a new note, retunes the channel, and triggers
// the voice unless a tone-portamento effect says otherwise.
func (r *Replayer) getNewNote(ch int, c *channel, n *note) {
	if n.Sample > 0 && n.Sample <= len(r.song.Instruments) {
		c.instrument = &r.song.Instruments[n.Sample-1]
	}

	if n.Pitch == noteKeyOff {
		releaseChannel(c)
		return
	}
	if n.Pitch == noteNone {
		return
	}

	c.curNote = n.Pitch
	if c.instrument != nil {
		// NoteSampleMap is indexed 0..95 with 0 == C-0; playerNote uses
		// the mod.go/s3m.go convention of C-0 == 12 (see loader_xm.go).
		c.sample = c.instrument.sampleForNote(int(n.Pitch) - 12)
	}
	if c.sample != nil {
		c.fineTune = c.sample.FineTune
		if n.Volume == noNoteVolume {
			c.volume = c.sample.Volume
		}
		c.panning = c.sample.Panning
	}
	effectiveNote := n.Pitch
	if c.sample != nil {
		effectiveNote += playerNote(c.sample.RelativeNote)
	}
	c.period = r.periodFor(c, effectiveNote)

	if n.Effect == effectPortaToNote || n.Effect == effectPortaVolSlide {
		c.portaToNoteTarget = c.period
		return // spec.md: tone porta never retriggers the voice
	}

	triggerNote(r, ch, c, *n)
}

func (r *Replayer) periodFor(c *channel, n playerNote) int {
	if r.linearPeriods {
		// linearPeriodForNote's 7680 constant assumes a 0-based-at-C-0
		// note scale; playerNote uses C-0 == 12 (see loader_xm.go), so
		// rebase before calling it.
		return linearPeriodForNote(n-12, c.fineTune)
	}
	return amigaPeriodForNote(n, c.fineTune)
}

// triggerNote (re)starts a channel's sample playback: the old voice is
// handed off to the fade-out shadow voice (spec.md §3's "fade-out
// shadow voice for smooth retrigger") and a fresh trigger begins with a
// quick volume ramp rather than a hard discontinuity.
func triggerNote(r *Replayer, ch int, c *channel, n note) {
	if c.sample == nil {
		return
	}
	if !c.sample.IsFixed() {
		c.sample.fix()
	}

	old := &r.voices[ch]
	if old.active {
		r.fadeVoices[ch] = *old
		r.fadeVoices[ch].setVolumePan(0, 128, quickRampSamples(r.outputFreq))
	}

	offset := 0
	if n.Effect == effectSampleOffset {
		offset = c.lastSampleOffset
	}
	if offset >= c.sample.Length {
		offset = 0
	}

	old.trigger(c.sample, offset, r.outputFreq)
	old.setPeriodAndInterp(c.period, r.linearPeriods, r.outputFreq, r.interpMode)
	old.setVolumePan(c.volume, c.panning, 0)

	c.keyedOff = false
	c.fadeoutVol = 65536
	c.volEnvPos, c.volEnvTick, c.volEnvDone = 0, 0, false
	c.panEnvPos, c.panEnvTick, c.panEnvDone = 0, 0, false
	if c.vibratoCtrl {
		c.vibratoPos = 0
	}
	if c.tremoloCtrl {
		c.tremoloPos = 0
	}
}

// retrigNote re-triggers the current sample in place (Rxy / Exy note
// cut+retrig family), applying the retrig volume table from spec.md's
// effect table before restarting the voice position.
func retrigNote(r *Replayer, ch int, c *channel, param byte) {
	if c.sample == nil {
		return
	}
	volType := int(param >> 4)
	c.volume = applyRetrigVolume(c.volume, volType)
	triggerNote(r, ch, c, c.note)
}

// retrigVolumeTable is FT2's 16-entry add/subtract/multiply table for
// the Rxy effect's high nibble (indices 0 and 8 leave the volume
// unchanged).
var retrigVolumeTable = [16]func(v int) int{
	0:  func(v int) int { return v },
	1:  func(v int) int { return v - 1 },
	2:  func(v int) int { return v - 2 },
	3:  func(v int) int { return v - 4 },
	4:  func(v int) int { return v - 8 },
	5:  func(v int) int { return v - 16 },
	6:  func(v int) int { return v * 2 / 3 },
	7:  func(v int) int { return v / 2 },
	8:  func(v int) int { return v },
	9:  func(v int) int { return v + 1 },
	10: func(v int) int { return v + 2 },
	11: func(v int) int { return v + 4 },
	12: func(v int) int { return v + 8 },
	13: func(v int) int { return v + 16 },
	14: func(v int) int { return v * 3 / 2 },
	15: func(v int) int { return v * 2 },
}

func applyRetrigVolume(v, kind int) int {
	return clampInt(retrigVolumeTable[kind&0xF](v), 0, 64)
}

// releaseChannel applies a key-off: envelopes start running their
// release/fade segment and the fade-out counter starts counting down.
func releaseChannel(c *channel) {
	c.keyedOff = true
}

// TriggerNote implements spec.md §4.3/§6's "trigger_note": a live note
// from a host keyboard or MIDI input on channel ch, independent of
// pattern sequencing. instr is 1-based like a pattern's instrument
// column. vol is 0..64, or -1 to keep the sample's own default volume.
// modDepth (-256..256) and pitchBend bias the channel's autovibrato
// depth and period the way a mod wheel/pitch wheel would, and are
// cleared by the next pattern-driven note on the same channel.
func (r *Replayer) TriggerNote(ch int, pitch playerNote, instr, vol, modDepth, pitchBend int) {
	if ch < 0 || ch >= len(r.channels) {
		return
	}
	c := &r.channels[ch]
	n := note{Pitch: pitch, Sample: instr, Volume: noNoteVolume}
	c.note = n
	c.modDepthBias = clampInt(modDepth, -256, 256)
	c.pitchBend = pitchBend
	r.getNewNote(ch, c, &n)
	if vol >= 0 {
		c.volume = clampInt(vol, 0, 64)
		if r.voices[ch].active {
			r.voices[ch].setVolumePan(c.volume, c.panning, 0)
		}
	}
}

// ReleaseNote implements spec.md §4.3/§6's "release_note": a live
// key-up on channel ch, equivalent to the pattern column's Kxx/note-off
// but issued directly by a host rather than read from a row.
func (r *Replayer) ReleaseNote(ch int) {
	if ch < 0 || ch >= len(r.channels) {
		return
	}
	releaseChannel(&r.channels[ch])
}

// PlaySample implements spec.md §6's "play_sample": previews sample smp
// (0-based, within instrument instr's Samples) directly on channel ch,
// bypassing the instrument's note->sample map and envelopes entirely -
// used by a sample editor auditioning a raw sample or a selected
// sub-range [offset, offset+length) of one. length<=0 means "to the end
// of the sample".
func (r *Replayer) PlaySample(ch int, pitch playerNote, instr, smp, vol, offset, length int) {
	if ch < 0 || ch >= len(r.channels) || instr <= 0 || instr > len(r.song.Instruments) {
		return
	}
	inst := &r.song.Instruments[instr-1]
	if smp < 0 || smp >= len(inst.Samples) {
		return
	}
	s := inst.Samples[smp]
	if s == nil {
		return
	}
	if !s.IsFixed() {
		s.fix()
	}

	c := &r.channels[ch]
	c.instrument = nil // a raw sample preview has no envelopes/autovibrato
	c.sample = s
	c.fineTune = s.FineTune
	c.panning = s.Panning
	c.volume = s.Volume
	if vol >= 0 {
		c.volume = clampInt(vol, 0, 64)
	}
	c.period = r.periodFor(c, pitch+playerNote(s.RelativeNote))

	start := offset
	if start < 0 || start >= s.Length {
		start = 0
	}
	end := s.Length
	if length > 0 && start+length < end {
		end = start + length
	}

	old := &r.voices[ch]
	if old.active {
		r.fadeVoices[ch] = *old
		r.fadeVoices[ch].setVolumePan(0, 128, quickRampSamples(r.outputFreq))
	}
	old.trigger(s, start, r.outputFreq)
	old.sampleEnd = end
	old.setPeriodAndInterp(c.period, r.linearPeriods, r.outputFreq, r.interpMode)
	old.setVolumePan(c.volume, c.panning, 0)
}

func (r *Replayer) stepEffects() {
	pat := r.currentPattern()
	if pat == nil {
		return
	}
	for ch := range r.channels {
		c := &r.channels[ch]
		n := &c.note
		tickEffect(r, ch, c, n, r.tick)
	}
}

// updateVolPanAutoVib steps envelopes, autovibrato and fadeout for every
// channel, independent of which effect (if any) is active this tick -
// this runs every tick, including tick 0, matching the teacher's own
// per-tick (not per-row) envelope stepping.
func (r *Replayer) updateVolPanAutoVib() {
	for ch := range r.channels {
		c := &r.channels[ch]
		if c.instrument == nil {
			continue
		}
		inst := c.instrument

		released := c.keyedOff

		var volVal, panVal int
		volVal, c.volEnvPos, c.volEnvTick, c.volEnvDone = envelopeValue(&inst.VolumeEnvelope, c.volEnvPos, c.volEnvTick, released)
		panVal, c.panEnvPos, c.panEnvTick, c.panEnvDone = envelopeValue(&inst.PanningEnvelope, c.panEnvPos, c.panEnvTick, released)

		if c.keyedOff && inst.FadeoutSpeed > 0 {
			c.fadeoutVol -= inst.FadeoutSpeed
			if c.fadeoutVol < 0 {
				c.fadeoutVol = 0
			}
		}

		c.autoVibPos++
		if inst.AutoVib.Sweep > 0 {
			c.autoVibSweepPos++
		}
		vibOffset := autoVibratoOffset(&inst.AutoVib, c.autoVibPos, c.autoVibSweepPos)
		if c.modDepthBias != 0 {
			vibOffset = vibOffset * (256 + c.modDepthBias) / 256
		}

		c.realPeriod = c.period - vibOffset - c.pitchBend
		if c.note.Effect == effectVibrato || c.note.Effect == effectVibratoVolSlide {
			c.realPeriod -= waveformValue(c.vibratoWave, c.vibratoPos) * int(c.lastVibratoParam&0xF) / 32
		}

		c.volEnvValue = volVal
		c.panEnvValue = panVal
	}
}

// updateVoices writes each channel's computed period/volume/panning
// into its Voice (and steps the fade-out shadow voice's own ramp),
// matching the teacher's per-tick "write channel state into the mixer"
// boundary (spec.md §3 Voice/Channel split).
func (r *Replayer) updateVoices() {
	for ch := range r.channels {
		c := &r.channels[ch]
		v := &r.voices[ch]
		if !v.active {
			continue
		}

		v.setPeriodAndInterp(c.realPeriod, r.linearPeriods, r.outputFreq, r.interpMode)

		vol := c.volume
		if c.note.Effect == effectTremolo || c.note.Effect == effectVibratoVolSlide {
			if c.tremorOn || c.note.Effect != effectTremor {
				vol = clampInt(vol+tremoloValue(c.tremoloWave, c.tremoloPos, c.vibratoPos)*int(c.lastTremoloParam&0xF)/64, 0, 64)
			}
		}
		if c.note.Effect == effectTremor && !c.tremorOn {
			vol = 0
		}

		scaled := vol * c.volEnvValue / 64 * r.globalVolume / 64 * c.fadeoutVol / 65536
		if c.mute {
			scaled = 0
		}
		v.setVolumePan(scaled, clampInt(c.panning+(c.panEnvValue-32)*4, 0, 255), 0)
	}
}

func (r *Replayer) currentPattern() *Pattern {
	if r.playingSinglePattern {
		return r.song.patternAt(r.previewPattern)
	}
	if r.order < 0 || r.order >= len(r.song.Orders) {
		return nil
	}
	return r.song.orderPattern(r.order)
}

func (r *Replayer) advanceRow() {
	if r.patternDelayRemain > 0 {
		r.patternDelayRemain--
		return
	}
	if r.patternDelay > 0 {
		r.patternDelayRemain = r.patternDelay
		r.patternDelay = 0
	}

	if r.loopBackPending {
		r.loopBackPending = false
		r.row = r.loopStartRow
		return
	}

	if r.breakPending {
		r.breakPending = false
		r.row = r.pendingRow
		r.advanceOrder()
		return
	}
	if r.jumpPending {
		r.jumpPending = false
		r.order = r.pendingOrder
		r.row = 0
		r.wrapOrder()
		return
	}

	rows := rowsPerPattern
	if pat := r.currentPattern(); pat != nil {
		rows = pat.Rows
	}

	r.row++
	if r.row >= rows {
		r.row = 0
		r.advanceOrder()
	}
}

func (r *Replayer) advanceOrder() {
	if r.playingSinglePattern {
		return
	}
	r.order++
	r.wrapOrder()
}

func (r *Replayer) wrapOrder() {
	if r.order >= len(r.song.Orders) {
		r.order = r.song.SongLoopStart
	}
}
