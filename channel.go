package ft2engine

// channel is the replayer-side state of one pattern column, per
// spec.md §3 "Channel (replayer-side)". It tracks effect memory and
// envelope/autovibrato phase; it does not know about mixer delta or
// ramping, that lives in the paired Voice. Grounded on the teacher's
// player.go channel struct (channelTick/sequenceTick), generalized to
// the full envelope/effect-memory set XM needs.
type channel struct {
	note note

	instrument *Instrument
	sample     *Sample

	curNote    playerNote // last real (non-off, non-empty) note played
	period     int        // current working period, pre-vibrato/arpeggio
	realPeriod int        // period after vibrato/arpeggio offsets this tick

	volume  int // 0..64, post volume-column/effect
	panning int // 0..255, centre 128

	fineTune int // -128..127, from instrument sample unless overridden

	// Effect memory (FT2 remembers the last non-zero param per effect
	// family independently; spec.md §4.3 "Effect memory").
	lastPortaUpParam        byte
	lastPortaDownParam      byte
	lastPortaToNoteParam    byte
	portaToNoteTarget       int
	lastFinePortaUpParam    byte
	lastFinePortaDownParam  byte
	lastVolSlideParam       byte
	lastGlobalVolSlideParam byte
	lastPanningSlideParam   byte
	lastVibratoParam        byte
	lastTremoloParam        byte
	lastTremorParam         byte
	lastRetrigParam         byte
	lastSampleOffset        int

	vibratoPos  int
	vibratoWave int
	vibratoCtrl bool // true = retrigger waveform on new note
	tremoloPos  int
	tremoloWave int
	tremoloCtrl bool

	tremorOn bool

	volEnvPos   int
	volEnvTick  int
	volEnvDone  bool
	panEnvPos   int
	panEnvTick  int
	panEnvDone  bool
	volEnvValue int // 0..64, current volume envelope output
	panEnvValue int // 0..64, current panning envelope output
	fadeoutVol  int // 0..65536, counts down after key-off

	autoVibPos      int
	autoVibSweepPos int

	keyedOff bool

	mute bool

	// Live-input modulation, set by a host's trigger_note call
	// (spec.md §4.3/§6 "trigger_note(..., mod_depth, pitch_bend)") -
	// a MIDI controller's mod wheel and pitch wheel, independent of any
	// pattern column. Zero for every note the pattern itself triggers.
	pitchBend    int // additive period offset, same sign convention as vibrato
	modDepthBias int // -256..256, scales the instrument's autovibrato depth
}

// newChannel returns a freshly reset channel, volume at silence and
// panning centred, matching spec.md §4.1's "new song/channel reset".
func newChannel() *channel {
	return &channel{panning: 128, fadeoutVol: 65536}
}

// reset clears per-note and envelope state back to the song-start
// condition, used when the replayer restarts playback from row 0.
func (c *channel) reset() {
	*c = channel{panning: 128, fadeoutVol: 65536, mute: c.mute}
}
