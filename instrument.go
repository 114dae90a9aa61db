package ft2engine

// EnvelopeFlag bits control whether an envelope is evaluated at all, and
// whether its loop/sustain points are honoured, per spec.md §3.
type EnvelopeFlag uint8

const (
	EnvelopeOn EnvelopeFlag = 1 << iota
	EnvelopeSustain
	EnvelopeLoop
)

// EnvelopePoint is one (x, y) node of a volume or panning envelope; x is
// in ticks, y in 0..64 (volume) or 0..64 centred at 32 (panning).
type EnvelopePoint struct {
	X, Y int
}

// Envelope is an FT2-style piecewise-linear envelope of up to 12 points,
// per spec.md §3.
type Envelope struct {
	Points      []EnvelopePoint // len <= 12
	Flags       EnvelopeFlag
	SustainPt   int
	LoopStart   int
	LoopEnd     int
}

// AutoVibratoWave selects the LFO waveform FT2's auto-vibrato uses.
type AutoVibratoWave int

const (
	AutoVibSine AutoVibratoWave = iota
	AutoVibSquare
	AutoVibRampDown
	AutoVibRampUp
)

// AutoVibrato describes an instrument's automatic vibrato: a sweep-in
// period followed by a steady-state LFO added to the channel's period.
type AutoVibrato struct {
	Wave  AutoVibratoWave
	Depth int // 0-15
	Rate  int // 0-63
	Sweep int // 0-255, ticks to reach full depth
}

// MIDIOut describes an instrument's optional MIDI-out routing (spec.md §3).
type MIDIOut struct {
	Enabled    bool
	Channel    int // 0-15
	Program    int // 0-127
	BendRange  int // 0-36
	Mute       bool
}

// Instrument is up to 16 samples selected per-note via NoteSampleMap,
// plus the envelopes/fadeout/autovibrato/MIDI routing of spec.md §3.
type Instrument struct {
	Name    string
	Samples []*Sample // up to 16

	// NoteSampleMap maps note 0..95 to an index into Samples.
	NoteSampleMap [96]int

	VolumeEnvelope  Envelope
	PanningEnvelope Envelope

	FadeoutSpeed int // 16-bit

	AutoVib AutoVibrato

	MIDI MIDIOut
}

// sampleForNote resolves the Sample to play for a given note (0-based,
// already adjusted for the instrument's relative-note baseline happens
// at trigger time in the replayer, not here).
func (in *Instrument) sampleForNote(note int) *Sample {
	if in == nil || note < 0 || note >= len(in.NoteSampleMap) {
		return nil
	}
	idx := in.NoteSampleMap[note]
	if idx < 0 || idx >= len(in.Samples) {
		return nil
	}
	return in.Samples[idx]
}
