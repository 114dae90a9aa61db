package ft2engine

import (
	"bytes"
	"encoding/binary"
)

// configVersion is bumped whenever Config's encoded layout changes, so
// LoadConfig can refuse (rather than misinterpret) an incompatible blob
// - spec.md §4.8's "config is a version-prefixed binary blob" ambient
// requirement, in the same bytes.Reader/encoding.binary style every
// loader in this package already uses.
const configVersion uint32 = 2

// maxRoutedChannels bounds the per-channel I/O routing tables at the
// song's own channel ceiling (spec.md §3 "num_channels ... ≤32"),
// matching ft2_plugin_config.h's channelRouting[32]/channelToMain[32].
const maxRoutedChannels = 32

// numEnvelopePresets is FT2's fixed bank of quick-apply instrument
// envelope shapes (ft2_plugin_config.h's stdEnvPoints[6][...]).
const numEnvelopePresets = 6

// Config holds the engine-wide settings a host persists across
// sessions, per spec.md §6 Persistence: sample-rate-independent mixer
// defaults, I/O routing for §4.4's multi-bus mode, DAW-sync toggles,
// MIDI-input behaviour, saved envelope presets and the user's UI
// palette. Song data is loaded fresh from its own file each time and
// never lives here.
type Config struct {
	Interpolation  InterpolationMode
	OutputFreq     int
	ScopeQueueSize int
	MIDIQueueSize  int

	// Audio/mixer, ft2_plugin_config.h's boostLevel/masterVol. Both are
	// stored and persisted by Encode/LoadConfig; Engine does not read
	// them and applies no post-mix gain.
	BoostLevel int // 1..32
	MasterVol  int // 0..256

	// I/O routing for §4.4's 15-stereo-bus multi-out mode: ChannelBus
	// picks which bus (0..14) a channel's voice mixes into, and
	// ChannelToMain says whether that channel is also summed into the
	// plain stereo main output.
	ChannelBus    [maxRoutedChannels]int8
	ChannelToMain [maxRoutedChannels]bool

	// DAW sync, plugin-specific in ft2_plugin_config.h. These flags are
	// stored and persisted only; Engine does not read them, so tempo,
	// play/stop and position follow the song's own Fxx/Bxx/Dxx and the
	// Engine's transport calls whatever they are set to.
	SyncBPMFromDAW       bool
	SyncTransportFromDAW bool
	SyncPositionFromDAW  bool
	// AllowFxxSpeedChanges is stored and persisted only; the replayer
	// does not consult it, so an Fxx effect with param<0x20 changes the
	// speed whether it is set or not.
	AllowFxxSpeedChanges bool

	MIDI MIDIInputConfig

	// EnvelopePresets is FT2's bank of 6 saved vol/pan envelope shapes
	// an instrument editor can apply in one step.
	EnvelopePresets [numEnvelopePresets]EnvelopePreset

	// Palette is the user-defined 16-colour UI palette, each channel
	// 0..63 (ft2_plugin_config.h's userPalette[16][3]).
	Palette [16][3]uint8
}

// MIDIInputConfig is the plugin's MIDI-input behaviour tab
// (ft2_plugin_config.h's midi* fields): which channel(s) to listen on,
// how incoming controllers map onto note/effect data, and live-input
// transpose/sensitivity.
type MIDIInputConfig struct {
	Enabled     bool
	AllChannels bool
	Channel     int // 1..16, used when AllChannels is false

	Transpose    int // -48..48 semitones
	VelocitySens int // 0..200%

	RecordVelocity   bool // record note-on velocity into the volume column
	RecordAftertouch bool // record aftertouch as volume slides
	RecordModWheel   bool // record mod wheel as 4xy vibrato
	RecordPitchBend  bool // record pitch bend as 1xx/2xx portamento

	ModRange  int // autovibrato depth the mod wheel reaches fully up, 1..15
	BendRange int // pitch bend range in semitones, 1..12

	TriggerPatterns bool // incoming notes trigger patterns rather than just live-sounding
}

// EnvelopePreset is one of the six saved vol/pan envelope shapes
// (ft2_plugin_config.h's stdEnvPoints/stdVolEnv*/stdPanEnv*/stdFadeout/
// stdVib* fields). It mirrors Envelope/AutoVibrato's fields with fixed
// arrays instead of slices so Config stays a plain comparable value,
// the way config_test.go's round-trip test already relies on.
type EnvelopePreset struct {
	VolPoints    [12]EnvelopePoint
	VolNumPoints int
	VolFlags     EnvelopeFlag
	VolSustain   int
	VolLoopStart int
	VolLoopEnd   int

	PanPoints    [12]EnvelopePoint
	PanNumPoints int
	PanFlags     EnvelopeFlag
	PanSustain   int
	PanLoopStart int
	PanLoopEnd   int

	FadeoutSpeed int

	VibWave  AutoVibratoWave
	VibRate  int
	VibDepth int
	VibSweep int
}

// Envelope converts the preset's volume or panning half into a live
// Envelope, for an instrument editor applying a preset to an
// instrument. Grounded on envelope.go's Envelope, which this preset
// mirrors field-for-field.
func (p *EnvelopePreset) Envelope(panning bool) Envelope {
	points, n, flags, sustain, loopStart, loopEnd := p.VolPoints, p.VolNumPoints, p.VolFlags, p.VolSustain, p.VolLoopStart, p.VolLoopEnd
	if panning {
		points, n, flags, sustain, loopStart, loopEnd = p.PanPoints, p.PanNumPoints, p.PanFlags, p.PanSustain, p.PanLoopStart, p.PanLoopEnd
	}
	if n > len(points) {
		n = len(points)
	}
	return Envelope{
		Points:    append([]EnvelopePoint(nil), points[:n]...),
		Flags:     flags,
		SustainPt: sustain,
		LoopStart: loopStart,
		LoopEnd:   loopEnd,
	}
}

// DefaultConfig returns the package's default settings.
func DefaultConfig() Config {
	cfg := Config{
		Interpolation:        InterpLinear,
		OutputFreq:           44100,
		ScopeQueueSize:       256,
		MIDIQueueSize:        64,
		BoostLevel:           1,
		MasterVol:            256,
		AllowFxxSpeedChanges: true,
		MIDI: MIDIInputConfig{
			VelocitySens: 100,
			ModRange:     15,
			BendRange:    2,
		},
	}
	for ch := range cfg.ChannelBus {
		cfg.ChannelToMain[ch] = true // every channel reaches the main mix until routed away
	}
	return cfg
}

// Encode serializes c to a version-prefixed binary blob.
func (c Config) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, configVersion)
	binary.Write(&buf, binary.LittleEndian, int32(c.Interpolation))
	binary.Write(&buf, binary.LittleEndian, int32(c.OutputFreq))
	binary.Write(&buf, binary.LittleEndian, int32(c.ScopeQueueSize))
	binary.Write(&buf, binary.LittleEndian, int32(c.MIDIQueueSize))

	binary.Write(&buf, binary.LittleEndian, int32(c.BoostLevel))
	binary.Write(&buf, binary.LittleEndian, int32(c.MasterVol))

	binary.Write(&buf, binary.LittleEndian, c.ChannelBus)
	binary.Write(&buf, binary.LittleEndian, c.ChannelToMain)

	binary.Write(&buf, binary.LittleEndian, c.SyncBPMFromDAW)
	binary.Write(&buf, binary.LittleEndian, c.SyncTransportFromDAW)
	binary.Write(&buf, binary.LittleEndian, c.SyncPositionFromDAW)
	binary.Write(&buf, binary.LittleEndian, c.AllowFxxSpeedChanges)

	encodeMIDIInputConfig(&buf, c.MIDI)
	for i := range c.EnvelopePresets {
		encodeEnvelopePreset(&buf, c.EnvelopePresets[i])
	}

	binary.Write(&buf, binary.LittleEndian, c.Palette)
	return buf.Bytes()
}

func encodeMIDIInputConfig(buf *bytes.Buffer, m MIDIInputConfig) {
	binary.Write(buf, binary.LittleEndian, m.Enabled)
	binary.Write(buf, binary.LittleEndian, m.AllChannels)
	binary.Write(buf, binary.LittleEndian, int32(m.Channel))
	binary.Write(buf, binary.LittleEndian, int32(m.Transpose))
	binary.Write(buf, binary.LittleEndian, int32(m.VelocitySens))
	binary.Write(buf, binary.LittleEndian, m.RecordVelocity)
	binary.Write(buf, binary.LittleEndian, m.RecordAftertouch)
	binary.Write(buf, binary.LittleEndian, m.RecordModWheel)
	binary.Write(buf, binary.LittleEndian, m.RecordPitchBend)
	binary.Write(buf, binary.LittleEndian, int32(m.ModRange))
	binary.Write(buf, binary.LittleEndian, int32(m.BendRange))
	binary.Write(buf, binary.LittleEndian, m.TriggerPatterns)
}

func decodeMIDIInputConfig(r *bytes.Reader) (MIDIInputConfig, error) {
	var m MIDIInputConfig
	var channel, transpose, velSens, modRange, bendRange int32
	fields := []any{
		&m.Enabled, &m.AllChannels, &channel, &transpose, &velSens,
		&m.RecordVelocity, &m.RecordAftertouch, &m.RecordModWheel, &m.RecordPitchBend,
		&modRange, &bendRange, &m.TriggerPatterns,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return MIDIInputConfig{}, err
		}
	}
	m.Channel, m.Transpose, m.VelocitySens = int(channel), int(transpose), int(velSens)
	m.ModRange, m.BendRange = int(modRange), int(bendRange)
	return m, nil
}

func encodeEnvelopePreset(buf *bytes.Buffer, p EnvelopePreset) {
	binary.Write(buf, binary.LittleEndian, flattenPoints(p.VolPoints))
	binary.Write(buf, binary.LittleEndian, int32(p.VolNumPoints))
	binary.Write(buf, binary.LittleEndian, uint8(p.VolFlags))
	binary.Write(buf, binary.LittleEndian, int32(p.VolSustain))
	binary.Write(buf, binary.LittleEndian, int32(p.VolLoopStart))
	binary.Write(buf, binary.LittleEndian, int32(p.VolLoopEnd))

	binary.Write(buf, binary.LittleEndian, flattenPoints(p.PanPoints))
	binary.Write(buf, binary.LittleEndian, int32(p.PanNumPoints))
	binary.Write(buf, binary.LittleEndian, uint8(p.PanFlags))
	binary.Write(buf, binary.LittleEndian, int32(p.PanSustain))
	binary.Write(buf, binary.LittleEndian, int32(p.PanLoopStart))
	binary.Write(buf, binary.LittleEndian, int32(p.PanLoopEnd))

	binary.Write(buf, binary.LittleEndian, int32(p.FadeoutSpeed))
	binary.Write(buf, binary.LittleEndian, int32(p.VibWave))
	binary.Write(buf, binary.LittleEndian, int32(p.VibRate))
	binary.Write(buf, binary.LittleEndian, int32(p.VibDepth))
	binary.Write(buf, binary.LittleEndian, int32(p.VibSweep))
}

func decodeEnvelopePreset(r *bytes.Reader) (EnvelopePreset, error) {
	var p EnvelopePreset
	var volPts, panPts [12][2]int32
	var volN, volSustain, volLoopStart, volLoopEnd int32
	var panN, panSustain, panLoopStart, panLoopEnd int32
	var volFlags, panFlags uint8
	var fadeout, vibWave, vibRate, vibDepth, vibSweep int32

	fields := []any{
		&volPts, &volN, &volFlags, &volSustain, &volLoopStart, &volLoopEnd,
		&panPts, &panN, &panFlags, &panSustain, &panLoopStart, &panLoopEnd,
		&fadeout, &vibWave, &vibRate, &vibDepth, &vibSweep,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return EnvelopePreset{}, err
		}
	}

	p.VolPoints, p.PanPoints = unflattenPoints(volPts), unflattenPoints(panPts)
	p.VolNumPoints, p.VolFlags = int(volN), EnvelopeFlag(volFlags)
	p.VolSustain, p.VolLoopStart, p.VolLoopEnd = int(volSustain), int(volLoopStart), int(volLoopEnd)
	p.PanNumPoints, p.PanFlags = int(panN), EnvelopeFlag(panFlags)
	p.PanSustain, p.PanLoopStart, p.PanLoopEnd = int(panSustain), int(panLoopStart), int(panLoopEnd)
	p.FadeoutSpeed = int(fadeout)
	p.VibWave, p.VibRate, p.VibDepth, p.VibSweep = AutoVibratoWave(vibWave), int(vibRate), int(vibDepth), int(vibSweep)
	return p, nil
}

func flattenPoints(points [12]EnvelopePoint) [12][2]int32 {
	var out [12][2]int32
	for i, pt := range points {
		out[i] = [2]int32{int32(pt.X), int32(pt.Y)}
	}
	return out
}

func unflattenPoints(flat [12][2]int32) [12]EnvelopePoint {
	var out [12]EnvelopePoint
	for i, xy := range flat {
		out[i] = EnvelopePoint{X: int(xy[0]), Y: int(xy[1])}
	}
	return out
}

// LoadConfig decodes a Config previously written by Encode, returning
// KindInvalidFormat for an unrecognized version rather than
// misinterpreting a foreign or stale blob.
func LoadConfig(data []byte) (Config, error) {
	buf := bytes.NewReader(data)
	var version uint32
	if err := binary.Read(buf, binary.LittleEndian, &version); err != nil {
		return Config{}, newLoadError(KindTruncated, err)
	}
	if version != configVersion {
		return Config{}, newLoadError(KindInvalidFormat, ErrUnknownConfigVersion)
	}

	var interp, freq, scopeSz, midiSz, boost, masterVol int32
	ints := []*int32{&interp, &freq, &scopeSz, &midiSz, &boost, &masterVol}
	for _, p := range ints {
		if err := binary.Read(buf, binary.LittleEndian, p); err != nil {
			return Config{}, newLoadError(KindTruncated, err)
		}
	}

	var c Config
	if err := binary.Read(buf, binary.LittleEndian, &c.ChannelBus); err != nil {
		return Config{}, newLoadError(KindTruncated, err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &c.ChannelToMain); err != nil {
		return Config{}, newLoadError(KindTruncated, err)
	}

	bools := []*bool{&c.SyncBPMFromDAW, &c.SyncTransportFromDAW, &c.SyncPositionFromDAW, &c.AllowFxxSpeedChanges}
	for _, p := range bools {
		if err := binary.Read(buf, binary.LittleEndian, p); err != nil {
			return Config{}, newLoadError(KindTruncated, err)
		}
	}

	midi, err := decodeMIDIInputConfig(buf)
	if err != nil {
		return Config{}, newLoadError(KindTruncated, err)
	}
	c.MIDI = midi

	for i := range c.EnvelopePresets {
		p, err := decodeEnvelopePreset(buf)
		if err != nil {
			return Config{}, newLoadError(KindTruncated, err)
		}
		c.EnvelopePresets[i] = p
	}

	if err := binary.Read(buf, binary.LittleEndian, &c.Palette); err != nil {
		return Config{}, newLoadError(KindTruncated, err)
	}

	c.Interpolation = InterpolationMode(interp)
	c.OutputFreq = int(freq)
	c.ScopeQueueSize = int(scopeSz)
	c.MIDIQueueSize = int(midiSz)
	c.BoostLevel = int(boost)
	c.MasterVol = int(masterVol)
	return c, nil
}
