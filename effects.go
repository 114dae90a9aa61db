package ft2engine

import "math"

func pow2(x float64) float64 { return math.Pow(2, x) }

// Effect numbering follows the XM convention the teacher's own loaders
// already assume (mod.go/s3m.go remap MOD/S3M effect bytes into this
// same space via effectSetVolume/effectJumpToPattern/effectPatternBrk/
// effectPortaToNote/effectPatternLoop/effectSetSpeed): digits 0x0-0x9 map
// directly, letters 'A'-'Z' map to 0xA-0x23. Sub-effects of Exy (0x0E)
// are selected by the parameter's high nibble.
const (
	effectArpeggio       = 0x00
	effectPortaUp        = 0x01
	effectPortaDown      = 0x02
	effectPortaToNote    = 0x03
	effectVibrato        = 0x04
	effectPortaVolSlide  = 0x05
	effectVibratoVolSlide = 0x06
	effectTremolo        = 0x07
	effectSetPanning     = 0x08
	effectSampleOffset   = 0x09
	effectVolSlide       = 0x0A
	effectJumpToPattern  = 0x0B
	effectSetVolume      = 0x0C
	effectPatternBrk     = 0x0D
	effectExtended       = 0x0E
	effectSetSpeed       = 0x0F // param<0x20 sets ticks/row, >=0x20 sets BPM
	effectSetGlobalVol   = 0x10
	effectGlobalVolSlide = 0x11
	effectKeyOff         = 0x14
	effectSetEnvelopePos = 0x15
	effectPanningSlide   = 0x19
	effectMultiRetrig    = 0x1B
	effectTremor         = 0x1D
	effectExtraFinePorta = 0x21

	// Extended (Exy) sub-effects, selected by param>>4.
	exFinePortaUp    = 0x1
	exFinePortaDown  = 0x2
	exGlissCtrl      = 0x3
	exVibratoCtrl    = 0x4
	exFineTune       = 0x5
	exPatternLoop    = 0x6
	exTremoloCtrl    = 0x7
	exFineVolUp      = 0xA
	exFineVolDown    = 0xB
	exNoteCut        = 0xC
	exNoteDelay      = 0xD
	exPatternDelay   = 0xE
)

// arpeggioOffsets is all zeros and is not read: applyArpeggio takes the
// 0/x/y note offsets straight from the effect parameter's nibbles.
var arpeggioOffsets = [3]int{0, 0, 0}

// waveformValue is the vibrato/tremolo waveform lookup shared by both
// effects: wave 0 is sine (sineTable from envelope.go), 1 ramp-down,
// 2 square, and 3 reuses the ramp-down shape.
func waveformValue(wave int, pos int) int {
	switch wave & 3 {
	case 0:
		return sineTable[pos&0xFF]
	case 1: // ramp down
		return 64 - (pos&0xFF)/2
	case 2: // square
		if pos&0x80 != 0 {
			return 64
		}
		return -64
	default: // random-ish, FT2 reuses the ramp table for wave 3
		return 64 - (pos&0xFF)/2
	}
}

// tremoloValue computes the Txy effect's waveform contribution. FT2's
// ramp-waveform branch (ft2_plugin_replayer.c's tremolo(), case 1)
// decides whether to complement the value by reading the *vibrato*
// position's sign instead of the tremolo position's own - a cross-read
// bug reproduced here rather than fixed (spec.md §9).
func tremoloValue(wave, tremoloPos, vibratoPos int) int {
	v := waveformValue(wave, tremoloPos)
	if wave&3 == 1 && int8(vibratoPos) < 0 {
		v = -v
	}
	return v
}

// applyVolumeColumn realizes the FT2 pattern volume column (00-FF in the
// note) into the channel, per spec.md §4.3/§6.2. This runs once per row
// on tick 0, before the effect column.
func applyVolumeColumn(c *channel, v int) {
	if v == noNoteVolume {
		return
	}
	switch {
	case v >= 0x10 && v <= 0x50:
		c.volume = v - 0x10
	case v >= 0x60 && v <= 0x6F: // volume slide down
		c.volume -= v - 0x60
	case v >= 0x70 && v <= 0x7F: // volume slide up
		c.volume += v - 0x70
	case v >= 0x80 && v <= 0x8F: // fine volume slide down
		c.volume -= v - 0x80
	case v >= 0x90 && v <= 0x9F: // fine volume slide up
		c.volume += v - 0x90
	case v >= 0xA0 && v <= 0xAF: // set vibrato speed
		c.lastVibratoParam = (c.lastVibratoParam & 0x0F) | byte(v-0xA0)<<4
	case v >= 0xB0 && v <= 0xBF: // vibrato + set depth
		c.lastVibratoParam = (c.lastVibratoParam & 0xF0) | byte(v-0xB0)
	case v >= 0xC0 && v <= 0xCF: // set panning
		c.panning = (v - 0xC0) * 17
	case v >= 0xD0 && v <= 0xDF: // panning slide left
		c.panning -= (v - 0xD0) * 2
	case v >= 0xE0 && v <= 0xEF: // panning slide right
		c.panning += (v - 0xE0) * 2
	case v >= 0xF0 && v <= 0xFF: // tone porta
		c.lastPortaToNoteParam = byte(v-0xF0) << 4
	}
	if c.volume < 0 {
		c.volume = 0
	}
	if c.volume > 64 {
		c.volume = 64
	}
	if c.panning < 0 {
		c.panning = 0
	}
	if c.panning > 255 {
		c.panning = 255
	}
}

// tickZeroEffect applies the subset of effect behaviour that only
// happens on tick 0 of a row (most parameter latching, jumps/breaks,
// one-shot commands). r carries the replayer so jump/break/speed
// effects can mutate global sequencing state.
func tickZeroEffect(r *Replayer, ch int, c *channel, n *note) {
	param := n.Param
	switch n.Effect {
	case effectPortaToNote:
		if param != 0 {
			c.lastPortaToNoteParam = param
		}
		if n.Pitch != noteNone {
			c.portaToNoteTarget = c.period
		}
	case effectSampleOffset:
		if param != 0 {
			c.lastSampleOffset = int(param) * 256
		}
	case effectVolSlide:
		if param != 0 {
			c.lastVolSlideParam = param
		}
	case effectGlobalVolSlide:
		if param != 0 {
			c.lastGlobalVolSlideParam = param
		}
	case effectPanningSlide:
		if param != 0 {
			c.lastPanningSlideParam = param
		}
	case effectPortaUp:
		if param != 0 {
			c.lastPortaUpParam = param
		}
	case effectPortaDown:
		if param != 0 {
			c.lastPortaDownParam = param
		}
	case effectVibrato:
		if param&0xF0 != 0 {
			c.lastVibratoParam = (c.lastVibratoParam & 0x0F) | (param & 0xF0)
		}
		if param&0x0F != 0 {
			c.lastVibratoParam = (c.lastVibratoParam & 0xF0) | (param & 0x0F)
		}
	case effectTremolo:
		if param&0xF0 != 0 {
			c.lastTremoloParam = (c.lastTremoloParam & 0x0F) | (param & 0xF0)
		}
		if param&0x0F != 0 {
			c.lastTremoloParam = (c.lastTremoloParam & 0xF0) | (param & 0x0F)
		}
	case effectTremor:
		if param != 0 {
			c.lastTremorParam = param
		}
	case effectMultiRetrig:
		if param != 0 {
			c.lastRetrigParam = param
		}
		// FT2 only fires the tick-0 retrigger when the row's volume
		// column byte is empty; a volume-column value suppresses it.
		// noNoteVolume (no volume column present at all) counts as
		// empty the same as an explicit 0x00 byte does.
		if n.Volume == 0 || n.Volume == noNoteVolume {
			retrigNote(r, ch, c, param)
		}
	case effectSetVolume:
		c.volume = clampInt(int(param), 0, 64)
	case effectSetGlobalVol:
		r.globalVolume = clampInt(int(param), 0, 64)
	case effectSetPanning:
		c.panning = int(param)
	case effectJumpToPattern:
		r.pendingOrder = int(param)
		r.jumpPending = true
	case effectPatternBrk:
		r.pendingRow = int(param>>4)*10 + int(param&0xF)
		r.breakPending = true
	case effectSetSpeed:
		if param < 0x20 {
			if param > 0 {
				r.song.Speed = int(param)
			}
		} else {
			r.setBPM(int(param))
		}
	case effectKeyOff:
		if int(param) <= r.tick {
			releaseChannel(c)
		}
	case effectSetEnvelopePos:
		if c.instrument != nil {
			inst := c.instrument
			if inst.VolumeEnvelope.Flags&EnvelopeOn != 0 {
				c.volEnvPos, c.volEnvTick = seekEnvelopeToTick(&inst.VolumeEnvelope, int(param))
			}
			// FT2 logic bug (ft2_plugin_replayer.c's setEnvelopePos): the
			// panning envelope update here is gated on the *volume*
			// envelope's Sustain flag instead of its own flags -
			// reproduced verbatim rather than fixed (spec.md §9).
			if inst.VolumeEnvelope.Flags&EnvelopeSustain != 0 {
				c.panEnvPos, c.panEnvTick = seekEnvelopeToTick(&inst.PanningEnvelope, int(param))
			}
		}
	case effectExtended:
		tickZeroExtended(r, ch, c, param)
	}
}

func tickZeroExtended(r *Replayer, ch int, c *channel, param byte) {
	sub := param >> 4
	val := param & 0xF
	switch sub {
	case exFinePortaUp:
		if val != 0 {
			c.lastFinePortaUpParam = val
		}
		c.period -= int(c.lastFinePortaUpParam) * 4
	case exFinePortaDown:
		if val != 0 {
			c.lastFinePortaDownParam = val
		}
		c.period += int(c.lastFinePortaDownParam) * 4
	case exFineVolUp:
		c.volume = clampInt(c.volume+int(val), 0, 64)
	case exFineVolDown:
		c.volume = clampInt(c.volume-int(val), 0, 64)
	case exPatternLoop:
		handlePatternLoop(r, int(val))
	case exPatternDelay:
		r.patternDelay = int(val)
	case exNoteCut:
		if val == 0 {
			c.volume = 0
		}
	case exVibratoCtrl:
		c.vibratoWave = int(val & 3)
		c.vibratoCtrl = val&4 == 0
	case exTremoloCtrl:
		c.tremoloWave = int(val & 3)
		c.tremoloCtrl = val&4 == 0
	}
}

// tickEffect applies the per-tick (tick > 0) continuation of an effect:
// slides, vibrato/tremolo stepping, arpeggio, tremor, delayed note
// cut/retrigger.
func tickEffect(r *Replayer, ch int, c *channel, n *note, tick int) {
	param := n.Param
	switch n.Effect {
	case effectArpeggio:
		applyArpeggio(c, param, tick)
	case effectPortaUp:
		p := param
		if p == 0 {
			p = c.lastPortaUpParam
		}
		c.period -= int(p) * 4
	case effectPortaDown:
		p := param
		if p == 0 {
			p = c.lastPortaDownParam
		}
		c.period += int(p) * 4
	case effectPortaToNote:
		applyPortaToNote(c)
	case effectPortaVolSlide:
		applyPortaToNote(c)
		applyVolumeSlide(c, c.lastVolSlideParam)
	case effectVibrato:
		c.vibratoPos += int(c.lastVibratoParam>>4) * 4
	case effectVibratoVolSlide:
		c.vibratoPos += int(c.lastVibratoParam>>4) * 4
		applyVolumeSlide(c, c.lastVolSlideParam)
	case effectTremolo:
		c.tremoloPos += int(c.lastTremoloParam>>4) * 4
	case effectVolSlide:
		applyVolumeSlide(c, c.lastVolSlideParam)
	case effectGlobalVolSlide:
		r.globalVolume = clampInt(r.globalVolume+volSlideDelta(c.lastGlobalVolSlideParam), 0, 64)
	case effectPanningSlide:
		c.panning = clampInt(c.panning+volSlideDelta(c.lastPanningSlideParam)*4, 0, 255)
	case effectTremor:
		applyTremor(c, tick)
	case effectMultiRetrig:
		if c.lastRetrigParam&0xF != 0 && tick%int(c.lastRetrigParam&0xF) == 0 {
			retrigNote(r, ch, c, c.lastRetrigParam)
		}
	case effectExtended:
		tickExtended(r, ch, c, n.Param, tick)
	}
}

func tickExtended(r *Replayer, ch int, c *channel, param byte, tick int) {
	sub := param >> 4
	val := int(param & 0xF)
	switch sub {
	case exNoteCut:
		if val == tick {
			c.volume = 0
		}
	case exNoteDelay:
		if val == tick {
			triggerNote(r, ch, c, c.note)
		}
	}
}

// applyArpeggio reads spec.md's preserved Open Question #3 neighbor:
// the plain 0/x/y cycling every tick, x and y taken from the param
// nibbles.
func applyArpeggio(c *channel, param byte, tick int) {
	switch tick % 3 {
	case 0:
		c.realPeriod = c.period
	case 1:
		c.realPeriod = periodForArpeggio(c, int(param>>4))
	case 2:
		c.realPeriod = periodForArpeggio(c, int(param&0xF))
	}
}

func periodForArpeggio(c *channel, semitones int) int {
	return int(float64(c.period) / semitoneRatio(semitones))
}

func semitoneRatio(semitones int) float64 {
	return pow2(float64(semitones) / 12.0)
}

func applyPortaToNote(c *channel) {
	if c.portaToNoteTarget == 0 {
		return
	}
	step := int(c.lastPortaToNoteParam) * 4
	if c.period < c.portaToNoteTarget {
		c.period += step
		if c.period > c.portaToNoteTarget {
			c.period = c.portaToNoteTarget
		}
	} else if c.period > c.portaToNoteTarget {
		c.period -= step
		if c.period < c.portaToNoteTarget {
			c.period = c.portaToNoteTarget
		}
	}
}

func applyVolumeSlide(c *channel, param byte) {
	c.volume = clampInt(c.volume+volSlideDelta(param), 0, 64)
}

// volSlideDelta turns an FT2 xy volume-slide param into a signed delta:
// x>0 slides up by x, y>0 (with x==0) slides down by y.
func volSlideDelta(param byte) int {
	up, down := int(param>>4), int(param&0xF)
	if up > 0 {
		return up
	}
	return -down
}

func applyTremor(c *channel, tick int) {
	onLen := int(c.lastTremorParam>>4) + 1
	offLen := int(c.lastTremorParam&0xF) + 1
	pos := tick % (onLen + offLen)
	c.tremorOn = pos < onLen
}

// handlePatternLoop implements E6x: E60 marks the loop start row, E6x
// (x>0) jumps back to the marked row x times.
func handlePatternLoop(r *Replayer, count int) {
	if count == 0 {
		r.loopStartRow = r.row
		return
	}
	if r.loopCounter == 0 {
		r.loopCounter = count
		r.loopBackPending = true
	} else if r.loopCounter > 1 {
		r.loopCounter--
		r.loopBackPending = true
	} else {
		r.loopCounter = 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
