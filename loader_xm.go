package ft2engine

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// LoadXM parses a FastTracker 2 XM module into a Song. Unlike mod.go/
// s3m.go, no teacher/example repo in the pack carries a raw XM byte
// parser (other_examples/peakle-xm delegates all binary decoding to an
// external github.com/quasilyte/xm/xmfile package that wasn't retrieved
// alongside it) - this loader is written directly against the public XM
// layout, in the same bytes.Reader/encoding.binary style the teacher's
// mod.go/s3m.go use, and its envelope/delta-decoding shape follows
// peakle-xm's own compileModule/envelope handling where that file does
// show the semantics (see DESIGN.md).
func LoadXM(data []byte) (*Song, error) {
	if len(data) < 60 || string(data[:17]) != "Extended Module: " {
		return nil, newLoadError(KindInvalidFormat, ErrInvalidXM)
	}

	song := &Song{Type: SongTypeXM, GlobalVolume: 64}
	buf := bytes.NewReader(data)

	hdr := make([]byte, 17+20+1+20)
	if _, err := buf.Read(hdr); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	song.Title = strings.TrimRight(string(hdr[17:37]), "\x00 ")

	var version uint16
	if err := binary.Read(buf, binary.LittleEndian, &version); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	if version < 0x0102 || version > 0x0104 {
		return nil, newLoadError(KindInvalidFormat, ErrUnsupportedXMVersion)
	}

	var headerSize uint32
	if err := binary.Read(buf, binary.LittleEndian, &headerSize); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	headerStart, _ := buf.Seek(0, 1)

	fields := struct {
		SongLength      uint16
		RestartPos      uint16
		NumChannels     uint16
		NumPatterns     uint16
		NumInstruments  uint16
		Flags           uint16
		DefaultTempo    uint16
		DefaultBPM      uint16
		OrderTable      [256]byte
	}{}
	if err := binary.Read(buf, binary.LittleEndian, &fields); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}

	song.Channels = int(fields.NumChannels)
	song.SongLoopStart = int(fields.RestartPos)
	song.Speed = int(fields.DefaultTempo)
	if song.Speed == 0 {
		song.Speed = 6
	}
	song.Tempo = int(fields.DefaultBPM)
	if song.Tempo == 0 {
		song.Tempo = 125
	}
	song.Orders = make([]byte, fields.SongLength)
	copy(song.Orders, fields.OrderTable[:fields.SongLength])
	song.LinearFreq = fields.Flags&1 != 0

	// Seek past the header using its declared size (future versions may
	// carry more fields than this struct reads), matching the "trust the
	// declared block size" convention XM parsers use.
	if _, err := buf.Seek(headerStart+int64(headerSize)-4, 0); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}

	song.patterns = make([]*Pattern, fields.NumPatterns)
	for p := 0; p < int(fields.NumPatterns); p++ {
		pat, err := readXMPattern(buf, int(fields.NumChannels))
		if err != nil {
			return nil, err
		}
		song.patterns[p] = pat
	}

	song.Instruments = make([]Instrument, fields.NumInstruments)
	for i := 0; i < int(fields.NumInstruments); i++ {
		inst, samples, err := readXMInstrument(buf)
		if err != nil {
			return nil, err
		}
		song.Instruments[i] = inst
		song.Samples = append(song.Samples, samples...)
	}
	// Re-point each instrument's Samples slice at the stable song.Samples
	// backing array now that every sample has been appended.
	off := 0
	for i := range song.Instruments {
		n := len(song.Instruments[i].Samples)
		ptrs := make([]*Sample, n)
		for j := 0; j < n; j++ {
			ptrs[j] = &song.Samples[off+j]
		}
		song.Instruments[i].Samples = ptrs
		off += n
	}

	dumpf("XM %q: %d channels, %d orders, %d patterns, %d instruments, %d samples, linear=%v\n",
		song.Title, song.Channels, len(song.Orders), song.numPatterns(), len(song.Instruments), len(song.Samples), song.LinearFreq)
	return song, nil
}

func readXMPattern(buf *bytes.Reader, channels int) (*Pattern, error) {
	var headerLen uint32
	if err := binary.Read(buf, binary.LittleEndian, &headerLen); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	start, _ := buf.Seek(0, 1)

	var packing uint8
	var numRows uint16
	var packedSize uint16
	if err := binary.Read(buf, binary.LittleEndian, &packing); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &numRows); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &packedSize); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	if _, err := buf.Seek(start+int64(headerLen)-4, 0); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}

	rows := int(numRows)
	if rows <= 0 {
		rows = rowsPerPattern
	}
	pat := newPattern(rows, channels)

	packed := make([]byte, packedSize)
	if packedSize > 0 {
		if _, err := buf.Read(packed); err != nil {
			return nil, newLoadError(KindTruncated, err)
		}
	}

	pb := bytes.NewReader(packed)
	for row := 0; row < rows; row++ {
		for ch := 0; ch < channels; ch++ {
			cell := pat.at(row, ch, channels)
			if err := readXMCell(pb, cell); err != nil {
				return nil, newLoadError(KindTruncated, err)
			}
		}
	}
	return pat, nil
}

func readXMCell(pb *bytes.Reader, cell *note) error {
	b, err := pb.ReadByte()
	if err != nil {
		return err
	}

	var hasNote, hasInst, hasVol, hasEfType, hasEfParam bool
	if b&0x80 != 0 {
		hasNote = b&0x01 != 0
		hasInst = b&0x02 != 0
		hasVol = b&0x04 != 0
		hasEfType = b&0x08 != 0
		hasEfParam = b&0x10 != 0
	} else {
		hasNote = true
		hasInst, hasVol, hasEfType, hasEfParam = true, true, true, true
	}

	cell.Volume = noNoteVolume
	if hasNote {
		var n byte
		if b&0x80 != 0 {
			n, err = pb.ReadByte()
			if err != nil {
				return err
			}
		} else {
			n = b
		}
		if n == 97 {
			cell.Pitch = noteKeyOff
		} else if n > 0 {
			// XM note 1 is C-0; rebase onto this package's internal
			// playerNote scale, where (matching mod.go/s3m.go) C-0 == 12.
			cell.Pitch = playerNote(int(n) + 11)
		}
	}
	if hasInst {
		v, err := pb.ReadByte()
		if err != nil {
			return err
		}
		cell.Sample = int(v)
	}
	if hasVol {
		v, err := pb.ReadByte()
		if err != nil {
			return err
		}
		cell.Volume = int(v)
	}
	if hasEfType {
		v, err := pb.ReadByte()
		if err != nil {
			return err
		}
		cell.Effect = xmEffectRemap(v)
	}
	if hasEfParam {
		v, err := pb.ReadByte()
		if err != nil {
			return err
		}
		cell.Param = v
	}
	return nil
}

// xmEffectRemap maps XM's native effect byte (0-9 digits then 'A'-'Z'
// minus letter 'I'/'J' gaps folded in by FT2's own table) onto this
// package's effect constants, which already follow that same numbering
// - so for the vast majority of effects this is the identity map. It
// exists as a seam for the handful of XM-only effect letters that don't
// share a MOD/S3M numeric home.
func xmEffectRemap(v byte) byte { return v }

func readXMInstrument(buf *bytes.Reader) (Instrument, []Sample, error) {
	var headerLen uint32
	if err := binary.Read(buf, binary.LittleEndian, &headerLen); err != nil {
		return Instrument{}, nil, newLoadError(KindTruncated, err)
	}
	start, _ := buf.Seek(0, 1)

	name := make([]byte, 22)
	if _, err := buf.Read(name); err != nil {
		return Instrument{}, nil, newLoadError(KindTruncated, err)
	}
	var instType byte
	var numSamples uint16
	if err := binary.Read(buf, binary.LittleEndian, &instType); err != nil {
		return Instrument{}, nil, newLoadError(KindTruncated, err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &numSamples); err != nil {
		return Instrument{}, nil, newLoadError(KindTruncated, err)
	}

	inst := Instrument{Name: strings.TrimRight(string(name), "\x00 ")}

	var sampleHeaderLen uint32
	var keymap [96]byte
	var volPoints, panPoints [12 * 2]uint16
	var numVolPoints, numPanPoints, volSustain, volLoopStart, volLoopEnd byte
	var panSustain, panLoopStart, panLoopEnd byte
	var volType, panType byte
	var vibType, vibSweep, vibDepth, vibRate byte
	var fadeout uint16

	if numSamples > 0 {
		if err := binary.Read(buf, binary.LittleEndian, &sampleHeaderLen); err != nil {
			return Instrument{}, nil, newLoadError(KindTruncated, err)
		}
		if _, err := buf.Read(keymap[:]); err != nil {
			return Instrument{}, nil, newLoadError(KindTruncated, err)
		}
		if err := binary.Read(buf, binary.LittleEndian, &volPoints); err != nil {
			return Instrument{}, nil, newLoadError(KindTruncated, err)
		}
		if err := binary.Read(buf, binary.LittleEndian, &panPoints); err != nil {
			return Instrument{}, nil, newLoadError(KindTruncated, err)
		}
		for _, p := range []*byte{&numVolPoints, &numPanPoints, &volSustain, &volLoopStart, &volLoopEnd,
			&panSustain, &panLoopStart, &panLoopEnd, &volType, &panType,
			&vibType, &vibSweep, &vibDepth, &vibRate} {
			if err := binary.Read(buf, binary.LittleEndian, p); err != nil {
				return Instrument{}, nil, newLoadError(KindTruncated, err)
			}
		}
		if err := binary.Read(buf, binary.LittleEndian, &fadeout); err != nil {
			return Instrument{}, nil, newLoadError(KindTruncated, err)
		}

		inst.VolumeEnvelope = buildXMEnvelope(volPoints[:], numVolPoints, volSustain, volLoopStart, volLoopEnd, volType)
		inst.PanningEnvelope = buildXMEnvelope(panPoints[:], numPanPoints, panSustain, panLoopStart, panLoopEnd, panType)
		inst.FadeoutSpeed = int(fadeout)
		inst.AutoVib = AutoVibrato{
			Wave:  AutoVibratoWave(vibType & 3),
			Depth: int(vibDepth),
			Rate:  int(vibRate),
			Sweep: int(vibSweep),
		}
		for n := range inst.NoteSampleMap {
			inst.NoteSampleMap[n] = int(keymap[n])
		}
	}

	if _, err := buf.Seek(start+int64(headerLen)-4, 0); err != nil {
		return Instrument{}, nil, newLoadError(KindTruncated, err)
	}

	if numSamples == 0 {
		return inst, nil, nil
	}

	type xmSampleHeader struct {
		Length      uint32
		LoopStart   uint32
		LoopLen     uint32
		Volume      uint8
		FineTune    int8
		Type        uint8
		Panning     uint8
		RelNote     int8
		_           uint8
		Name        [22]byte
	}
	headers := make([]xmSampleHeader, numSamples)
	for i := range headers {
		if err := binary.Read(buf, binary.LittleEndian, &headers[i]); err != nil {
			return Instrument{}, nil, newLoadError(KindTruncated, err)
		}
	}

	samples := make([]Sample, numSamples)
	for i, h := range headers {
		is16 := h.Type&0x10 != 0
		length := int(h.Length)
		loopStart := int(h.LoopStart)
		loopLen := int(h.LoopLen)
		if is16 {
			length /= 2
			loopStart /= 2
			loopLen /= 2
		}

		var s *Sample
		if is16 {
			deltas := make([]int16, length)
			if length > 0 {
				if err := binary.Read(buf, binary.LittleEndian, deltas); err != nil {
					return Instrument{}, nil, newLoadError(KindTruncated, err)
				}
			}
			pcm := make([]int16, length)
			var acc int16
			for j, d := range deltas {
				acc += d
				pcm[j] = acc
			}
			s = NewSample16(pcm)
		} else {
			deltas := make([]int8, length)
			if length > 0 {
				if err := binary.Read(buf, binary.LittleEndian, deltas); err != nil {
					return Instrument{}, nil, newLoadError(KindTruncated, err)
				}
			}
			pcm := make([]int8, length)
			var acc int8
			for j, d := range deltas {
				acc += d
				pcm[j] = acc
			}
			s = NewSample8(pcm)
		}

		s.Name = strings.TrimRight(string(h.Name[:]), "\x00 ")
		s.Volume = int(h.Volume)
		s.Panning = int(h.Panning)
		s.RelativeNote = int(h.RelNote)
		s.FineTune = int(h.FineTune)
		s.LoopStart = loopStart
		s.LoopLen = loopLen
		switch h.Type & 0x3 {
		case 1:
			s.LoopType = LoopForward
		case 2:
			s.LoopType = LoopPingPong
		default:
			s.LoopType = LoopNone
		}
		s.sanitize()
		samples[i] = *s
	}

	return inst, samples, nil
}

// buildXMEnvelope converts the XM instrument header's flat envelope
// point/flag fields into an Envelope.
func buildXMEnvelope(raw []uint16, numPoints, sustain, loopStart, loopEnd, flags byte) Envelope {
	env := Envelope{
		Flags:     EnvelopeFlag(flags),
		SustainPt: int(sustain),
		LoopStart: int(loopStart),
		LoopEnd:   int(loopEnd),
	}
	n := int(numPoints)
	if n > 12 {
		n = 12
	}
	env.Points = make([]EnvelopePoint, n)
	for i := 0; i < n; i++ {
		env.Points[i] = EnvelopePoint{X: int(raw[i*2]), Y: int(raw[i*2+1])}
	}
	return env
}
