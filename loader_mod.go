package ft2engine

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
)

// LoadMOD parses a ProTracker-family MOD file into a Song, adapted from
// the teacher's own mod.go (NewMODSongFromBytes/readMODSampleInfo/
// noteFromMODbytes/periodToPlayerNote) onto the new Song/Sample/Pattern
// types: sample PCM now goes through NewSample8 (so every loaded sample
// picks up tap padding), and each raw MOD sample is wrapped in a
// single-sample Instrument so the replayer's instrument-based note
// lookup (spec.md §4.1 "get_new_note") works the same for MOD, S3M and
// XM songs.
func LoadMOD(data []byte) (*Song, error) {
	song := &Song{
		Type:         SongTypeMOD,
		Speed:        6,
		Tempo:        125,
		GlobalVolume: 64,
	}

	buf := bytes.NewReader(data)
	title := make([]byte, 20)
	if _, err := buf.Read(title); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	song.Title = strings.TrimRight(string(title), "\x00")

	type modSampleHeader struct {
		Name      [22]byte
		Length    uint16
		FineTune  uint8
		Volume    uint8
		LoopStart uint16
		LoopLen   uint16
	}
	headers := make([]modSampleHeader, 31)
	for i := range headers {
		if err := binary.Read(buf, binary.BigEndian, &headers[i]); err != nil {
			return nil, newLoadError(KindTruncated, err)
		}
	}

	orders := struct {
		NumOrders uint8
		_         uint8
		OrderData [128]byte
	}{}
	if err := binary.Read(buf, binary.BigEndian, &orders); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	song.Orders = make([]byte, orders.NumOrders)
	copy(song.Orders, orders.OrderData[:orders.NumOrders])

	numPatterns := 0
	for i := 0; i < 128; i++ {
		if int(orders.OrderData[i]) > numPatterns {
			numPatterns = int(orders.OrderData[i])
		}
	}
	numPatterns++

	sig := make([]byte, 4)
	if n, err := buf.Read(sig); n != 4 || err != nil {
		return nil, newLoadError(KindInvalidFormat, ErrUnrecognizedMODFormat)
	}
	switch string(sig[2:]) {
	case "K.": // M.K.
		song.Channels = 4
	case "HN": // xCHN
		song.Channels = int(sig[0]) - '0'
	case "CH": // xxCH
		song.Channels = (int(sig[0])-'0')*10 + (int(sig[1]) - '0')
	default:
		return nil, newLoadError(KindInvalidFormat, ErrUnrecognizedMODFormat)
	}
	if song.Channels <= 0 || song.Channels > 32 {
		return nil, newLoadError(KindInvalidFormat, ErrUnrecognizedMODFormat)
	}

	const bytesPerCell = 4
	song.patterns = make([]*Pattern, numPatterns)
	cellBuf := make([]byte, rowsPerPattern*song.Channels*bytesPerCell)
	for p := 0; p < numPatterns; p++ {
		pat := newPattern(rowsPerPattern, song.Channels)
		if n, err := buf.Read(cellBuf); n != len(cellBuf) || err != nil {
			return nil, newLoadError(KindTruncated, ErrTruncated)
		}
		for cell := 0; cell < rowsPerPattern*song.Channels; cell++ {
			n := noteFromMODBytes(cellBuf[cell*bytesPerCell : (cell+1)*bytesPerCell])
			if n.Effect == effectSetVolume {
				n.Volume = int(n.Param)
			} else {
				n.Volume = noNoteVolume
			}
			pat.Data[cell] = n
		}
		song.patterns[p] = pat
	}

	song.Samples = make([]Sample, 31)
	song.Instruments = make([]Instrument, 31)
	for i, h := range headers {
		length := int(h.Length) * 2
		if length > buf.Len() {
			length = buf.Len()
		}
		pcm := make([]int8, length)
		if length > 0 {
			if err := binary.Read(buf, binary.LittleEndian, pcm); err != nil {
				return nil, newLoadError(KindTruncated, err)
			}
		}

		s := NewSample8(pcm)
		s.Name = strings.TrimRight(string(h.Name[:]), "\x00")
		s.Volume = int(h.Volume)
		s.Panning = 128
		s.FineTune = (int(h.FineTune&7) - int(h.FineTune&8)) * 16
		s.LoopStart = int(h.LoopStart) * 2
		s.LoopLen = int(h.LoopLen) * 2
		if s.LoopLen >= 4 {
			s.LoopType = LoopForward
		}
		s.sanitize()
		song.Samples[i] = *s

		song.Instruments[i] = Instrument{Name: s.Name, Samples: []*Sample{&song.Samples[i]}}
	}

	dumpf("MOD %q: %d channels, %d orders, %d patterns, %d samples\n",
		song.Title, song.Channels, len(song.Orders), song.numPatterns(), len(song.Samples))
	return song, nil
}

// modPeriodBase and modLn2 invert the MOD period table the same way the
// teacher's mod.go periodToPlayerNote does (a direct lift from libxmp,
// per its own comment): periodBase is the Amiga period for note C-(-1).
const (
	modPeriodBase = 13696
	modLn2        = 0.693147180559945309417232121458176568
)

func noteFromMODBytes(b []byte) note {
	period := int(b[0]&0xF)<<8 + int(b[1])
	return note{
		Sample: int(b[0]&0xF0 + b[2]>>4),
		Pitch:  modPeriodToPlayerNote(period),
		Effect: b[2] & 0xF,
		Param:  b[3],
	}
}

func modPeriodToPlayerNote(period int) playerNote {
	if period <= 0 {
		return noteNone
	}
	calc := 12.0 * math.Log(float64(modPeriodBase)/float64(period)) / modLn2
	return playerNote(math.Floor(calc + 0.5))
}
