package ft2engine

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
)

// S3M-specific effect byte values, pre-remap; the teacher's own s3m.go
// defines exactly this set (s3mfx_SetSpeed etc).
const (
	s3mfxSetSpeed       = 0x1
	s3mfxPatternJump    = 0x2
	s3mfxPatternBreak   = 0x3
	s3mfxTonePortamento = 0x7
	s3mfxSpecial        = 0x13
)

// LoadS3M parses a Scream Tracker 3 module into a Song, adapted from the
// teacher's own s3m.go (NewS3MSongFromBytes/convertS3MEffect) onto the
// new Sample/Pattern/Instrument types - PCM goes through NewSample8 for
// tap padding, and each sample is wrapped in a single-sample Instrument
// the same way LoadMOD does.
func LoadS3M(data []byte) (*Song, error) {
	if len(data) < 48 || string(data[44:48]) != "SCRM" {
		return nil, newLoadError(KindInvalidFormat, ErrInvalidS3M)
	}

	song := &Song{Type: SongTypeS3M}
	buf := bytes.NewReader(data)
	title := make([]byte, 28)
	if _, err := buf.Read(title); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	song.Title = strings.TrimRight(string(title), "\x00")

	header := struct {
		Pad             byte
		Filetype        byte
		_               uint16
		Length          uint16
		NumInstruments  uint16
		NumPatterns     uint16
		Flags           uint16
		Tracker         uint16
		SampleFormat    uint16
		_               [4]byte
		Volume          uint8
		Speed           uint8
		Tempo           uint8
		MastVolume      uint8
		_               uint8
		Panning         uint8
		_               [8]byte
		_               [2]byte
		ChannelSettings [32]byte
	}{}
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	song.Tempo = int(header.Tempo)
	song.Speed = int(header.Speed)
	song.GlobalVolume = int(header.Volume)
	if song.GlobalVolume == 0 {
		song.GlobalVolume = 64
	}

	nc := 0
	for ; nc < 32; nc++ {
		if header.ChannelSettings[nc] == 255 {
			break
		}
	}
	song.Channels = nc
	if song.Channels <= 0 || song.Channels > 32 {
		return nil, newLoadError(KindInvalidFormat, ErrInvalidS3M)
	}

	orders := make([]byte, header.Length)
	if _, err := io.ReadFull(buf, orders); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}
	song.Orders = make([]byte, 0, header.Length)
	for _, pat := range orders {
		if pat == 255 {
			break
		}
		song.Orders = append(song.Orders, pat)
	}

	paras := make([]uint16, int(header.NumInstruments)+int(header.NumPatterns))
	if err := binary.Read(buf, binary.LittleEndian, paras); err != nil {
		return nil, newLoadError(KindTruncated, err)
	}

	song.Samples = make([]Sample, header.NumInstruments)
	song.Instruments = make([]Instrument, header.NumInstruments)
	for i := 0; i < int(header.NumInstruments); i++ {
		if _, err := buf.Seek(int64(paras[i])*16, io.SeekStart); err != nil {
			return nil, newLoadError(KindTruncated, err)
		}
		instHeader := struct {
			Type         byte
			Filename     [12]byte
			MemSegHi     byte
			MemSegLo     uint16
			SampleLength uint16
			_            uint16
			LoopBegin    uint16
			_            uint16
			LoopEnd      uint16
			_            uint16
			Volume       byte
			_            byte
			Packing      byte
			Flags        byte
			C2Speed      uint16
			_            uint16
			_            [12]byte
			Name         [28]byte
			Scrs         [4]byte
		}{}
		if err := binary.Read(buf, binary.LittleEndian, &instHeader); err != nil {
			return nil, newLoadError(KindTruncated, err)
		}
		if instHeader.Type > 1 {
			return nil, newLoadError(KindInvalidFormat, ErrInvalidS3M)
		}
		if instHeader.Flags&4 == 4 {
			return nil, newLoadError(KindInvalidFormat, ErrInvalidS3M)
		}

		length := int(instHeader.SampleLength)
		pcm := make([]int8, length)
		if length > 0 {
			dataOffset := (int64(instHeader.MemSegHi)<<16 | int64(instHeader.MemSegLo)) * 16
			if _, err := buf.Seek(dataOffset, io.SeekStart); err != nil {
				return nil, newLoadError(KindTruncated, err)
			}
			if err := binary.Read(buf, binary.LittleEndian, pcm); err != nil {
				return nil, newLoadError(KindTruncated, err)
			}
			for j := range pcm {
				pcm[j] = int8(byte(pcm[j]) ^ 128) // unsigned -> signed
			}
		}

		s := NewSample8(pcm)
		s.Name = strings.TrimRight(string(instHeader.Name[:]), "\x00")
		s.Volume = int(instHeader.Volume)
		s.Panning = 128
		s.C4Speed = int(instHeader.C2Speed)
		s.LoopStart = int(instHeader.LoopBegin)
		s.LoopLen = int(instHeader.LoopEnd) - int(instHeader.LoopBegin)
		if s.LoopLen > 0 {
			s.LoopType = LoopForward
		}
		s.sanitize()
		song.Samples[i] = *s
		song.Instruments[i] = Instrument{Name: s.Name, Samples: []*Sample{&song.Samples[i]}}
	}

	song.patterns = make([]*Pattern, header.NumPatterns)
	for i := 0; i < int(header.NumPatterns); i++ {
		if _, err := buf.Seek(int64(paras[i+int(header.NumInstruments)])*16, io.SeekStart); err != nil {
			return nil, newLoadError(KindTruncated, err)
		}
		var packedLen int16
		if err := binary.Read(buf, binary.LittleEndian, &packedLen); err != nil {
			return nil, newLoadError(KindTruncated, err)
		}
		packedLen -= 2

		pat := &Pattern{Rows: rowsPerPattern, Data: initNotePattern(song.Channels)}

		row := 0
		for packedLen > 0 {
			b, err := buf.ReadByte()
			if err != nil {
				return nil, newLoadError(KindTruncated, err)
			}
			packedLen--
			if b == 0 {
				row++
				if row >= rowsPerPattern {
					break
				}
				continue
			}

			chn := int(b & 31)
			if chn >= song.Channels {
				skip := []int64{0, 2, 1, 3, 2, 4, 3, 5}[b>>5]
				buf.Seek(skip, io.SeekCurrent)
				packedLen -= int16(skip)
				continue
			}

			cell := &pat.Data[row*song.Channels+chn]
			if b&32 == 32 {
				noter, _ := buf.ReadByte()
				intr, _ := buf.ReadByte()
				packedLen -= 2
				if noter < 254 {
					cell.Pitch = playerNote(12 + 12*int(noter>>4) + int(noter&0xF))
				} else {
					cell.Pitch = noteKeyOff
				}
				cell.Sample = int(intr)
			}
			if b&64 == 64 {
				vol, _ := buf.ReadByte()
				packedLen--
				cell.Volume = int(vol)
			}
			if b&128 == 128 {
				efct, _ := buf.ReadByte()
				parm, _ := buf.ReadByte()
				packedLen -= 2
				cell.Effect, cell.Param = convertS3MEffect(efct, parm)
			}
		}

		song.patterns[i] = pat
	}

	dumpf("S3M %q: %d channels, %d orders, %d patterns, %d samples\n",
		song.Title, song.Channels, len(song.Orders), song.numPatterns(), len(song.Samples))
	return song, nil
}

func convertS3MEffect(efc, parm byte) (effect, param byte) {
	effect, param = efc, parm
	switch efc {
	case s3mfxSetSpeed:
		effect = effectSetSpeed
	case s3mfxPatternJump:
		effect = effectJumpToPattern
	case s3mfxPatternBreak:
		effect = effectPatternBrk
	case s3mfxTonePortamento:
		effect = effectPortaToNote
	case s3mfxSpecial:
		if parm>>4 == 0xB {
			effect = effectExtended
			param = exPatternLoop<<4 | parm&0xF
		}
	}
	return
}
