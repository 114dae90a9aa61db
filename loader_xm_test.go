package ft2engine

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildMinimalXM assembles the smallest legal XM file: an id/name/tracker
// header, a standard 276-byte pattern-order header with no orders, and
// zero patterns/instruments (so the loader's own pattern/instrument
// loops never run). No .xm fixtures were retrieved with the teacher
// pack, so this is synthesized the same way loader_mod_test.go/
// loader_s3m_test.go build their fixtures.
func buildMinimalXM(t *testing.T, channels int, flags uint16) []byte {
	t.Helper()
	var buf bytes.Buffer

	buf.WriteString("Extended Module: ")
	name := make([]byte, 20)
	copy(name, "test xm")
	buf.Write(name)
	buf.WriteByte(0x1A)
	tracker := make([]byte, 20)
	copy(tracker, "tester")
	buf.Write(tracker)

	binary.Write(&buf, binary.LittleEndian, uint16(0x0104)) // version
	binary.Write(&buf, binary.LittleEndian, uint32(276))     // header size

	binary.Write(&buf, binary.LittleEndian, uint16(0))        // SongLength
	binary.Write(&buf, binary.LittleEndian, uint16(0))        // RestartPos
	binary.Write(&buf, binary.LittleEndian, uint16(channels)) // NumChannels
	binary.Write(&buf, binary.LittleEndian, uint16(0))        // NumPatterns
	binary.Write(&buf, binary.LittleEndian, uint16(0))        // NumInstruments
	binary.Write(&buf, binary.LittleEndian, flags)            // Flags
	binary.Write(&buf, binary.LittleEndian, uint16(6))        // DefaultTempo
	binary.Write(&buf, binary.LittleEndian, uint16(125))      // DefaultBPM
	buf.Write(make([]byte, 256))                              // OrderTable

	return buf.Bytes()
}

func TestLoadXMParsesHeader(t *testing.T) {
	song, err := LoadXM(buildMinimalXM(t, 8, 1))
	if err != nil {
		t.Fatalf("LoadXM() error = %v", err)
	}
	if song.Channels != 8 {
		t.Errorf("Channels = %d, want 8", song.Channels)
	}
	if song.Title != "test xm" {
		t.Errorf("Title = %q, want %q", song.Title, "test xm")
	}
	if !song.LinearFreq {
		t.Error("LinearFreq = false, want true (flags bit 0 set)")
	}
	if song.Speed != 6 || song.Tempo != 125 {
		t.Errorf("Speed=%d Tempo=%d, want 6, 125", song.Speed, song.Tempo)
	}
	if song.numPatterns() != 0 || len(song.Instruments) != 0 {
		t.Errorf("numPatterns()=%d len(Instruments)=%d, want 0, 0", song.numPatterns(), len(song.Instruments))
	}
}

func TestLoadXMAmigaPeriodsWhenLinearFlagUnset(t *testing.T) {
	song, err := LoadXM(buildMinimalXM(t, 4, 0))
	if err != nil {
		t.Fatalf("LoadXM() error = %v", err)
	}
	if song.LinearFreq {
		t.Error("LinearFreq = true, want false (flags bit 0 unset)")
	}
}

func TestLoadXMRejectsBadMagic(t *testing.T) {
	data := buildMinimalXM(t, 4, 0)
	copy(data[:17], "Not An XM File!!!")
	if _, err := LoadXM(data); err == nil {
		t.Fatal("expected an error for a bad XM magic string")
	}
}

func TestLoadXMRejectsUnsupportedVersion(t *testing.T) {
	data := buildMinimalXM(t, 4, 0)
	binary.LittleEndian.PutUint16(data[17+20+1+20:], 0x0200)
	if _, err := LoadXM(data); err == nil {
		t.Fatal("expected an error for an unsupported XM version")
	}
}

func TestReadXMCellUncompressedNoteReadsAllFiveFields(t *testing.T) {
	// High bit clear: a legacy-format cell with all five fields always
	// present, in note/instrument/volume/effect/param order.
	raw := []byte{49, 3, 0x40, 0x0C, 10}
	pb := bytes.NewReader(raw)
	var cell note
	if err := readXMCell(pb, &cell); err != nil {
		t.Fatalf("readXMCell() error = %v", err)
	}
	if cell.Pitch != playerNote(49+11) {
		t.Errorf("Pitch = %v, want %v", cell.Pitch, playerNote(49+11))
	}
	if cell.Sample != 3 {
		t.Errorf("Sample = %d, want 3", cell.Sample)
	}
	if cell.Volume != 0x40 {
		t.Errorf("Volume = %d, want 0x40", cell.Volume)
	}
	if cell.Effect != 0x0C || cell.Param != 10 {
		t.Errorf("Effect=%d Param=%d, want 0x0C, 10", cell.Effect, cell.Param)
	}
}

func TestReadXMCellCompressedNoteOffFlagsOnlyPresentFields(t *testing.T) {
	// High bit set, only the "note present" bit (0x01) on: a note-only
	// cell where instrument/volume/effect/param are all absent.
	raw := []byte{0x81, 97}
	pb := bytes.NewReader(raw)
	var cell note
	if err := readXMCell(pb, &cell); err != nil {
		t.Fatalf("readXMCell() error = %v", err)
	}
	if cell.Pitch != noteKeyOff {
		t.Errorf("Pitch = %v, want noteKeyOff (XM note 97)", cell.Pitch)
	}
	if cell.Sample != 0 {
		t.Errorf("Sample = %d, want 0 (field absent)", cell.Sample)
	}
	if cell.Volume != noNoteVolume {
		t.Errorf("Volume = %d, want noNoteVolume (field absent)", cell.Volume)
	}
}

func TestReadXMCellEmptyCellLeavesNoteUnset(t *testing.T) {
	raw := []byte{0x80} // compressed, no fields flagged present
	pb := bytes.NewReader(raw)
	var cell note
	if err := readXMCell(pb, &cell); err != nil {
		t.Fatalf("readXMCell() error = %v", err)
	}
	if cell.Pitch != noteNone {
		t.Errorf("Pitch = %v, want noteNone", cell.Pitch)
	}
	if cell.Volume != noNoteVolume {
		t.Errorf("Volume = %d, want noNoteVolume", cell.Volume)
	}
}

func TestBuildXMEnvelopeTruncatesAtTwelvePoints(t *testing.T) {
	raw := make([]uint16, 12*2)
	for i := range raw {
		raw[i] = uint16(i)
	}
	env := buildXMEnvelope(raw, 200, 1, 0, 2, byte(EnvelopeOn))
	if len(env.Points) != 12 {
		t.Errorf("len(Points) = %d, want 12 (clamped)", len(env.Points))
	}
	if env.Points[0].X != 0 || env.Points[0].Y != 1 {
		t.Errorf("Points[0] = %+v, want {0, 1}", env.Points[0])
	}
}
