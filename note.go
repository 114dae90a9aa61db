package ft2engine

// playerNote is a note index, 12+octave*12+semitone (C-0 == 12), the internal pitch
// representation every loader (MOD periods, S3M nibble notes, XM note
// bytes) converges on. This mirrors the teacher's own playerNote type
// used by mod.go's periodToPlayerNote and s3m.go's nibble decoding.
type playerNote int

const (
	// noteNone means "no note in this cell".
	noteNone playerNote = 0
	// noteKeyOff is FT2's note 97, row value 0x61: release the playing
	// instrument's envelope/fadeout instead of starting a new note.
	noteKeyOff playerNote = 97
	// noNoteVolume marks a Note.Volume cell that has no volume-column
	// effect at all, as distinct from an explicit volume of 0.
	noNoteVolume = 0xFF
)

// note is one cell of a pattern: the note, instrument, volume-column
// byte and effect/param pair FT2 stores per channel per row. Field names
// mirror the teacher's own `note` struct referenced throughout
// helpers_test.go/player_test.go (Pitch, Sample, Volume, Effect, Param).
type note struct {
	Pitch  playerNote
	Sample int
	Volume int
	Effect byte
	Param  byte
}

// initNotePattern allocates a fully blank pattern of nChannels columns by
// rowsPerPattern rows, with every cell's Volume defaulted to
// noNoteVolume (no volume-column effect), matching FT2's convention that
// an empty cell never implies volume zero.
func initNotePattern(nChannels int) []note {
	pat := make([]note, rowsPerPattern*nChannels)
	for i := range pat {
		pat[i].Volume = noNoteVolume
	}
	return pat
}

// ChannelNoteData is the read-only view of one pattern cell exposed to a
// host (pattern editor, scope display) via Engine.NoteDataFor, grounded
// on the teacher's cmd/modplay/play.go ChannelNoteData usage (Note,
// Instrument, Volume, Effect, Param).
type ChannelNoteData struct {
	Note       string
	Instrument int
	Volume     int
	Effect     byte
	Param      byte
}

var noteNames = []string{
	"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-",
}

// noteStr turns a playerNote into its FT2-style textual form, e.g. "C-4"
// or "F#3"; "^^." for key-off and "..." for no note. Grounded on
// player.go's noteStr/notes table.
func noteStr(n playerNote) string {
	switch {
	case n == noteNone:
		return "..."
	case n == noteKeyOff:
		return "^^."
	}
	oct := int(n-12) / 12
	idx := int(n-12) % 12
	if idx < 0 || idx >= len(noteNames) {
		return "???"
	}
	return noteNames[idx] + string(rune('0'+oct))
}
