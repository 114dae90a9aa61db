//go:build !arm64

package ft2engine

// mixVoice dispatches to the scalar mixing routine on platforms without
// a vectorized path. Mirrors the teacher's own mixer.go/mixer_arm64.go
// build-tag dispatch shape (one function per bit depth in the teacher;
// here a single function that switches on Voice.sample.Is16Bit and
// Voice.loopType internally, see mixer_scalar.go).
func mixVoice(v *Voice, t *interpTables, l, r []float32, n int) int {
	return mixVoiceScalar(v, t, l, r, n)
}
