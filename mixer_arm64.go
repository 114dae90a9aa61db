//go:build arm64

package ft2engine

// The teacher's own mixer_arm64.go reached for a cgo NEON kernel here;
// that header was never part of this port (no NEON source was carried
// over), so arm64 forwards to the same scalar path as every other
// architecture until a real vectorized kernel is written.
//
// TODO: replace with a NEON-accelerated mixVoiceScalar once one exists.
func mixVoice(v *Voice, t *interpTables, l, r []float32, n int) int {
	return mixVoiceScalar(v, t, l, r, n)
}
