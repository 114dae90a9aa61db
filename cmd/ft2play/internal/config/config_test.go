package config

import (
	"testing"

	"github.com/chriskillpack/ft2engine/internal/comb"
)

func TestReverbPassThroughRoundTripsSamples(t *testing.T) {
	r := NewPassThrough(16)

	in := []int16{1, 2, 3, 4}
	n := r.InputSamples(in)
	if n != len(in) {
		t.Fatalf("InputSamples() = %d, want %d", n, len(in))
	}

	out := make([]int16, 4)
	got := r.GetAudio(out)
	if got != 4 {
		t.Fatalf("GetAudio() = %d, want 4", got)
	}
	for i, want := range in {
		if out[i] != want {
			t.Errorf("out[%d] = %d, want %d (pass-through must not alter samples)", i, out[i], want)
		}
	}
}

func TestReverbPassThroughStopsAtBufferCapacity(t *testing.T) {
	r := NewPassThrough(4)

	n := r.InputSamples([]int16{1, 2, 3, 4, 5, 6})
	if n != 4 {
		t.Errorf("InputSamples() over capacity = %d, want 4 (clamped to bufSize)", n)
	}

	n2 := r.InputSamples([]int16{7, 8})
	if n2 != 0 {
		t.Errorf("InputSamples() on a full buffer = %d, want 0", n2)
	}
}

func TestReverbPassThroughWrapsAroundRingBuffer(t *testing.T) {
	r := NewPassThrough(4)

	r.InputSamples([]int16{1, 2, 3})
	out := make([]int16, 3)
	r.GetAudio(out)

	// writePos is now at 3; feeding 3 more samples must wrap past bufSize.
	r.InputSamples([]int16{4, 5, 6})
	out2 := make([]int16, 3)
	n := r.GetAudio(out2)
	if n != 3 {
		t.Fatalf("GetAudio() after wraparound = %d, want 3", n)
	}
	for i, want := range []int16{4, 5, 6} {
		if out2[i] != want {
			t.Errorf("out2[%d] = %d, want %d", i, out2[i], want)
		}
	}
}

func TestReverbPassThroughGetAudioOnEmptyBufferReturnsZero(t *testing.T) {
	r := NewPassThrough(8)
	out := make([]int16, 4)
	if n := r.GetAudio(out); n != 0 {
		t.Errorf("GetAudio() on an empty buffer = %d, want 0", n)
	}
}

func TestReverbFromFlagKnownSettings(t *testing.T) {
	for _, name := range []string{"none", "light", "medium", "silly"} {
		r, err := ReverbFromFlag(name, 44100)
		if err != nil {
			t.Errorf("ReverbFromFlag(%q) error = %v, want nil", name, err)
		}
		if r == nil {
			t.Errorf("ReverbFromFlag(%q) returned a nil Reverber", name)
		}
	}
}

func TestReverbFromFlagNoneIsPassThrough(t *testing.T) {
	r, err := ReverbFromFlag("none", 44100)
	if err != nil {
		t.Fatalf("ReverbFromFlag(\"none\") error = %v", err)
	}
	if _, ok := r.(*ReverbPassThrough); !ok {
		t.Errorf("ReverbFromFlag(\"none\") = %T, want *ReverbPassThrough", r)
	}
}

func TestReverbFromFlagMediumIsCombFixed(t *testing.T) {
	r, err := ReverbFromFlag("medium", 44100)
	if err != nil {
		t.Fatalf("ReverbFromFlag(\"medium\") error = %v", err)
	}
	if _, ok := r.(*comb.CombFixed); !ok {
		t.Errorf("ReverbFromFlag(\"medium\") = %T, want *comb.CombFixed", r)
	}
}

func TestReverbFromFlagUnknownSettingReturnsError(t *testing.T) {
	_, err := ReverbFromFlag("bogus", 44100)
	if err == nil {
		t.Error("ReverbFromFlag(\"bogus\") should return an error")
	}
}
