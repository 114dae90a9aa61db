package ft2engine

// Tap padding sizes from spec.md §3. MaxLeftTaps samples of padding sit
// immediately before index 0 of a sample's data; MaxRightTaps samples of
// padding sit immediately after the last valid sample. Both are
// addressable without bounds checks so the mixer's inner loop never has
// to branch on the loop seam.
const (
	MaxLeftTaps  = 16
	MaxRightTaps = 8
)

// LoopType selects how a sample's loop region is traversed.
type LoopType int

const (
	LoopNone LoopType = iota
	LoopForward
	LoopPingPong
)

// Sample is a piece of decoded PCM plus the scratch tap regions the
// mixer needs for branchless interpolation (spec.md §3/§4.1). Field
// names for the "musical" attributes mirror the teacher's own Sample
// struct (Name, Length, FineTune, Volume, LoopStart, LoopLen, C4Speed)
// seen across mod.go, s3m.go and helpers_test.go.
type Sample struct {
	Name string

	Is16Bit bool
	// Data8/Data16 are the padded backing stores: MaxLeftTaps samples of
	// left-edge padding, then Length samples of real data, then
	// MaxRightTaps samples of right-edge padding. Exactly one of the two
	// is non-nil for a given sample, matching the Voice invariant in
	// spec.md §3. Use Data8()/Data16() to get the logical (unpadded)
	// window.
	data8  []int8
	data16 []int16

	Length    int
	LoopType  LoopType
	LoopStart int
	LoopLen   int

	Volume       int // 0-64
	Panning      int // 0-255, centred at 128
	RelativeNote int // -48..71
	FineTune     int // -128..127, scaled by /8 when applied
	C4Speed      int // S3M/XM sample playback rate at middle-C

	// fixedPos/fixedSmp/isFixed implement the fix/unfix invariant of
	// spec.md §3: a fixed sample's right tap region has been rewritten in
	// place, and the original bytes are parked here until unfix restores
	// them.
	isFixed  bool
	fixedPos int
	fixedSmp8  [MaxRightTaps]int8
	fixedSmp16 [MaxRightTaps]int16
}

// NewSample8/NewSample16 allocate a sample with tap padding reserved
// around the logical data and copy pcm in. Mirrors the allocate-then-copy
// shape of the teacher's mod.go/s3m.go loaders, generalized to carry the
// padding spec.md §4.1 requires.
func NewSample8(pcm []int8) *Sample {
	s := &Sample{Length: len(pcm)}
	s.data8 = make([]int8, MaxLeftTaps+len(pcm)+MaxRightTaps)
	copy(s.data8[MaxLeftTaps:], pcm)
	s.sanitize()
	return s
}

func NewSample16(pcm []int16) *Sample {
	s := &Sample{Length: len(pcm), Is16Bit: true}
	s.data16 = make([]int16, MaxLeftTaps+len(pcm)+MaxRightTaps)
	copy(s.data16[MaxLeftTaps:], pcm)
	s.sanitize()
	return s
}

// Data8/Data16 return the logical (unpadded) data window, e.g. for
// loaders that want to mutate sample data post-load (trimming, DC
// offset fixes) before fix() is ever called.
func (s *Sample) Data8() []int8 {
	if s.data8 == nil {
		return nil
	}
	return s.data8[MaxLeftTaps : MaxLeftTaps+s.Length]
}

func (s *Sample) Data16() []int16 {
	if s.data16 == nil {
		return nil
	}
	return s.data16[MaxLeftTaps : MaxLeftTaps+s.Length]
}

// at8/at16 index the padded store with an offset relative to the start
// of the logical data, so negative offsets reach into the left taps and
// offsets >= Length reach into the right taps.
func (s *Sample) at8(i int) int8   { return s.data8[MaxLeftTaps+i] }
func (s *Sample) setAt8(i int, v int8) { s.data8[MaxLeftTaps+i] = v }
func (s *Sample) at16(i int) int16 { return s.data16[MaxLeftTaps+i] }
func (s *Sample) setAt16(i int, v int16) { s.data16[MaxLeftTaps+i] = v }

// sanitize clamps out-of-range fields and drops degenerate loops, per
// the §4.1 sanitize operation and the clamping rules of §7
// (InvalidParameter is clamped, never surfaced).
func (s *Sample) sanitize() {
	if s.Volume > 64 {
		s.Volume = 64
	}
	if s.Volume < 0 {
		s.Volume = 0
	}
	if s.RelativeNote < -48 {
		s.RelativeNote = -48
	}
	if s.RelativeNote > 71 {
		s.RelativeNote = 71
	}
	if s.LoopStart+s.LoopLen > s.Length {
		dx := s.LoopStart + s.LoopLen - s.Length
		s.LoopStart -= dx
		if s.LoopStart < 0 {
			s.LoopStart = 0
		}
		if s.LoopStart+s.LoopLen > s.Length {
			dx = s.LoopStart + s.LoopLen - s.Length
			s.LoopLen -= dx
		}
	}
	if s.LoopLen < 2 {
		s.LoopLen = 0
		s.LoopType = LoopNone
	}
}

// IsFixed reports whether the sample's right tap region currently holds
// rewritten (not source) data.
func (s *Sample) IsFixed() bool { return s.isFixed }

// fix rewrites the tap regions so the mixer's inner loop never has to
// special-case the loop seam or the sample start, per spec.md §4.1.
// A no-op on an already-fixed sample, or a sample with no backing data.
func (s *Sample) fix() {
	if s.isFixed {
		return
	}
	if s.data8 == nil && s.data16 == nil {
		return
	}

	loopEnd := s.LoopStart + s.LoopLen
	s.fixedPos = loopEnd
	if s.LoopType == LoopNone {
		s.fixedPos = s.Length
	}

	if s.Is16Bit {
		s.fixLeft16()
		for i := 0; i < MaxRightTaps; i++ {
			s.fixedSmp16[i] = s.at16(s.fixedPos + i)
		}
		s.fixRight16(loopEnd)
	} else {
		s.fixLeft8()
		for i := 0; i < MaxRightTaps; i++ {
			s.fixedSmp8[i] = s.at8(s.fixedPos + i)
		}
		s.fixRight8(loopEnd)
	}

	s.isFixed = true
}

func (s *Sample) fixLeft8() {
	for i := 1; i <= MaxLeftTaps; i++ {
		switch s.LoopType {
		case LoopNone:
			s.setAt8(-i, s.at8(0))
		case LoopForward:
			idx := s.LoopStart + mod(s.LoopLen-i, s.LoopLen)
			s.setAt8(-i, s.at8(idx))
		case LoopPingPong:
			s.setAt8(-i, pingPongSample8(s, -i))
		}
	}
}

func (s *Sample) fixLeft16() {
	for i := 1; i <= MaxLeftTaps; i++ {
		switch s.LoopType {
		case LoopNone:
			s.setAt16(-i, s.at16(0))
		case LoopForward:
			idx := s.LoopStart + mod(s.LoopLen-i, s.LoopLen)
			s.setAt16(-i, s.at16(idx))
		case LoopPingPong:
			s.setAt16(-i, pingPongSample16(s, -i))
		}
	}
}

func (s *Sample) fixRight8(loopEnd int) {
	switch s.LoopType {
	case LoopNone:
		for i := 0; i < MaxRightTaps; i++ {
			s.setAt8(s.Length+i, s.at8(s.Length-1))
		}
	case LoopForward:
		for i := 0; i < MaxRightTaps; i++ {
			idx := s.LoopStart + mod(i, s.LoopLen)
			s.setAt8(loopEnd+i, s.at8(idx))
		}
	case LoopPingPong:
		for i := 0; i < MaxRightTaps; i++ {
			s.setAt8(loopEnd+i, pingPongSample8(s, s.LoopLen+i))
		}
	}
}

func (s *Sample) fixRight16(loopEnd int) {
	switch s.LoopType {
	case LoopNone:
		for i := 0; i < MaxRightTaps; i++ {
			s.setAt16(s.Length+i, s.at16(s.Length-1))
		}
	case LoopForward:
		for i := 0; i < MaxRightTaps; i++ {
			idx := s.LoopStart + mod(i, s.LoopLen)
			s.setAt16(loopEnd+i, s.at16(idx))
		}
	case LoopPingPong:
		for i := 0; i < MaxRightTaps; i++ {
			s.setAt16(loopEnd+i, pingPongSample16(s, s.LoopLen+i))
		}
	}
}

// pingPongSample{8,16} runs a bouncing cursor through [LoopStart, loopEnd)
// starting at offset 0 == LoopStart, for `rel` steps (may be negative),
// and returns the sample found there. Used to fill both tap regions for
// ping-pong loops per spec.md §4.1.
func pingPongSample8(s *Sample, rel int) int8 {
	idx := bouncedIndex(s.LoopLen, rel)
	return s.at8(s.LoopStart + idx)
}

func pingPongSample16(s *Sample, rel int) int16 {
	idx := bouncedIndex(s.LoopLen, rel)
	return s.at16(s.LoopStart + idx)
}

// bouncedIndex maps a (possibly negative, possibly large) relative step
// count onto [0, loopLen) by reflecting at both ends, the discrete
// equivalent of a ping-pong cursor.
func bouncedIndex(loopLen, rel int) int {
	if loopLen <= 0 {
		return 0
	}
	period := 2 * loopLen
	r := mod(rel, period)
	if r < loopLen {
		return r
	}
	return period - 1 - r
}

func mod(a, b int) int {
	if b <= 0 {
		return 0
	}
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// unfix restores the right tap region from fixedSmp and clears isFixed.
// A no-op on an already-unfixed sample (§4.1 failure semantics: invariant
// violations are no-ops, not errors).
func (s *Sample) unfix() {
	if !s.isFixed {
		return
	}
	if s.Is16Bit {
		for i := 0; i < MaxRightTaps; i++ {
			s.setAt16(s.fixedPos+i, s.fixedSmp16[i])
		}
	} else {
		for i := 0; i < MaxRightTaps; i++ {
			s.setAt8(s.fixedPos+i, s.fixedSmp8[i])
		}
	}
	s.isFixed = false
}
