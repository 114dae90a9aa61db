package comb

// Reverber is the interface every reverb implementation in this package
// satisfies, so a host (cmd/ft2play's AudioPlayer, cmd/ft2play/internal/config's
// ReverbFromFlag) can swap between a ring-buffered, a growable, or a
// pass-through reverb without caring which one it holds.
type Reverber interface {
	// InputSamples feeds interleaved stereo PCM in. The comb filters
	// return how many more samples must be fed before GetAudio starts
	// returning reverb-processed output; the pass-through in
	// cmd/ft2play/internal/config returns how many samples it accepted.
	InputSamples(in []int16) int
	// GetAudio copies up to len(out) processed samples into out and
	// returns how many were written.
	GetAudio(out []int16) int
}

var (
	_ Reverber = (*CombAdd)(nil)
	_ Reverber = (*CombFixed)(nil)
)

// Comb models a simple Comb filter reverb module. At construction time it takes
// a block of sample data and applies reverb to it. It cannot be fed any more
// sample data after this.
type Comb struct {
	delayOffset int
	readPos     int
	audio       []int16
}

func NewComb(in []int16, decay float32, delayMs, sampleRate int) *Comb {
	c := &Comb{
		delayOffset: (delayMs * sampleRate) / 1000,
		audio:       make([]int16, len(in)),
	}

	copy(c.audio, in)
	for i := 0; i < len(in)/2-c.delayOffset; i++ {
		c.audio[(i+c.delayOffset)*2+0] += int16(float32(c.audio[i*2+0]) * decay)
		c.audio[(i+c.delayOffset)*2+1] += int16(float32(c.audio[i*2+1]) * decay)
	}

	return c
}

func (c *Comb) GetAudio(out []int16) int {
	n := len(out)
	if c.readPos+n > len(c.audio) {
		n = len(c.audio) - c.readPos
	}
	copy(out, c.audio[c.readPos:c.readPos+n])
	c.readPos += n
	return n
}

// CombAdd is a Comb filter can be fed audio data incrementally
// It does not discard used samples and has no upper bound on memory used
type CombAdd struct {
	Comb
	readPos  int
	writePos int
	decay    float32
}

// initialSize is in sample pairs
func NewCombAdd(initialSize int, decay float32, delayMs, sampleRate int) *CombAdd {
	c := &CombAdd{
		Comb: Comb{
			delayOffset: (delayMs * sampleRate) / 1000,
			audio:       make([]int16, 0, initialSize*2),
		},
		decay: decay,
	}

	return c
}

// InputSamples feeds the CombAdd filter with new sample data. Once enough
// samples have been accumulated the filter will start applying reverb to audio
// data. The exact number of samples is determined by delay and sample rate.
// InputSamples returns the number of samples required before reverb can be
// applied. The functions takes a copy of the provided audio data.
func (c *CombAdd) InputSamples(in []int16) int {
	c.audio = append(c.audio, in...)
	if len(c.audio) > c.delayOffset*2 {
		ns := len(c.audio) - (c.delayOffset*2 + c.writePos)
		for i := 0; i < ns; i++ {
			c.audio[i+c.delayOffset*2+c.writePos] += int16(float32(c.audio[i+c.writePos]) * c.decay)
		}
		c.writePos += ns
	}
	rem := c.delayOffset*2 - len(c.audio)
	if rem < 0 {
		rem = 0
	}
	return rem
}

// GetAudio puts processed audio data into the out slice. It returns the number
// of samples put into out.
func (c *CombAdd) GetAudio(out []int16) int {
	wanted := len(out)
	have := len(c.audio) - c.readPos
	if wanted > have {
		wanted = have
	}
	if wanted > 0 {
		copy(out, c.audio[c.readPos:c.readPos+wanted])
		c.readPos += wanted
	}
	return wanted
}

// CombFixed is a comb filter reverb over a fixed-capacity ring buffer: unlike
// CombAdd it never grows past bufferSize sample pairs, discarding the oldest
// processed audio as new audio arrives. This is the shape a long-running
// player (cmd/ft2play) needs - CombAdd's unbounded growth is fine for
// cmd/ft2wav's one-shot whole-song render but would leak for a live session.
type CombFixed struct {
	delayOffset int
	decay       float32

	buf      []int16 // ring buffer of sample pairs, len(buf) == bufferSize*2
	writePos int      // next slot to receive a freshly decayed sample
	readPos  int      // next slot GetAudio will hand out
	filled   int      // samples written so far, saturates at len(buf)
	pending  int      // total samples fed so far, updated at the end of each InputSamples call
}

// NewCombFixed allocates a CombFixed holding up to bufferSize sample pairs.
func NewCombFixed(bufferSize int, decay float32, delayMs, sampleRate int) *CombFixed {
	return &CombFixed{
		delayOffset: (delayMs * sampleRate) / 1000,
		decay:       decay,
		buf:         make([]int16, bufferSize*2),
	}
}

// InputSamples feeds the ring buffer with new sample data, applying the
// decayed-echo add once enough delay has accumulated, and returns how many
// more samples are needed before reverb starts (0 once warmed up).
func (c *CombFixed) InputSamples(in []int16) int {
	n := len(c.buf)
	for i := 0; i < len(in); i++ {
		pos := c.writePos % n
		c.buf[pos] = in[i]
		if c.pending >= c.delayOffset*2 {
			src := (c.writePos - c.delayOffset*2) % n
			if src < 0 {
				src += n
			}
			c.buf[pos] += int16(float32(c.buf[src]) * c.decay)
		}
		c.writePos++
		if c.filled < n {
			c.filled++
		}
	}
	c.pending += len(in)

	rem := c.delayOffset*2 - c.pending
	if rem < 0 {
		rem = 0
	}
	return rem
}

// GetAudio copies up to len(out) processed samples out of the ring buffer.
func (c *CombFixed) GetAudio(out []int16) int {
	have := c.writePos - c.readPos
	if have > c.filled {
		have = c.filled
	}
	wanted := len(out)
	if wanted > have {
		wanted = have
	}
	n := len(c.buf)
	for i := 0; i < wanted; i++ {
		out[i] = c.buf[(c.readPos+i)%n]
	}
	c.readPos += wanted
	return wanted
}
