package ft2engine

import "sync"

// Engine is the façade of spec.md §3/§5: the single entry point a host
// (CLI player, DAW plugin, editor) talks to. It owns the Song, the
// Replayer, a process-wide-refcounted set of interpolation LUTs, and
// the two SPSC queues that carry data from the audio thread out to a
// control/UI thread without either thread blocking the other. Grounded
// on the teacher's own Player type (the object cmd/modplay and
// cmd/modwav construct and drive via NewPlayer/Tick/Render-shaped
// calls), generalized to the full engine surface spec.md §4.6/§6 names.
type Engine struct {
	// mu is the engine-wide critical section of spec.md §5: every
	// control-thread call (Play, Stop, SetBPM, ...) and the audio
	// thread's Render both take it, so the two threads never observe a
	// half-updated Song/Replayer.
	mu sync.Mutex

	cfg      Config
	song     *Song
	replayer *Replayer
	tables   *interpTables

	scopeQueue *spscRing[scopeFrame]
	midiQueue  *spscRing[midiEvent]

	tickCounter int64

	mixL, mixR []float32 // reused scratch mix buffers, grown on demand

	// scratchL/scratchR hold one voice's mixed output for the duration of
	// a single tick during RenderMultiOut, before it's fanned out into
	// busL/busR and (conditionally) the main buffer; see that method's
	// comment for why a voice can't simply be mixed twice.
	scratchL, scratchR []float32

	// busL/busR are the 15 stereo output buses of spec.md §4.4, grown on
	// demand alongside mixL/mixR. Valid for exactly the frame range of
	// the most recent RenderMultiOut call; read via Buses.
	busL, busR [numBuses][]float32
}

// numBuses is FT2_NUM_OUTPUTS (ft2_plugin_config.h): the fixed count of
// stereo output buses spec.md §4.4's multi-bus mode allocates.
const numBuses = 15

// NewEngine constructs an Engine with the given config but no song
// loaded; Render produces silence until Load succeeds. Acquires the
// process-wide interpolation LUTs (spec.md §5/§9 "Global state");
// Close releases them.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:        cfg,
		tables:     acquireInterpTables(),
		scopeQueue: newSPSCRing[scopeFrame](cfg.ScopeQueueSize),
		midiQueue:  newSPSCRing[midiEvent](cfg.MIDIQueueSize),
	}
}

// Close releases the engine's reference to the process-wide
// interpolation LUTs. Safe to call once after the engine is no longer
// in use.
func (e *Engine) Close() {
	releaseInterpTables()
}

// LoadMOD, LoadS3M and LoadXM parse and install a new song, replacing
// whatever was previously loaded. The swap happens under the critical
// section so Render never sees half of an old song and half of a new
// one (spec.md §5/§8.7).
func (e *Engine) LoadMOD(data []byte) error { return e.load(LoadMOD(data)) }
func (e *Engine) LoadS3M(data []byte) error { return e.load(LoadS3M(data)) }
func (e *Engine) LoadXM(data []byte) error  { return e.load(LoadXM(data)) }

func (e *Engine) load(song *Song, err error) error {
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.song = song
	e.replayer = NewReplayer(song, e.cfg.OutputFreq)
	e.replayer.SetInterpolation(e.cfg.Interpolation)
	return nil
}

// Song returns the currently loaded song, or nil if none has been
// loaded yet.
func (e *Engine) Song() *Song {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.song
}

// Play, Stop, PlayPattern, SetPosition, SetBPM and SetInterpolation
// forward to the Replayer under the critical section, matching
// spec.md §4.6's transport control surface.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.Play()
	}
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.Stop()
	}
}

func (e *Engine) PlayPattern(patternIdx int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.PlayPattern(patternIdx)
	}
}

func (e *Engine) SetPosition(order, row int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.SetPosition(order, row)
	}
}

func (e *Engine) SetBPM(bpm int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.SetBPM(bpm)
	}
}

func (e *Engine) SetInterpolation(mode InterpolationMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Interpolation = mode
	if e.replayer != nil {
		e.replayer.SetInterpolation(mode)
	}
}

// SetMute toggles whether a channel is silenced, per spec.md §4.6's
// transport surface; grounded on the teacher's Player.Mute bitmask
// (cmd/modplay/play.go's 'q'/'s' key handlers) but expressed per-channel
// since channel state already carries its own mute bool.
func (e *Engine) SetMute(ch int, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil || ch < 0 || ch >= len(e.replayer.channels) {
		return
	}
	e.replayer.channels[ch].mute = muted
}

// Muted reports whether a channel is currently silenced.
func (e *Engine) Muted(ch int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil || ch < 0 || ch >= len(e.replayer.channels) {
		return false
	}
	return e.replayer.channels[ch].mute
}

// Render is the audio thread's sole entry point: produce exactly
// nFrames of stereo float32 output, ticking the replayer as many times
// as needed and mixing every active voice (plus each channel's fade-out
// shadow voice) into the result. Matches spec.md §4.6's "render"
// operation and §4.4's per-voice mixing loop.
func (e *Engine) Render(nFrames int) (left, right []float32) {
	if cap(e.mixL) < nFrames {
		e.mixL = make([]float32, nFrames)
		e.mixR = make([]float32, nFrames)
	}
	left = e.mixL[:nFrames]
	right = e.mixR[:nFrames]
	for i := range left {
		left[i], right[i] = 0, 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil {
		return left, right
	}

	produced := 0
	for produced < nFrames {
		if !e.replayer.playing {
			break
		}
		n := e.replayer.Tick()
		if n <= 0 {
			n = 1
		}
		if produced+n > nFrames {
			n = nFrames - produced
		}
		for ch := range e.replayer.voices {
			mixVoice(&e.replayer.voices[ch], e.tables, left[produced:produced+n], right[produced:produced+n], n)
			mixVoice(&e.replayer.fadeVoices[ch], e.tables, left[produced:produced+n], right[produced:produced+n], n)
		}
		e.publishScopeFrame()
		produced += n
	}

	for i := produced; i < nFrames; i++ {
		left[i], right[i] = 0, 0
	}
	return left, right
}

// RenderMultiOut is Render's multi-bus counterpart (spec.md §4.4/§6's
// "render_multi_out"): each channel's voice mixes into the stereo bus
// Config.ChannelBus names for it, and additionally into the main output
// whenever Config.ChannelToMain is set for that channel. A voice can
// only be mixed once per tick - mixVoice advances its playback position
// and volume ramp as a side effect, so mixing it twice (once per
// destination) would double-advance it. Each voice is instead mixed
// once into a scratch buffer, then that result is added into the bus
// and, conditionally, the main buffer. The 15 bus buffers are valid
// read-only via Buses until the next Render/RenderMultiOut call.
func (e *Engine) RenderMultiOut(nFrames int) (left, right []float32) {
	if cap(e.mixL) < nFrames {
		e.mixL = make([]float32, nFrames)
		e.mixR = make([]float32, nFrames)
	}
	if cap(e.scratchL) < nFrames {
		e.scratchL = make([]float32, nFrames)
		e.scratchR = make([]float32, nFrames)
	}
	if cap(e.busL[0]) < nFrames {
		for b := range e.busL {
			e.busL[b] = make([]float32, nFrames)
			e.busR[b] = make([]float32, nFrames)
		}
	}
	left = e.mixL[:nFrames]
	right = e.mixR[:nFrames]
	zero(left)
	zero(right)
	for b := range e.busL {
		e.busL[b] = e.busL[b][:nFrames]
		e.busR[b] = e.busR[b][:nFrames]
		zero(e.busL[b])
		zero(e.busR[b])
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil {
		return left, right
	}

	produced := 0
	for produced < nFrames {
		if !e.replayer.playing {
			break
		}
		n := e.replayer.Tick()
		if n <= 0 {
			n = 1
		}
		if produced+n > nFrames {
			n = nFrames - produced
		}
		sl, sr := e.scratchL[:n], e.scratchR[:n]
		for ch := range e.replayer.voices {
			bus := 0
			if ch < len(e.cfg.ChannelBus) {
				bus = int(e.cfg.ChannelBus[ch])
			}
			if bus < 0 || bus >= numBuses {
				bus = 0
			}
			toMain := ch >= len(e.cfg.ChannelToMain) || e.cfg.ChannelToMain[ch]

			zero(sl)
			zero(sr)
			mixVoice(&e.replayer.voices[ch], e.tables, sl, sr, n)
			mixVoice(&e.replayer.fadeVoices[ch], e.tables, sl, sr, n)

			busL, busR := e.busL[bus][produced:produced+n], e.busR[bus][produced:produced+n]
			mL, mR := left[produced:produced+n], right[produced:produced+n]
			for i := 0; i < n; i++ {
				busL[i] += sl[i]
				busR[i] += sr[i]
				if toMain {
					mL[i] += sl[i]
					mR[i] += sr[i]
				}
			}
		}
		e.publishScopeFrame()
		produced += n
	}

	for i := produced; i < nFrames; i++ {
		left[i], right[i] = 0, 0
	}
	return left, right
}

// Buses returns the 15 stereo bus buffers filled by the most recent
// RenderMultiOut call (spec.md §4.4: "15 stereo bus buffers exposed
// read-only after render"). Callers must not retain or mutate the
// returned slices past the next RenderMultiOut call.
func (e *Engine) Buses() (left, right [numBuses][]float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busL, e.busR
}

// zero fills a float32 slice with silence.
func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

// RenderJam runs spec.md §4.6's "jam-only" path: it steps envelope,
// autovibrato and fadeout timing for whatever voices are currently
// sounding (e.g. from TriggerNote/PlaySample) without sequencing a
// pattern row. Used when a host's transport is stopped but a live
// player/MIDI note is still ringing out.
func (e *Engine) RenderJam(nFrames int) (left, right []float32) {
	if cap(e.mixL) < nFrames {
		e.mixL = make([]float32, nFrames)
		e.mixR = make([]float32, nFrames)
	}
	left = e.mixL[:nFrames]
	right = e.mixR[:nFrames]
	zero(left)
	zero(right)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil {
		return left, right
	}

	produced := 0
	for produced < nFrames {
		n := e.replayer.JamTick()
		if n <= 0 {
			n = 1
		}
		if produced+n > nFrames {
			n = nFrames - produced
		}
		for ch := range e.replayer.voices {
			mixVoice(&e.replayer.voices[ch], e.tables, left[produced:produced+n], right[produced:produced+n], n)
			mixVoice(&e.replayer.fadeVoices[ch], e.tables, left[produced:produced+n], right[produced:produced+n], n)
		}
		produced += n
	}
	return left, right
}

// SetSampleRate changes the rate future Render/RenderMultiOut/RenderJam
// calls produce audio at (spec.md §6's "set_sample_rate"). Per spec.md
// §5 this is not supported mid-render; taking the engine's own critical
// section is what serializes it against an in-flight Render on another
// goroutine.
func (e *Engine) SetSampleRate(hz int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.OutputFreq = hz
	if e.replayer != nil {
		e.replayer.SetOutputFreq(hz)
	}
}

// Reset returns the engine to the freshly-constructed state
// NewEngine(cfg) would produce, per spec.md §6's "reset(handle)":
// unloads the current song and drops all replayer/tick state, keeping
// the engine's config and process-wide interpolation LUTs.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.song = nil
	e.replayer = nil
	e.tickCounter = 0
}

// TriggerNote, ReleaseNote and PlaySample forward a host's live-input
// events to the replayer under the critical section (spec.md §6's
// trigger_note/release_note/play_sample), for MIDI keyboard or
// instrument-editor auditioning independent of pattern playback.
func (e *Engine) TriggerNote(ch int, pitch playerNote, instr, vol, modDepth, pitchBend int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.TriggerNote(ch, pitch, instr, vol, modDepth, pitchBend)
	}
}

func (e *Engine) ReleaseNote(ch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.ReleaseNote(ch)
	}
}

func (e *Engine) PlaySample(ch int, pitch playerNote, instr, smp, vol, offset, length int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.PlaySample(ch, pitch, instr, smp, vol, offset, length)
	}
}

// PlayMode reports the replayer's current Play mode (spec.md §4.3's
// Idle/Edit/Song/Pattern/RecSong/RecPattern), or ModeIdle if no song is
// loaded.
func (e *Engine) PlayMode() PlayMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil {
		return ModeIdle
	}
	return e.replayer.Mode()
}

// PlayFromRow and PlayPatternFromRow forward to the matching Replayer
// methods, letting a host choose the Play mode a transport start enters
// (e.g. ModeRecSong while recording), per spec.md §4.3/§6.
func (e *Engine) PlayFromRow(mode PlayMode, startRow int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.PlayFromRow(mode, startRow)
	}
}

func (e *Engine) PlayPatternFromRow(mode PlayMode, patternIdx, startRow int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer != nil {
		e.replayer.PlayPatternFromRow(mode, patternIdx, startRow)
	}
}

// publishScopeFrame pushes one per-tick scope snapshot to the scope
// queue, dropping it silently if the queue is full (spec.md §7's
// QueueFull is never surfaced).
func (e *Engine) publishScopeFrame() {
	e.tickCounter++
	frame := scopeFrame{Tick: e.tickCounter, Channels: make([]ScopeChannel, len(e.replayer.voices))}
	for i := range e.replayer.voices {
		v := &e.replayer.voices[i]
		frame.Channels[i] = ScopeChannel{
			Active:  v.active,
			Period:  e.replayer.channels[i].realPeriod,
			Volume:  e.replayer.channels[i].volume,
			Panning: e.replayer.channels[i].panning,
		}
	}
	e.scopeQueue.TryPush(frame)
}

// PollScope drains one scope frame for a control/UI thread's display,
// per spec.md §5's scope sync queue. Safe to call from a different
// goroutine than Render, never blocks.
func (e *Engine) PollScope() ([]ScopeChannel, bool) {
	f, ok := e.scopeQueue.TryPop()
	if !ok {
		return nil, false
	}
	return f.Channels, true
}

// PollMIDI drains one outbound MIDI event, per spec.md §5's MIDI-out
// queue.
func (e *Engine) PollMIDI() (midiEvent, bool) {
	return e.midiQueue.TryPop()
}

// NoteDataFor exposes the current pattern cell a channel is playing, for
// a host's pattern-editor/scope display, grounded on the teacher's own
// cmd/modplay/play.go ChannelNoteData usage.
func (e *Engine) NoteDataFor(ch int) ChannelNoteData {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil || ch < 0 || ch >= len(e.replayer.channels) {
		return ChannelNoteData{}
	}
	c := &e.replayer.channels[ch]
	return ChannelNoteData{
		Note:       noteStr(c.note.Pitch),
		Instrument: c.note.Sample,
		Volume:     c.volume,
		Effect:     c.note.Effect,
		Param:      c.note.Param,
	}
}

// Position reports the replayer's current order/row/speed/bpm, for a
// host's transport display (grounded on the teacher's
// Player.Position()/PlayerPosition).
type Position struct {
	Order, Row int
	Speed, BPM int
	Playing    bool
}

func (e *Engine) Position() Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil {
		return Position{}
	}
	return Position{
		Order:   e.replayer.order,
		Row:     e.replayer.row,
		Speed:   e.replayer.song.Speed,
		BPM:     e.replayer.bpm,
		Playing: e.replayer.playing,
	}
}

// NoteDataForRow exposes every channel's pattern cell at a given
// (order, row), straight from the Song's static pattern data rather than
// live channel state, for a host's scrolling pattern display (the
// teacher's cmd/modplay/play.go renderPatternRows scans several rows
// around the playhead this way). Returns nil past the end of the order
// list or into a skip-marker position.
func (e *Engine) NoteDataForRow(order, row int) []ChannelNoteData {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.song == nil {
		return nil
	}
	pat := e.song.orderPattern(order)
	if pat == nil || row < 0 || row >= pat.Rows {
		return nil
	}
	out := make([]ChannelNoteData, e.song.Channels)
	for ch := 0; ch < e.song.Channels; ch++ {
		n := pat.at(row, ch, e.song.Channels)
		out[ch] = ChannelNoteData{
			Note:       noteStr(n.Pitch),
			Instrument: n.Sample,
			Volume:     n.Volume,
			Effect:     n.Effect,
			Param:      n.Param,
		}
	}
	return out
}

// BuildTimeMap dry-runs the currently loaded song and returns its PPQ
// index (spec.md §4.5), for a host that wants to seek without
// replaying from the start.
func (e *Engine) BuildTimeMap() *TimeMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.song == nil {
		return nil
	}
	return BuildTimeMap(e.song, e.cfg.OutputFreq)
}

// ProbeOrderRow clones the live replayer (so the caller's actual
// playback state is untouched) and reports where it will be after n
// more ticks - used by a host previewing a seek before committing to
// it.
func (e *Engine) ProbeOrderRow(ticksAhead int) (order, row int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.replayer == nil {
		return 0, 0
	}
	probe := cloneReplayerForProbe(e.replayer)
	for i := 0; i < ticksAhead && probe.playing; i++ {
		probe.Tick()
	}
	return probe.order, probe.row
}
