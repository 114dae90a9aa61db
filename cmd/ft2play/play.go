package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	ft2engine "github.com/chriskillpack/ft2engine"
	"github.com/chriskillpack/ft2engine/internal/comb"
	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"
)

var (
	white   = color.New(color.FgWhite).SprintfFunc()
	cyan    = color.New(color.FgCyan).SprintfFunc()
	magenta = color.New(color.FgMagenta).SprintfFunc()
	yellow  = color.New(color.FgYellow).SprintfFunc()
	blue    = color.New(color.FgHiBlue).SprintFunc()
	green   = color.New(color.FgGreen).SprintfFunc()
)

const (
	scratchBufferSize = 10 * 1024
	audioBufferSize   = 756 / 2
	patternRowsBefore = 4
	patternRowsAfter  = 4
	uiLineCount       = 13
)

type displayMode int

const (
	displayModeWide displayMode = iota
	displayModeNarrow
	displayModeCompact
)

// AudioPlayer encapsulates audio playback and UI rendering, adapted from
// the teacher's cmd/modplay/play.go AudioPlayer onto the
// ft2engine.Engine façade: player.GenerateAudio's int16 mono buffer
// becomes engine.Render's float32 L/R pair, converted to int16 here
// before it reaches the reverb stage (which still operates on int16
// the way internal/comb always has).
type AudioPlayer struct {
	engine  *ft2engine.Engine
	reverb  comb.Reverber
	stream  *portaudio.Stream
	scratch []int16

	// UI state
	uiWriter        io.Writer
	selectedChannel int
	soloChannel     int
	lastPos         ft2engine.Position
	displayMode     displayMode
	formatter       *noteFormatter

	// Lifecycle management
	ctx            context.Context
	cancelFn       context.CancelFunc
	wg             sync.WaitGroup
	stopOnce       sync.Once
	terminated     bool
	keyboardDoneCh chan struct{}
}

// noteFormatter handles formatting note data for display
type noteFormatter struct {
	mode displayMode
}

// NewAudioPlayer creates a new AudioPlayer instance
func NewAudioPlayer(engine *ft2engine.Engine, reverb comb.Reverber, noUI bool) *AudioPlayer {
	var uiw io.Writer = os.Stdout
	if noUI {
		uiw = io.Discard
	}

	mode := determineDisplayMode(engine.Song().Channels)
	ctx, cancel := context.WithCancel(context.Background())

	return &AudioPlayer{
		engine:         engine,
		reverb:         reverb,
		scratch:        make([]int16, scratchBufferSize),
		uiWriter:       uiw,
		soloChannel:    -1,
		displayMode:    mode,
		formatter:      &noteFormatter{mode: mode},
		ctx:            ctx,
		cancelFn:       cancel,
		keyboardDoneCh: make(chan struct{}),
	}
}

// Run starts the audio playback and UI rendering
func (ap *AudioPlayer) Run() error {
	if err := ap.setupAudioStream(); err != nil {
		return err
	}

	ap.setupSignalHandlers()
	ap.setupKeyboardHandlers()

	fmt.Fprint(ap.uiWriter, hideCursor)

	for {
		select {
		case <-ap.ctx.Done():
			goto exit
		default:
		}

		pos := ap.engine.Position()
		if shouldUpdateUI(ap.lastPos, pos) {
			ap.renderUI(pos)
			ap.lastPos = pos
		}
	}

exit:
	fmt.Fprint(ap.uiWriter, showCursor)

	select {
	case <-ap.keyboardDoneCh:
	case <-time.After(500 * time.Millisecond):
	}

	ap.wg.Wait()
	return nil
}

// setupAudioStream creates and starts the audio stream
func (ap *AudioPlayer) setupAudioStream() error {
	stream, err := portaudio.OpenDefaultStream(
		0, 2,
		float64(*flagHz),
		audioBufferSize,
		ap.streamCallback,
	)
	if err != nil {
		return err
	}

	ap.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	return nil
}

// streamCallback is called by PortAudio to generate audio samples
func (ap *AudioPlayer) streamCallback(out []int16) {
	n := len(out) / 2
	sc := ap.scratch[:n*2]

	if ap.engine.Position().Playing {
		left, right := ap.engine.Render(n)
		for i := 0; i < n; i++ {
			sc[i*2] = floatToInt16(left[i])
			sc[i*2+1] = floatToInt16(right[i])
		}
	} else {
		clear(sc)
	}

	ap.reverb.InputSamples(sc)
	n2 := ap.reverb.GetAudio(out)

	if n2 == 0 {
		ap.engine.Stop()
	}
}

func floatToInt16(f float32) int16 {
	v := f * 32767
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

// setupSignalHandlers handles OS signals like SIGINT
func (ap *AudioPlayer) setupSignalHandlers() {
	sigch := make(chan os.Signal, 5)
	signal.Notify(sigch, syscall.SIGINT)

	ap.wg.Add(1)
	go func() {
		defer ap.wg.Done()
		for {
			select {
			case <-ap.ctx.Done():
				return
			case sig := <-sigch:
				if sig == syscall.SIGINT {
					ap.Stop()
					return
				}
			}
		}
	}()
}

// setupKeyboardHandlers handles keyboard input
func (ap *AudioPlayer) setupKeyboardHandlers() {
	ap.wg.Add(1)
	go func() {
		defer ap.wg.Done()
		keyboard.Listen(func(key keys.Key) (stop bool, err error) {
			if key.Code == keys.CtrlC || key.Code == keys.Escape {
				ap.Stop()
				return true, nil
			}
			ap.handleKeyPress(key)
			return false, nil
		})
		close(ap.keyboardDoneCh)
	}()
}

// handleKeyPress processes a single key press
func (ap *AudioPlayer) handleKeyPress(key keys.Key) {
	channels := ap.engine.Song().Channels

	switch key.Code {
	case keys.Left:
		ap.selectedChannel = max(ap.selectedChannel-1, 0)

	case keys.Right:
		ap.selectedChannel = min(ap.selectedChannel+1, channels-1)

	case keys.Space:
		if ap.engine.Position().Playing {
			ap.engine.Stop()
		} else {
			ap.engine.Play()
		}

	case keys.RuneKey:
		if len(key.Runes) > 0 {
			switch key.Runes[0] {
			case 'q':
				ap.engine.SetMute(ap.selectedChannel, !ap.engine.Muted(ap.selectedChannel))

			case 's':
				if ap.soloChannel != ap.selectedChannel {
					ap.soloChannel = ap.selectedChannel
					for i := 0; i < channels; i++ {
						ap.engine.SetMute(i, i != ap.selectedChannel)
					}
				} else {
					ap.soloChannel = -1
					for i := 0; i < channels; i++ {
						ap.engine.SetMute(i, false)
					}
				}
			}
		}
	}
}

// Stop performs clean shutdown
func (ap *AudioPlayer) Stop() {
	ap.stopOnce.Do(func() {
		ap.engine.Stop()
		ap.cancelFn()

		if ap.stream != nil {
			ap.stream.Stop()
			ap.stream.Close()
		}

		if !ap.terminated {
			portaudio.Terminate()
			ap.terminated = true
		}

		fmt.Fprint(ap.uiWriter, showCursor)
	})
}

// renderUI renders the complete UI
func (ap *AudioPlayer) renderUI(pos ft2engine.Position) {
	song := ap.engine.Song()
	ap.renderHeader(song, pos)
	ap.renderInstrumentStatus(song)
	ap.renderChannelHeaders(song)
	ap.renderPatternRows(pos)

	ncl := song.Channels / 2
	fmt.Fprintf(ap.uiWriter, escape+"%dF", uiLineCount+ncl)
}

// renderHeader renders the title and playback info
func (ap *AudioPlayer) renderHeader(song *ft2engine.Song, pos ft2engine.Position) {
	if len(song.Title) > 0 {
		fmt.Fprint(ap.uiWriter, song.Title+" ")
	}
	fmt.Fprintf(ap.uiWriter, "%s %02X/3F %s %02X/%02X %s %02d %s %3d\n",
		blue("row"), pos.Row,
		blue("pat"), pos.Order, len(song.Orders),
		blue("speed"), pos.Speed,
		blue("bpm"), pos.BPM)
}

// renderInstrumentStatus shows which instruments are playing on each channel
func (ap *AudioPlayer) renderInstrumentStatus(song *ft2engine.Song) {
	for i := 0; i < song.Channels; i++ {
		nd := ap.engine.NoteDataFor(i)
		tc := ' '
		if !ap.engine.Muted(i) && nd.Instrument != 0 {
			tc = '□'
		}
		outs := fmt.Sprintf("%2d%c ", i+1, tc)
		if nd.Instrument > 0 && nd.Instrument <= len(song.Samples) {
			outs += song.Samples[nd.Instrument-1].Name
		}
		fmt.Fprintf(ap.uiWriter, "%-32s", outs)
		if i&1 == 1 {
			fmt.Fprintln(ap.uiWriter)
		}
	}
	fmt.Fprintln(ap.uiWriter)
	fmt.Fprintln(ap.uiWriter)
}

// renderChannelHeaders renders the channel number headers
func (ap *AudioPlayer) renderChannelHeaders(song *ft2engine.Song) {
	fmt.Fprint(ap.uiWriter, "        ")
	for i := 0; i < min(song.Channels, 8); i++ {
		const chanstr = "%2d       "
		if i == ap.selectedChannel {
			fmt.Fprint(ap.uiWriter, green(chanstr, i+1))
			continue
		}
		fmt.Fprintf(ap.uiWriter, chanstr, i+1)
	}
	fmt.Fprintln(ap.uiWriter)
}

// renderPatternRows renders the pattern data rows
func (ap *AudioPlayer) renderPatternRows(pos ft2engine.Position) {
	for i := -patternRowsBefore; i <= patternRowsAfter; i++ {
		ap.renderNoteRow(pos.Order, pos.Row+i, i == 0)
	}
}

// renderNoteRow renders a single row of note data
func (ap *AudioPlayer) renderNoteRow(order, row int, isCurrent bool) {
	nd := ap.engine.NoteDataForRow(order, row)
	if nd == nil {
		fmt.Fprintln(ap.uiWriter)
		return
	}

	if isCurrent {
		fmt.Fprint(ap.uiWriter, ">>> ")
	} else {
		fmt.Fprint(ap.uiWriter, "    ")
	}

	maxChannels := 8
	if ap.displayMode == displayModeWide {
		maxChannels = 4
	}

	for ni, n := range nd {
		if ni >= maxChannels {
			if ni == maxChannels {
				fmt.Fprint(ap.uiWriter, " ...")
			}
			break
		}
		ap.formatter.formatNote(ni, n, ap.uiWriter)
	}

	if isCurrent {
		fmt.Fprint(ap.uiWriter, " <<<")
	}
	fmt.Fprintln(ap.uiWriter)
}

// formatNote formats and writes a single note to the writer
func (nf *noteFormatter) formatNote(ni int, n ft2engine.ChannelNoteData, w io.Writer) {
	switch nf.mode {
	case displayModeWide:
		nf.formatWide(ni, n, w)
	case displayModeNarrow:
		nf.formatNarrow(ni, n, w)
	case displayModeCompact:
		nf.formatCompact(ni, n, w)
	}
}

// formatWide formats a note in wide display mode (shows all details)
func (nf *noteFormatter) formatWide(ni int, n ft2engine.ChannelNoteData, w io.Writer) {
	fmt.Fprint(w, white("%s", n.Note), " ", cyan("%2X", n.Instrument), " ")
	if n.Volume != 0xFF {
		fmt.Fprint(w, green("%02X", n.Volume))
	} else {
		fmt.Fprint(w, green(".."))
	}
	fmt.Fprint(w, " ", magenta("%02X", n.Effect), yellow("%02X", n.Param))

	if ni < 3 {
		fmt.Fprint(w, "|")
	}
}

// formatNarrow formats a note in narrow display mode (omits instrument and volume)
func (nf *noteFormatter) formatNarrow(ni int, n ft2engine.ChannelNoteData, w io.Writer) {
	fmt.Fprint(w, white("%s", n.Note), " ", magenta("%02X", n.Effect), yellow("%02X", n.Param))
	if ni < 7 {
		fmt.Fprint(w, "|")
	}
}

// formatCompact formats a note in compact display mode
func (nf *noteFormatter) formatCompact(ni int, n ft2engine.ChannelNoteData, w io.Writer) {
	// Not implemented yet
}

// determineDisplayMode selects the appropriate display mode based on channel count
func determineDisplayMode(channels int) displayMode {
	if channels <= 4 {
		return displayModeWide
	}
	return displayModeNarrow
}

// shouldUpdateUI determines if the UI needs to be redrawn
func shouldUpdateUI(last, current ft2engine.Position) bool {
	return last.Order != current.Order || last.Row != current.Row
}
