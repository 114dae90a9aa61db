// ft2play is a terminal module player, adapted from the teacher's
// cmd/modplay onto the ft2engine.Engine façade.
// Uses portaudio for audio output.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	ft2engine "github.com/chriskillpack/ft2engine"
	"github.com/chriskillpack/ft2engine/cmd/ft2play/internal/config"
	"github.com/gordonklaus/portaudio"
)

var (
	flagHz     = flag.Int("hz", 44100, "output hz")
	flagStart  = flag.Int("start", 0, "starting order (not range-checked)")
	flagReverb = flag.String("reverb", "light", "reverb amount: none, light, medium, silly")
	flagNoUI   = flag.Bool("noui", false, "disable the pattern display")
)

const (
	escape     = "\x1b["
	hideCursor = escape + "?25l"
	showCursor = escape + "?25h"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("ft2play: ")
	flag.Parse()

	if len(flag.Args()) == 0 {
		log.Fatal("Missing module filename")
	}

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	eng := ft2engine.NewEngine(ft2engine.Config{
		Interpolation:  ft2engine.InterpLinear,
		OutputFreq:     *flagHz,
		ScopeQueueSize: 256,
		MIDIQueueSize:  64,
	})
	defer eng.Close()

	if err := loadByExtension(eng, path, data); err != nil {
		log.Fatal(err)
	}

	eng.SetPosition(*flagStart, 0)
	eng.Play()

	reverb, err := config.ReverbFromFlag(*flagReverb, *flagHz)
	if err != nil {
		log.Fatal(err)
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer portaudio.Terminate()

	ap := NewAudioPlayer(eng, reverb, *flagNoUI)
	if err := ap.Run(); err != nil {
		log.Fatal(err)
	}
}

func loadByExtension(eng *ft2engine.Engine, path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mod":
		return eng.LoadMOD(data)
	case ".s3m":
		return eng.LoadS3M(data)
	case ".xm":
		return eng.LoadXM(data)
	default:
		return fmt.Errorf("unsupported module %q", path)
	}
}
