// ft2wav renders a module to a WAV file.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	ft2engine "github.com/chriskillpack/ft2engine"
	"github.com/chriskillpack/ft2engine/wav"
	flag "github.com/spf13/pflag"
)

const outputHz = 44100
const renderFrames = 2048

func main() {
	log.SetFlags(0)
	log.SetPrefix("ft2wav: ")

	wavOut := flag.StringP("wav", "o", "", "output WAVE file path")
	interp := flag.StringP("interp", "i", "linear", "interpolation: nearest, linear, quadratic, cubic, sinc")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Missing module filename")
	}
	if *wavOut == "" {
		log.Fatal("No -wav option provided")
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	eng := ft2engine.NewEngine(ft2engine.Config{
		Interpolation:  interpFromFlag(*interp),
		OutputFreq:     outputHz,
		ScopeQueueSize: 256,
		MIDIQueueSize:  64,
	})
	defer eng.Close()

	if err := loadByExtension(eng, flag.Arg(0), data); err != nil {
		log.Fatal(err)
	}
	eng.Play()

	wavF, err := os.Create(*wavOut)
	if err != nil {
		log.Fatal(err)
	}
	defer wavF.Close()

	wavW, err := wav.NewWriter(wavF, outputHz)
	if err != nil {
		log.Fatal(err)
	}
	defer wavW.Finish()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)

	playing := true
	go func() {
		<-sigch
		playing = false
	}()

	song := eng.Song()
	lastOrder := -1
	for playing && eng.Position().Playing {
		left, right := eng.Render(renderFrames)
		if err := wavW.WriteFrame(left, right); err != nil {
			log.Fatal(err)
		}

		if pos := eng.Position(); pos.Order != lastOrder {
			fmt.Printf("%d/%d\n", pos.Order+1, len(song.Orders))
			lastOrder = pos.Order
		}
	}
	eng.Stop()
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

func interpFromFlag(s string) ft2engine.InterpolationMode {
	switch s {
	case "nearest":
		return ft2engine.InterpNearest
	case "quadratic":
		return ft2engine.InterpQuadratic
	case "cubic":
		return ft2engine.InterpCubic
	case "sinc":
		return ft2engine.InterpSinc
	default:
		return ft2engine.InterpLinear
	}
}
