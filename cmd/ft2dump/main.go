// ft2dump parses a module file and prints its structure to stdout.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	ft2engine "github.com/chriskillpack/ft2engine"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("ft2dump: ")

	if len(os.Args) <= 1 {
		log.Fatal("Missing song filename")
	}

	songFName := os.Args[1]
	songF, err := os.ReadFile(songFName)
	if err != nil {
		log.Fatal(err)
	}

	ft2engine.SetDumpWriter(os.Stdout)

	switch strings.ToLower(filepath.Ext(songFName)) {
	case ".mod":
		_, err = ft2engine.LoadMOD(songF)
	case ".s3m":
		_, err = ft2engine.LoadS3M(songF)
	case ".xm":
		_, err = ft2engine.LoadXM(songF)
	default:
		err = fmt.Errorf("unsupported song %q", songFName)
	}
	if err != nil {
		log.Fatal(err)
	}
}
