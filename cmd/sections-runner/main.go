// cmd/sections-runner/main.go
//
// Offline harness for the section parser: feed it a saved combat
// transcript and inspect the record the client would store. Useful when a
// service transcript parses unexpectedly.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/encounter-forge/internal/sections"
)

func main() {
	file := flag.String("file", "", "path to a transcript file (defaults to stdin)")
	flag.Parse()

	var data []byte
	var err error
	if strings.TrimSpace(*file) == "" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			die("read stdin: %v", err)
		}
	} else {
		data, err = os.ReadFile(*file)
		if err != nil {
			die("read %s: %v", *file, err)
		}
	}

	parsed := sections.Parse(string(data))
	encoded, err := yaml.Marshal(parsed)
	if err != nil {
		die("encode result: %v", err)
	}
	fmt.Print(string(encoded))
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
