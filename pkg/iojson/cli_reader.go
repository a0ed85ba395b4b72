package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// FileReader decodes a JSON document named by a --file flag, or from stdin
// when the flag is unset.
type FileReader[T any] struct {
	// Stdin defaults to os.Stdin.
	Stdin io.Reader

	path string
}

// Flag returns the --file/-f flag bound to the reader.
func (fr *FileReader[T]) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to JSON file, or - for stdin",
		Destination: &fr.path,
	}
}

// Set reports whether the --file flag was given.
func (fr *FileReader[T]) Set() bool {
	return fr.path != ""
}

// Read decodes the input. Unknown fields are rejected.
func (fr *FileReader[T]) Read() (T, error) {
	var input T

	var reader io.Reader
	switch {
	case fr.path != "" && fr.path != "-":
		f, err := os.Open(fr.path)
		if err != nil {
			return input, fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	case fr.Stdin != nil:
		reader = fr.Stdin
	default:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return input, fmt.Errorf("no input provided (stdin is a terminal); use -f or pipe JSON input")
		}
		reader = os.Stdin
	}

	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return input, fmt.Errorf("decode JSON: %w", err)
	}

	return input, nil
}
