// Package iojson reads and writes JSON for command line input and output.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Error is the JSON shape of a failed command.
type Error struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// MarshalError renders an Error. If data cannot be marshaled a minimal
// document carrying the marshal failure is returned instead.
func MarshalError(msg string, data map[string]any) string {
	bits, err := json.MarshalIndent(Error{Message: msg, Data: data}, "", "  ")
	if err != nil {
		msgBytes, _ := json.Marshal(msg)
		errBytes, _ := json.Marshal(err.Error())
		return fmt.Sprintf(`{"message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
	}
	return string(bits)
}

// WriteWith writes obj as indented JSON to w.
func WriteWith(w io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write calls WriteWith with [os.Stdout].
func Write(obj any) error {
	return WriteWith(os.Stdout, obj)
}
