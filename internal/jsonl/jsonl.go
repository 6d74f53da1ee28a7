// Package jsonl reads and writes newline-delimited JSON files, one record
// per line. Writes replace the target file atomically.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

// maxLine bounds a single record.
const maxLine = 16 << 20

// Read returns each non-empty line of r as a json.RawMessage. A line that is
// not valid JSON fails the read and names its line number.
func Read(r io.Reader) ([]json.RawMessage, error) {
	var records []json.RawMessage
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("line %d: invalid JSON", line)
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning line %d: %w", line+1, err)
	}
	return records, nil
}

// ReadFile opens path and reads its records.
func ReadFile(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Writer encodes records to an underlying writer, one per line.
type Writer struct {
	buf bytes.Buffer
	enc *json.Encoder
	n   int
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	w := &Writer{}
	w.enc = json.NewEncoder(&w.buf)
	return w
}

// Write appends v as one line.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encoding record %d: %w", w.n+1, err)
	}
	w.n++
	return nil
}

// Len returns the number of records written so far.
func (w *Writer) Len() int {
	return w.n
}

// WriteTo copies the encoded records to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	return w.buf.WriteTo(dst)
}

// Commit replaces path with the encoded records. Readers see either the old
// file or the complete new one.
func (w *Writer) Commit(path string) error {
	if err := atomic.WriteFile(path, &w.buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
