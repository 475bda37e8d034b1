package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/zeusync/replica/pkg/generic"
)

// FrameDelimiter terminates every frame on the wire.
const FrameDelimiter = '\n'

var framePool = generic.NewPool(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) { b.Reset() },
)

// EncodeFrame serializes v as one newline-terminated JSON frame.
func EncodeFrame(v any) ([]byte, error) {
	buf := framePool.Get()
	defer framePool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode appends the delimiter itself.
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// WriteFrame encodes v and writes it to w in a single call.
func WriteFrame(w io.Writer, v any) error {
	data, err := EncodeFrame(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ScanFrames is a bufio.SplitFunc yielding one frame per newline. A trailing
// carriage return is dropped and blank lines are skipped. Bytes after the last
// newline are held until more data arrives or the stream ends.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for {
		if atEOF && start >= len(data) {
			return len(data), nil, nil
		}
		i := bytes.IndexByte(data[start:], FrameDelimiter)
		if i < 0 {
			if atEOF {
				if frame := bytes.TrimSpace(data[start:]); len(frame) > 0 {
					return len(data), frame, nil
				}
				return len(data), nil, nil
			}
			// Request more data, discarding any blank lines already consumed.
			return start, nil, nil
		}
		frame := bytes.TrimRight(data[start:start+i], "\r")
		start += i + 1
		if len(bytes.TrimSpace(frame)) > 0 {
			return start, frame, nil
		}
	}
}

// NewFrameScanner wraps r in a scanner that yields frames up to maxFrameSize bytes.
func NewFrameScanner(r io.Reader, maxFrameSize int) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	if maxFrameSize <= 0 {
		maxFrameSize = bufio.MaxScanTokenSize
	}
	initial := 4096
	if maxFrameSize < initial {
		initial = maxFrameSize
	}
	scanner.Buffer(make([]byte, 0, initial), maxFrameSize)
	scanner.Split(ScanFrames)
	return scanner
}
