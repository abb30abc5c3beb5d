// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package stream

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxFrameBytes bounds a single SSE line.
const DefaultMaxFrameBytes = 1 << 20

// Frame is one dispatched text/event-stream block.
type Frame struct {
	Event    string // value of the last "event" field, "" if none
	Data     []byte // "data" fields joined by '\n'
	HasData  bool
	ID       string // value of the last "id" field
	HasID    bool
	Retry    time.Duration
	Comments int // number of ':' comment lines
}

// IsKeepAlive reports whether the frame carried only comments.
func (f *Frame) IsKeepAlive() bool {
	return f.Comments > 0 && f.Event == "" && !f.HasData && !f.HasID && f.Retry == 0
}

func (f *Frame) empty() bool {
	return f.Comments == 0 && f.Event == "" && !f.HasData && !f.HasID && f.Retry == 0
}

// Decoder splits a text/event-stream body into frames.
//
// Lines may end in LF, CR or CRLF. A leading UTF-8 BOM is skipped. A frame is
// dispatched on a blank line; a partial frame at EOF is discarded.
type Decoder struct {
	sc    *bufio.Scanner
	first bool
}

// NewDecoder reads frames from r. maxLine <= 0 uses DefaultMaxFrameBytes.
func NewDecoder(r io.Reader, maxLine int) *Decoder {
	if maxLine <= 0 {
		maxLine = DefaultMaxFrameBytes
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	sc.Split(scanLines)
	return &Decoder{sc: sc, first: true}
}

// Next returns the next frame. It returns io.EOF when the stream ends
// cleanly and bufio.ErrTooLong for oversized lines.
func (d *Decoder) Next() (Frame, error) {
	var f Frame
	var data bytes.Buffer

	for d.sc.Scan() {
		line := d.sc.Bytes()
		if d.first {
			line = bytes.TrimPrefix(line, []byte("\xEF\xBB\xBF"))
			d.first = false
		}

		if len(line) == 0 {
			if f.empty() {
				continue
			}
			if f.HasData {
				f.Data = append([]byte(nil), data.Bytes()...)
			}
			return f, nil
		}

		if line[0] == ':' {
			f.Comments++
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			f.Event = value
		case "data":
			if f.HasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			f.HasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				f.ID = value
				f.HasID = true
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
				f.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := d.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

func splitField(line []byte) (field, value string) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), ""
	}
	v := line[i+1:]
	if len(v) > 0 && v[0] == ' ' {
		v = v[1:]
	}
	return string(line[:i]), string(v)
}

// scanLines is a bufio.SplitFunc accepting LF, CR and CRLF terminators.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// CR: need one more byte to tell CR from CRLF
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
