// Package mbox enumerates messages stored in an mbox file.
//
// A message starts at a "From " line that opens the file or follows a blank
// line. The location reported for a message is the byte offset of its
// "From " line. Message state comes from the Status and X-Status headers.
package mbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/source"
)

var fromLine = []byte("From ")

// Source is an mbox enumerator.
type Source struct {
	def  source.Definition
	path string
}

// New returns an enumerator for def, whose URI must be mbox://PATH.
func New(def source.Definition) (*Source, error) {
	u, err := url.Parse(def.URI)
	if err != nil {
		return nil, fmt.Errorf("parse mbox uri %q: %w", def.URI, err)
	}
	if u.Scheme != source.SchemeMbox {
		return nil, fmt.Errorf("not an mbox uri: %q", def.URI)
	}
	path := u.Path
	if u.Host != "" {
		path = filepath.Join(u.Host, u.Path)
	}
	if path == "" {
		return nil, fmt.Errorf("mbox uri %q has no path", def.URI)
	}
	return &Source{def: def, path: path}, nil
}

// URI returns the source URI.
func (s *Source) URI() string { return s.def.URI }

// Scan yields the messages in file order.
func (s *Source) Scan(ctx context.Context) iter.Seq2[source.Observation, error] {
	return func(yield func(source.Observation, error) bool) {
		f, err := os.Open(s.path)
		if err != nil {
			yield(source.Observation{}, source.Fail(s.def.URI, "open", err))
			return
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil {
			yield(source.Observation{}, source.Fail(s.def.URI, "stat", err))
			return
		}
		size := st.Size()

		r := bufio.NewReader(f)
		var (
			offset    int64
			prevBlank = true
			start     int64 = -1
			header    bytes.Buffer
			inHeader  bool
		)

		emit := func(end int64) bool {
			if start < 0 {
				return true
			}
			h, err := source.ParseHeader(header.Bytes())
			if err != nil {
				yield(source.Observation{}, source.Fail(s.def.URI, "parse message at "+strconv.FormatInt(start, 10), err))
				return false
			}
			progress := 1.0
			if size > 0 {
				progress = float64(end) / float64(size)
			}
			obs := source.Observation{
				Message: message.Message{
					ID:         h.ID,
					SourceURI:  s.def.URI,
					SourceInfo: strconv.FormatInt(start, 10),
					Labels:     source.DefaultLabels(s.def, source.MboxFlags(h.Status, h.XStatus)),
				},
				Progress: progress,
			}
			return yield(obs, nil)
		}

		for {
			line, readErr := r.ReadBytes('\n')
			if len(line) > 0 {
				if prevBlank && bytes.HasPrefix(line, fromLine) {
					if err := ctx.Err(); err != nil {
						yield(source.Observation{}, err)
						return
					}
					if !emit(offset) {
						return
					}
					start = offset
					header.Reset()
					inHeader = true
				} else if inHeader {
					if len(bytes.TrimRight(line, "\r\n")) == 0 {
						inHeader = false
					} else {
						header.Write(line)
					}
				}
				prevBlank = len(bytes.TrimRight(line, "\r\n")) == 0
				offset += int64(len(line))
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				yield(source.Observation{}, source.Fail(s.def.URI, "read", readErr))
				return
			}
		}
		emit(offset)
	}
}
