package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// Header is the subset of an RFC 5322 header the sources need. Bodies are
// never read.
type Header struct {
	ID      string
	Status  string
	XStatus string
}

// ReadHeader parses a message header from r, consuming input up to and
// including the blank line that ends it (or EOF). A message without
// Message-Id gets a FakeID derived from its From, Date, Subject and To
// fields.
func ReadHeader(r *bufio.Reader) (Header, error) {
	block, err := readHeaderBlock(r)
	if err != nil {
		return Header{}, err
	}
	return ParseHeader(block)
}

// ParseHeader parses a header block that may or may not carry its
// terminating blank line.
func ParseHeader(block []byte) (Header, error) {
	block = append(bytes.TrimRight(block, "\r\n"), "\r\n\r\n"...)
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(block)))
	if err != nil {
		return Header{}, fmt.Errorf("parse header: %w", err)
	}
	mh := mail.Header{Header: message.Header{Header: th}}

	id, err := mh.MessageID()
	if err != nil || id == "" {
		id = NormalizeID(th.Get("Message-Id"))
	}
	if id == "" {
		id = FakeID(th.Get("From"), th.Get("Date"), th.Get("Subject"), th.Get("To"))
	}

	return Header{
		ID:      NormalizeID(id),
		Status:  th.Get("Status"),
		XStatus: th.Get("X-Status"),
	}, nil
}

// readHeaderBlock returns the raw header lines up to the first empty line.
func readHeaderBlock(r *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimRight(line, "\r\n")) == 0 && (len(line) > 0 || err != nil) {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read header: %w", err)
			}
			return buf.Bytes(), nil
		}
		buf.Write(line)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf.Bytes(), nil
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
}
