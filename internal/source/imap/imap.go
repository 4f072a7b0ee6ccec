// Package imap enumerates messages in an IMAP mailbox.
//
// URIs take the form imaps://user@host[:port]/MAILBOX (implicit TLS,
// default port 993) or imap://user@host[:port]/MAILBOX (STARTTLS, default
// port 143). The mailbox defaults to INBOX. The location reported for a
// message is "UIDVALIDITY/UID", which changes whenever the server
// renumbers the mailbox.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"iter"
	"net"
	"net/url"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/source"
)

// fetchBatch is the number of UIDs requested per FETCH command.
const fetchBatch = 500

// flagForwarded is the de-facto keyword for forwarded messages.
const flagForwarded imap.Flag = "$Forwarded"

// PasswordFunc returns the password for user at host.
type PasswordFunc func(user, host string) (string, error)

// Options configures the connection.
type Options struct {
	Password  PasswordFunc
	TLSConfig *tls.Config
}

// Endpoint is a parsed IMAP source URI.
type Endpoint struct {
	TLS     bool
	User    string
	Host    string
	Addr    string
	Mailbox string
}

// ParseURI parses an imap:// or imaps:// source URI.
func ParseURI(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse imap uri %q: %w", raw, err)
	}

	var ep Endpoint
	switch strings.ToLower(u.Scheme) {
	case source.SchemeIMAPS:
		ep.TLS = true
	case source.SchemeIMAP:
	default:
		return Endpoint{}, fmt.Errorf("not an imap uri: %q", raw)
	}

	if u.User == nil || u.User.Username() == "" {
		return Endpoint{}, fmt.Errorf("imap uri %q has no user", raw)
	}
	ep.User = u.User.Username()

	ep.Host = u.Hostname()
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("imap uri %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		port = "143"
		if ep.TLS {
			port = "993"
		}
	}
	ep.Addr = net.JoinHostPort(ep.Host, port)

	ep.Mailbox = strings.TrimPrefix(u.Path, "/")
	if ep.Mailbox == "" {
		ep.Mailbox = "INBOX"
	}
	return ep, nil
}

// Source is an IMAP enumerator.
type Source struct {
	def  source.Definition
	ep   Endpoint
	opts Options
}

// New returns an enumerator for def.
func New(def source.Definition, opts Options) (*Source, error) {
	ep, err := ParseURI(def.URI)
	if err != nil {
		return nil, err
	}
	if opts.Password == nil {
		return nil, fmt.Errorf("imap source %s: no password provider", def.URI)
	}
	return &Source{def: def, ep: ep, opts: opts}, nil
}

// URI returns the source URI.
func (s *Source) URI() string { return s.def.URI }

// Scan logs in, selects the mailbox and yields every message in UID order.
func (s *Source) Scan(ctx context.Context) iter.Seq2[source.Observation, error] {
	return func(yield func(source.Observation, error) bool) {
		client, err := s.connect()
		if err != nil {
			yield(source.Observation{}, err)
			return
		}
		defer func() { _ = client.Logout().Wait() }()

		sel, err := client.Select(s.ep.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
		if err != nil {
			yield(source.Observation{}, source.Fail(s.def.URI, "select "+s.ep.Mailbox, err))
			return
		}

		search, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
		if err != nil {
			yield(source.Observation{}, source.Fail(s.def.URI, "search", err))
			return
		}
		uids := search.AllUIDs()
		total := len(uids)

		done := 0
		for len(uids) > 0 {
			if err := ctx.Err(); err != nil {
				yield(source.Observation{}, err)
				return
			}
			n := min(fetchBatch, len(uids))
			batch := uids[:n]
			uids = uids[n:]

			bufs, err := client.Fetch(imap.UIDSetNum(batch...), &imap.FetchOptions{
				UID:      true,
				Flags:    true,
				Envelope: true,
			}).Collect()
			if err != nil {
				yield(source.Observation{}, source.Fail(s.def.URI, "fetch", err))
				return
			}

			for _, buf := range bufs {
				done++
				obs := source.Observation{
					Message:  s.toMessage(sel.UIDValidity, buf),
					Progress: float64(done) / float64(total),
				}
				if !yield(obs, nil) {
					return
				}
			}
		}
	}
}

func (s *Source) connect() (*imapclient.Client, error) {
	password, err := s.opts.Password(s.ep.User, s.ep.Host)
	if err != nil {
		return nil, source.Fail(s.def.URI, "password", err)
	}

	clientOpts := &imapclient.Options{TLSConfig: s.opts.TLSConfig}

	var client *imapclient.Client
	if s.ep.TLS {
		client, err = imapclient.DialTLS(s.ep.Addr, clientOpts)
	} else {
		client, err = imapclient.DialStartTLS(s.ep.Addr, clientOpts)
	}
	if err != nil {
		return nil, source.Fail(s.def.URI, "connect "+s.ep.Addr, err)
	}

	if err := client.Login(s.ep.User, password).Wait(); err != nil {
		_ = client.Close()
		return nil, source.Fail(s.def.URI, "login "+s.ep.User, err)
	}
	return client, nil
}

func (s *Source) toMessage(uidValidity uint32, buf *imapclient.FetchMessageBuffer) message.Message {
	var id string
	if buf.Envelope != nil {
		id = source.NormalizeID(buf.Envelope.MessageID)
		if id == "" {
			var from string
			if len(buf.Envelope.From) > 0 {
				from = buf.Envelope.From[0].Addr()
			}
			id = source.FakeID(from, buf.Envelope.Date.String(), buf.Envelope.Subject)
		}
	}
	if id == "" {
		id = source.FakeID(s.def.URI, fmt.Sprint(uidValidity), fmt.Sprint(uint32(buf.UID)))
	}

	return message.Message{
		ID:         id,
		SourceURI:  s.def.URI,
		SourceInfo: fmt.Sprintf("%d/%d", uidValidity, uint32(buf.UID)),
		Labels:     source.DefaultLabels(s.def, Flags(buf.Flags)),
	}
}

// Flags maps IMAP system flags and keywords to source flags.
func Flags(flags []imap.Flag) source.Flags {
	var f source.Flags
	for _, fl := range flags {
		switch imap.Flag(strings.ToLower(string(fl))) {
		case lower(imap.FlagSeen):
			f.Seen = true
		case lower(imap.FlagFlagged):
			f.Flagged = true
		case lower(imap.FlagAnswered):
			f.Replied = true
		case lower(imap.FlagDraft):
			f.Draft = true
		case lower(imap.FlagDeleted):
			f.Trashed = true
		case lower(flagForwarded):
			f.Passed = true
		}
	}
	return f
}

func lower(f imap.Flag) imap.Flag {
	return imap.Flag(strings.ToLower(string(f)))
}
