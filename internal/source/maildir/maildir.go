// Package maildir enumerates messages stored in a maildir.
//
// Messages in new/ have never been seen by a MUA; messages in cur/ carry
// their state in the ":2,FLAGS" info suffix of the file name. The location
// reported for a message is its unique name without the info suffix, so a
// message keeps its location when its flags change or it moves from new/
// to cur/.
package maildir

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/labelsync/internal/message"
	"github.com/roach88/labelsync/internal/source"
)

// Source is a maildir enumerator.
type Source struct {
	def  source.Definition
	root string
}

// New returns an enumerator for def, whose URI must be maildir://PATH.
func New(def source.Definition) (*Source, error) {
	u, err := url.Parse(def.URI)
	if err != nil {
		return nil, fmt.Errorf("parse maildir uri %q: %w", def.URI, err)
	}
	if u.Scheme != source.SchemeMaildir {
		return nil, fmt.Errorf("not a maildir uri: %q", def.URI)
	}
	root := u.Path
	if u.Host != "" {
		// maildir://relative/path
		root = filepath.Join(u.Host, u.Path)
	}
	if root == "" {
		return nil, fmt.Errorf("maildir uri %q has no path", def.URI)
	}
	return &Source{def: def, root: root}, nil
}

// URI returns the source URI.
func (s *Source) URI() string { return s.def.URI }

type entry struct {
	dir  string
	name string
}

// Scan yields the messages of new/ and cur/, ordered by unique name.
func (s *Source) Scan(ctx context.Context) iter.Seq2[source.Observation, error] {
	return func(yield func(source.Observation, error) bool) {
		entries, err := s.list()
		if err != nil {
			yield(source.Observation{}, source.Fail(s.def.URI, "list", err))
			return
		}

		for i, e := range entries {
			if err := ctx.Err(); err != nil {
				yield(source.Observation{}, err)
				return
			}
			msg, err := s.read(e)
			if err != nil {
				yield(source.Observation{}, source.Fail(s.def.URI, "read "+e.name, err))
				return
			}
			obs := source.Observation{
				Message:  msg,
				Progress: float64(i+1) / float64(len(entries)),
			}
			if !yield(obs, nil) {
				return
			}
		}
	}
}

func (s *Source) list() ([]entry, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s.root)
	}

	var entries []entry
	for _, dir := range []string{"new", "cur"} {
		des, err := os.ReadDir(filepath.Join(s.root, dir))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, de := range des {
			if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
				continue
			}
			entries = append(entries, entry{dir: dir, name: de.Name()})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		ui, uj := unique(entries[i].name), unique(entries[j].name)
		if ui != uj {
			return ui < uj
		}
		return entries[i].dir < entries[j].dir
	})
	return entries, nil
}

func (s *Source) read(e entry) (message.Message, error) {
	f, err := os.Open(filepath.Join(s.root, e.dir, e.name))
	if err != nil {
		return message.Message{}, err
	}
	defer f.Close()

	h, err := source.ReadHeader(bufio.NewReader(f))
	if err != nil {
		return message.Message{}, err
	}

	var flags source.Flags
	if e.dir == "cur" {
		flags = source.MaildirFlags(info(e.name))
	}

	return message.Message{
		ID:         h.ID,
		SourceURI:  s.def.URI,
		SourceInfo: unique(e.name),
		Labels:     source.DefaultLabels(s.def, flags),
	}, nil
}

// unique strips the ":2,..." info suffix from a maildir file name.
func unique(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[:i]
	}
	return name
}

// info returns the flag letters of a "unique:2,FLAGS" file name.
func info(name string) string {
	i := strings.LastIndex(name, ":2,")
	if i < 0 {
		return ""
	}
	return name[i+3:]
}
