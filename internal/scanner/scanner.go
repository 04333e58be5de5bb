// Package scanner discovers which options of a utility are declared in its
// mdoc manual-page source and which of those are worth smoke-testing.
//
// Manual pages are treated as a stream of "declare option, describe it,
// declare the next option". A declared option is confirmed when its
// description contains the keyword of the matching registry entry.
package scanner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/smokegen/internal/models"
	"github.com/harrison/smokegen/internal/registry"
)

// DeclarationMarker introduces an option definition in mdoc markup.
const DeclarationMarker = ".It Fl"

// DefaultSections are the manual sections scanned, in order.
var DefaultSections = []string{"1", "8"}

// maxLineLength bounds a single manual-page line.
const maxLineLength = 1024 * 1024

// Logger receives diagnostics about skipped sections.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Scanner scans manual-page sources located under Dir.
type Scanner struct {
	Registry *registry.Registry
	Dir      string   // Directory holding <utility>.<section> files
	Sections []string // Sections scanned in order; DefaultSections if empty
	Logger   Logger   // Optional
}

// New creates a Scanner for the manual pages under dir.
func New(reg *registry.Registry, dir string) *Scanner {
	return &Scanner{
		Registry: reg,
		Dir:      dir,
		Sections: append([]string(nil), DefaultSections...),
	}
}

// Result is the outcome of scanning one utility.
type Result struct {
	// Matched holds the confirmed options in first-declared order.
	Matched []models.OptionDefinition
	// Declared holds every declared option name in order of appearance.
	Declared []string
	// Sections lists the sections that were actually found and scanned.
	Sections []string
}

// Scan returns the registry options that utility declares and documents with
// the option's keyword. Missing section files are skipped.
func (s *Scanner) Scan(utility string) ([]models.OptionDefinition, error) {
	res, err := s.ScanDetailed(utility)
	if err != nil {
		return nil, err
	}
	return res.Matched, nil
}

// ScanDetailed is Scan plus the list of every declared option name.
func (s *Scanner) ScanDetailed(utility string) (*Result, error) {
	if s.Registry == nil {
		return nil, errors.New("scanner has no registry")
	}
	if utility == "" || strings.ContainsRune(utility, filepath.Separator) {
		return nil, fmt.Errorf("invalid utility name %q", utility)
	}

	sections := s.Sections
	if len(sections) == 0 {
		sections = DefaultSections
	}

	st := newState(s.Registry)
	res := &Result{}
	for _, section := range sections {
		path := filepath.Join(s.Dir, utility+"."+section)
		f, err := os.Open(path)
		if err != nil {
			s.debugf("skipping section %s of %s: %v", section, utility, err)
			continue
		}
		err = st.feedAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		res.Sections = append(res.Sections, section)
	}

	res.Matched = st.matched
	res.Declared = st.declared
	return res, nil
}

// ScanReader scans a single manual-page source.
func (s *Scanner) ScanReader(r io.Reader) (*Result, error) {
	if s.Registry == nil {
		return nil, errors.New("scanner has no registry")
	}
	st := newState(s.Registry)
	if err := st.feedAll(r); err != nil {
		return nil, err
	}
	return &Result{Matched: st.matched, Declared: st.declared}, nil
}

func (s *Scanner) debugf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Debugf(format, args...)
	}
}
