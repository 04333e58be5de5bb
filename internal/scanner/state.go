package scanner

import (
	"bufio"
	"io"
	"strings"

	"github.com/harrison/smokegen/internal/models"
	"github.com/harrison/smokegen/internal/registry"
)

type phase int

const (
	awaitingDeclaration phase = iota
	bufferingDescription
)

// state carries one scan across all sections of a utility.
type state struct {
	reg         *registry.Registry
	phase       phase
	pending     []string // declared names not yet confirmed, oldest first
	description strings.Builder
	matched     []models.OptionDefinition
	declared    []string
}

func newState(reg *registry.Registry) *state {
	return &state{reg: reg}
}

// feedAll consumes one section file.
func (st *state) feedAll(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for sc.Scan() {
		st.feed(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return err
	}
	st.endSection()
	return nil
}

func (st *state) feed(line string) {
	if isHeading(line) {
		// A description never runs past the end of its manual section.
		st.endSection()
		return
	}

	name, kind := parseDeclaration(line)
	switch kind {
	case notDeclaration:
		if st.phase == bufferingDescription {
			st.description.WriteString(line)
		}
	case emptyDeclaration:
		// Zero-width option such as tset(1)'s "-": nothing to register.
	case blankDeclaration:
		// Still an entry boundary. The nameless entry can never be
		// confirmed, so the text that follows it belongs to nobody.
		st.closeOut()
		st.pending = append(st.pending, "")
		st.description.Reset()
		st.phase = bufferingDescription
	case declaration:
		st.closeOut()
		st.pending = append(st.pending, name)
		st.declared = append(st.declared, name)
		st.description.Reset()
		st.phase = bufferingDescription
	}
}

// closeOut confirms the most recently declared option if its description
// holds the registry keyword. A confirmed option is retired from pending.
func (st *state) closeOut() {
	if len(st.pending) == 0 {
		return
	}
	last := st.pending[len(st.pending)-1]
	def, ok := lookup(st.reg, last)
	if !ok || !strings.Contains(st.description.String(), def.Keyword) {
		return
	}
	st.matched = append(st.matched, def)
	st.pending = st.pending[:len(st.pending)-1]
}

// endSection confirms the last option before a section heading or the end of
// the file against the text that follows it, then forgets that text.
func (st *state) endSection() {
	if st.phase == bufferingDescription {
		st.closeOut()
	}
	st.description.Reset()
	st.phase = awaitingDeclaration
}

// lookup maps a declared name to a registry entry. "Fl -help" declares the
// long option "help"; anything else is a short option.
func lookup(reg *registry.Registry, name string) (models.OptionDefinition, bool) {
	kind := models.OptionShort
	if strings.HasPrefix(name, "-") && len(name) > 1 {
		kind = models.OptionLong
		name = name[1:]
	}
	def, ok := reg.Lookup(name)
	if !ok || def.Kind != kind {
		return models.OptionDefinition{}, false
	}
	return def, true
}

type declarationKind int

const (
	notDeclaration declarationKind = iota
	emptyDeclaration // marker ends the line
	blankDeclaration // marker followed by whitespace only
	declaration
)

// isHeading reports whether line opens a new manual section or subsection.
func isHeading(line string) bool {
	for _, macro := range []string{".Sh", ".Ss"} {
		if line == macro || strings.HasPrefix(line, macro+" ") || strings.HasPrefix(line, macro+"\t") {
			return true
		}
	}
	return false
}

// parseDeclaration extracts the option name following DeclarationMarker.
// For ".It Fl r Ar seconds" the name is "r"; the argument is dropped.
func parseDeclaration(line string) (string, declarationKind) {
	idx := strings.Index(line, DeclarationMarker)
	if idx < 0 {
		return "", notDeclaration
	}

	pos := idx + len(DeclarationMarker) + 1
	if pos > len(line) {
		return "", emptyDeclaration
	}

	rest := line[pos:]
	name := rest
	if len(rest) > 1 {
		if sp := strings.IndexByte(rest[1:], ' '); sp >= 0 {
			name = rest[:sp+1]
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", blankDeclaration
	}
	return name, declaration
}
