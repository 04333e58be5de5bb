package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/smokegen/internal/models"
	"github.com/harrison/smokegen/internal/registry"
)

// values extracts option values for compact assertions.
func values(defs []models.OptionDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Value)
	}
	return out
}

func scanString(t *testing.T, reg *registry.Registry, page string) *Result {
	t.Helper()
	s := New(reg, "")
	res, err := s.ScanReader(strings.NewReader(page))
	require.NoError(t, err)
	return res
}

func TestScanReader(t *testing.T) {
	tests := []struct {
		name         string
		page         string
		wantMatched  []string
		wantDeclared []string
	}{
		{
			name:         "help and version confirmed in order",
			page:         ".It Fl h\nPrint help.\n.It Fl v\nPrint version.\n",
			wantMatched:  []string{"h", "v"},
			wantDeclared: []string{"h", "v"},
		},
		{
			name:         "order follows declarations",
			page:         ".It Fl v\nShow version.\n.It Fl h\nShow help.\n",
			wantMatched:  []string{"v", "h"},
			wantDeclared: []string{"v", "h"},
		},
		{
			name:         "description without keyword",
			page:         ".It Fl v\nBe verbose.\n.It Fl h\nPrint help.\n",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"v", "h"},
		},
		{
			name:         "option with argument",
			page:         ".It Fl h Ar topic\nPrint help about\n.Ar topic .\n",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"h"},
		},
		{
			name:         "option not in registry",
			page:         ".It Fl x\nPrint help.\n",
			wantMatched:  []string{},
			wantDeclared: []string{"x"},
		},
		{
			name:         "empty-argument declaration",
			page:         ".It Fl\nDash alone.\n.It Fl h\nhelp\n",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"h"},
		},
		{
			name:         "marker followed only by a space",
			page:         ".It Fl \n.It Fl v\nversion\n",
			wantMatched:  []string{"v"},
			wantDeclared: []string{"v"},
		},
		{
			name:         "blank declaration ends the previous description",
			page:         ".It Fl h\nPrint a summary.\n.It Fl \nShow help for the empty option.\n.It Fl x\n",
			wantMatched:  []string{},
			wantDeclared: []string{"h", "x"},
		},
		{
			name:         "blank declaration still lets the previous option match",
			page:         ".It Fl h\nPrint help.\n.It Fl \nNothing.\n",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"h"},
		},
		{
			name:         "section heading ends the last description",
			page:         ".It Fl h\nHuman sizes.\n.El\n.Sh SEE ALSO\nThe help(1) command.\n",
			wantMatched:  []string{},
			wantDeclared: []string{"h"},
		},
		{
			name:         "subsection heading ends the last description",
			page:         ".It Fl v\nBe verbose.\n.Ss Versions\nversion numbers\n",
			wantMatched:  []string{},
			wantDeclared: []string{"v"},
		},
		{
			name:         "option confirmed before the next heading",
			page:         ".It Fl h\nPrint help.\n.El\n.Sh EXIT STATUS\nExits 0.\n",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"h"},
		},
		{
			name:         "text before the first declaration is ignored",
			page:         ".Sh DESCRIPTION\nThis mentions help and version.\n.It Fl v\nBe verbose.\n",
			wantMatched:  []string{},
			wantDeclared: []string{"v"},
		},
		{
			name:         "keyword split across lines is joined verbatim",
			page:         ".It Fl h\nprints he\nlp\n",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"h"},
		},
		{
			name:         "redeclared option is tracked independently",
			page:         ".It Fl h\nhelp\n.It Fl h\nhelp again\n",
			wantMatched:  []string{"h", "h"},
			wantDeclared: []string{"h", "h"},
		},
		{
			name:         "no declarations",
			page:         ".Sh NAME\n.Nm true\n",
			wantMatched:  []string{},
			wantDeclared: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scanString(t, registry.Build(), tt.page)
			assert.Equal(t, tt.wantMatched, values(res.Matched))
			assert.Equal(t, tt.wantDeclared, res.Declared)
		})
	}
}

func TestScanReaderLongOptions(t *testing.T) {
	reg, err := registry.BuildWith([]models.OptionDefinition{
		{Kind: models.OptionLong, Value: "help", Keyword: "usage"},
	})
	require.NoError(t, err)

	res := scanString(t, reg, ".It Fl -help\nPrint usage.\n.It Fl help\nusage\n")

	require.Len(t, res.Matched, 1)
	assert.Equal(t, models.OptionLong, res.Matched[0].Kind)
	assert.Equal(t, "--help", res.Matched[0].Flag())
}

func TestScanIsIdempotent(t *testing.T) {
	s := New(registry.Build(), filepath.Join("testdata", "groff"))

	first, err := s.Scan("pwd")
	require.NoError(t, err)
	second, err := s.Scan("pwd")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScanDetailedFromFiles(t *testing.T) {
	s := New(registry.Build(), filepath.Join("testdata", "groff"))

	tests := []struct {
		utility      string
		wantMatched  []string
		wantDeclared []string
		wantSections []string
	}{
		{
			utility:      "date",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"h", "j", "r", "v"},
			wantSections: []string{"1"},
		},
		{
			utility:      "tset",
			wantMatched:  []string{"h"},
			wantDeclared: []string{"I", "h", "V"},
			wantSections: []string{"1"},
		},
		{
			utility:      "pwd",
			wantMatched:  []string{"v", "h"},
			wantDeclared: []string{"L", "v", "h"},
			wantSections: []string{"1", "8"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.utility, func(t *testing.T) {
			res, err := s.ScanDetailed(tt.utility)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMatched, values(res.Matched))
			assert.Equal(t, tt.wantDeclared, res.Declared)
			assert.Equal(t, tt.wantSections, res.Sections)
		})
	}
}

func TestScanMissingPages(t *testing.T) {
	s := New(registry.Build(), t.TempDir())

	matched, err := s.Scan("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestScanSectionOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.1"), []byte(".It Fl h\nhelp\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.8"), []byte(".It Fl v\nversion\n"), 0644))

	s := New(registry.Build(), dir)
	matched, err := s.Scan("tool")
	require.NoError(t, err)
	assert.Equal(t, []string{"h", "v"}, values(matched))

	s.Sections = []string{"8", "1"}
	matched, err = s.Scan("tool")
	require.NoError(t, err)
	assert.Equal(t, []string{"v", "h"}, values(matched))
}

func TestScanDescriptionDoesNotCrossSections(t *testing.T) {
	dir := t.TempDir()
	// The section 8 preamble mentions "help" but must not confirm -h from section 1.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.1"), []byte(".It Fl h\nBe quiet.\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.8"), []byte("help\n.It Fl x\nnothing\n"), 0644))

	matched, err := New(registry.Build(), dir).Scan("tool")
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestScanInvalidInput(t *testing.T) {
	s := New(registry.Build(), t.TempDir())

	_, err := s.Scan("")
	assert.Error(t, err)

	_, err = s.Scan("../etc/passwd")
	assert.Error(t, err)

	_, err = (&Scanner{}).Scan("ls")
	assert.Error(t, err)
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debugf(format string, args ...interface{}) {
	r.lines = append(r.lines, format)
}

func TestScanLogsSkippedSections(t *testing.T) {
	log := &recordingLogger{}
	s := New(registry.Build(), filepath.Join("testdata", "groff"))
	s.Logger = log

	_, err := s.Scan("date")
	require.NoError(t, err)
	assert.Len(t, log.lines, 1, "section 8 of date is missing")
}

func TestIsHeading(t *testing.T) {
	for line, want := range map[string]bool{
		".Sh DESCRIPTION": true,
		".Ss Options":     true,
		".Sh":             true,
		".Shell":          false,
		".It Fl h":        false,
		"Sh DESCRIPTION":  false,
	} {
		assert.Equal(t, want, isHeading(line), line)
	}
}

func TestParseDeclaration(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantKind declarationKind
	}{
		{".It Fl h", "h", declaration},
		{".It Fl r Ar seconds", "r", declaration},
		{".It Fl -help", "-help", declaration},
		{".It Fl", "", emptyDeclaration},
		{".It Fl ", "", blankDeclaration},
		{".It Fl   ", "", blankDeclaration},
		{".It Fl\t", "", blankDeclaration},
		{"Print help.", "", notDeclaration},
		{".It Ar file", "", notDeclaration},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, kind := parseDeclaration(tt.line)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
