// Package emitter renders executed test cases into ATF-sh test scripts.
package emitter

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"github.com/harrison/smokegen/internal/filelock"
	"github.com/harrison/smokegen/internal/models"
)

//go:embed templates/atf.sh.tmpl
var templateFS embed.FS

// ScriptSuffix is appended to the utility name to form the script file name.
const ScriptSuffix = "_test.sh"

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Emitter writes one test script per utility into Dir.
type Emitter struct {
	Dir     string
	Section string // Manual section mentioned in the script header; optional
	tmpl    *template.Template
}

// New parses the embedded script template. It only fails if the template
// itself is broken.
func New(dir string) (*Emitter, error) {
	tmpl, err := template.New("atf.sh.tmpl").
		Funcs(FuncMap()).
		ParseFS(templateFS, "templates/atf.sh.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse script template: %w", err)
	}
	return &Emitter{Dir: dir, tmpl: tmpl}, nil
}

// FuncMap returns the template functions: slim-sprig plus the ATF helpers.
func FuncMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["atfInline"] = atfInline
	funcs["shquote"] = shquote
	funcs["testName"] = testName
	return funcs
}

type caseView struct {
	Name       string
	Flag       string
	Keyword    string
	Command    string
	Output     string
	ExitStatus int
	TimedOut   bool
}

type scriptView struct {
	Utility string
	Section string
	Cases   []caseView
}

// Render returns the script for utility without writing it.
func (e *Emitter) Render(utility string, cases []models.TestCase) ([]byte, error) {
	view := scriptView{Utility: utility, Section: e.Section}
	used := make(map[string]int, len(cases))
	for _, tc := range cases {
		name := testName(tc.Option)
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		view.Cases = append(view.Cases, caseView{
			Name:       name,
			Flag:       tc.Option.Flag(),
			Keyword:    tc.Option.Keyword,
			Command:    tc.Result.Command,
			Output:     tc.Result.Output,
			ExitStatus: tc.Result.ExitStatus,
			TimedOut:   tc.Result.TimedOut,
		})
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render script for %s: %w", utility, err)
	}
	return buf.Bytes(), nil
}

// Emit writes <Dir>/<utility>_test.sh and returns its path. With no cases
// nothing is written and the path is empty.
func (e *Emitter) Emit(utility string, cases []models.TestCase) (string, error) {
	if len(cases) == 0 {
		return "", nil
	}
	if utility == "" || strings.ContainsRune(utility, filepath.Separator) {
		return "", fmt.Errorf("invalid utility name %q", utility)
	}

	data, err := e.Render(utility, cases)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.Dir, utility+ScriptSuffix)
	if err := filelock.LockAndWrite(path, data, 0755); err != nil {
		return "", fmt.Errorf("failed to write script for %s: %w", utility, err)
	}
	return path, nil
}

// testName derives a shell-safe test case identifier from an option.
// Declared options become "<value>_flag", probe cases "<value>_usage".
func testName(opt models.OptionDefinition) string {
	base := nonIdent.ReplaceAllString(opt.Value, "_")
	if base == "" {
		base = "empty"
	}
	if opt.Kind == models.OptionLong {
		base = "long_" + base
	}
	if opt.Keyword == models.UsageKeyword {
		return base + "_usage"
	}
	return base + "_flag"
}

// atfInline escapes s for use inside atf_check -o inline:"...". Escapes are
// interpreted by atf-sh, so backslashes and control characters are encoded
// first, then the result is made safe for a double-quoted shell word.
func atfInline(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '"':
			b.WriteString(`\"`)
		case '$':
			b.WriteString(`\$`)
		case '`':
			b.WriteString("\\`")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// shquote single-quotes s for the shell.
func shquote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
