// Package models defines the data shared between the scanner, the execution
// engine and the components that turn their results into tests.
package models

import "fmt"

// OptionKind distinguishes short (-h) from long (--help) options.
type OptionKind string

const (
	OptionShort OptionKind = "short"
	OptionLong  OptionKind = "long"
)

// UsageKeyword marks a probe case built from an option the utility does not
// declare; its output is expected to be a usage message.
const UsageKeyword = "usage"

// Valid reports whether k is a known option kind.
func (k OptionKind) Valid() bool {
	return k == OptionShort || k == OptionLong
}

// OptionDefinition describes an option that can be smoke-tested: the literal
// option token and a keyword expected in the text the option is documented
// with (and usually in the output it produces).
type OptionDefinition struct {
	Kind    OptionKind `yaml:"kind"`
	Value   string     `yaml:"value"`
	Keyword string     `yaml:"keyword"`
}

// Flag returns the option as typed on a command line.
func (d OptionDefinition) Flag() string {
	if d.Kind == OptionLong {
		return "--" + d.Value
	}
	return "-" + d.Value
}

// String implements fmt.Stringer.
func (d OptionDefinition) String() string {
	return fmt.Sprintf("%s (%s)", d.Flag(), d.Keyword)
}
