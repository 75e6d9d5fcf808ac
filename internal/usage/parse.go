// SPDX-License-Identifier: MPL-2.0

package usage

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/peru/peru/internal/argmodel"
	"github.com/peru/peru/internal/issue"

	"github.com/spf13/pflag"
)

// ErrNoMatch is wrapped by Parse when argv fits no grammar pattern.
var ErrNoMatch = errors.New("command line does not match usage")

// option binds a grammar option name to its pflag spelling.
type option struct {
	name      string
	long      string
	shorthand string
}

var options = []option{
	{name: Force, long: "force", shorthand: "f"},
	{name: Quiet, long: "quiet", shorthand: "q"},
	{name: Verbose, long: "verbose", shorthand: "v"},
	{name: Help, long: "help", shorthand: "h"},
	{name: Version, long: "version"},
}

// Parse turns argv (without the program name) into an argument model using
// Grammar. Every grammar name is present in the result: words and options as
// booleans, single captures as a string or nil, repeated captures as a list.
//
// A command line that fits no pattern yields an error wrapping ErrNoMatch and
// an issue.PrintableError holding the Short usage text.
func Parse(argv []string) (argmodel.Args, error) {
	return ParseWith(Grammar, argv)
}

// ParseWith is Parse against an explicit grammar.
func ParseWith(grammar []Pattern, argv []string) (argmodel.Args, error) {
	fs := pflag.NewFlagSet("peru", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SetInterspersed(true)
	for _, o := range options {
		fs.BoolP(o.long, o.shorthand, false, "")
	}

	if err := fs.Parse(argv); err != nil {
		return argmodel.Args{}, usageError(err.Error())
	}

	var set []string
	for _, o := range options {
		if fs.Changed(o.long) {
			set = append(set, o.name)
		}
	}
	positionals := fs.Args()

	for _, p := range grammar {
		captured, ok := p.fit(positionals, set)
		if !ok {
			continue
		}
		return argmodel.New(model(grammar, p, set, captured))
	}

	return argmodel.Args{}, usageError(fmt.Sprintf("no usage pattern fits %q", strings.Join(argv, " ")))
}

func usageError(reason string) error {
	return fmt.Errorf("%w: %s: %w", ErrNoMatch, reason, &issue.PrintableError{Msg: Short})
}

// fit checks positionals and set options against the pattern and returns the
// capture values when it fits.
func (p Pattern) fit(positionals, set []string) (map[string]any, bool) {
	for _, name := range set {
		if !slices.Contains(p.Options, name) && !slices.Contains(p.Requires, name) {
			return nil, false
		}
	}
	for _, name := range p.Requires {
		if !slices.Contains(set, name) {
			return nil, false
		}
	}

	if len(positionals) < len(p.Words) || !slices.Equal(positionals[:len(p.Words)], p.Words) {
		return nil, false
	}
	rest := positionals[len(p.Words):]

	captured := make(map[string]any, len(p.Captures))
	for _, c := range p.Captures {
		switch {
		case c.Repeated:
			captured[c.Name] = slices.Clone(rest)
			rest = nil
		case len(rest) > 0:
			captured[c.Name] = rest[0]
			rest = rest[1:]
		case c.Optional:
			captured[c.Name] = nil
		default:
			return nil, false
		}
	}
	if len(rest) > 0 {
		return nil, false
	}
	return captured, true
}

// model fills in every name the grammar knows, so handlers can look up any
// name regardless of which pattern matched.
func model(grammar []Pattern, matched Pattern, set []string, captured map[string]any) map[string]any {
	values := make(map[string]any)
	for _, o := range options {
		values[o.name] = slices.Contains(set, o.name)
	}
	for _, p := range grammar {
		for _, w := range p.Words {
			values[w] = false
		}
		for _, c := range p.Captures {
			if c.Repeated {
				values[c.Name] = []string{}
			} else {
				values[c.Name] = nil
			}
		}
	}
	for _, w := range matched.Words {
		values[w] = true
	}
	for name, v := range captured {
		values[name] = v
	}
	return values
}
