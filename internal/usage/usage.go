// SPDX-License-Identifier: MPL-2.0

// Package usage owns peru's command-line grammar: the usage text shown to
// users and the parser that turns argv into an argmodel.Args.
package usage

// Short is the usage section alone, printed when a command line does not fit
// the grammar.
const Short = `Usage:
  peru sync [-fqv]
  peru build [-fqv] [<rules>...]
  peru reup [-qv] [<modules>...]
  peru override [list | add <module> <path> | delete <module>]
  peru copy [-fqv] <target> [<dest>]
  peru clean [-f]
  peru (help | --help | --version)`

// Text is the full help text printed by "peru help", "peru --help", and by
// any command line that parses but selects no command.
const Text = Short + `

Commands:
  sync      apply imports to the working copy
  build     run build rules in the working copy
  reup      get updated module fields from remotes
  override  replace a remote module with a local copy
  copy      make a copy of the outputs of a build target
  clean     delete imports from the working copy

Options:
  -f --force    overwrite existing files
  -q --quiet    don't print anything
  -v --verbose  print all the things
  -h --help     show help
`

// Grammar names. Command words are plain, options carry their long dashes,
// capture groups are angle-bracketed.
const (
	Force   = "--force"
	Quiet   = "--quiet"
	Verbose = "--verbose"
	Help    = "--help"
	Version = "--version"

	Rules   = "<rules>"
	Modules = "<modules>"
	Module  = "<module>"
	Path    = "<path>"
	Target  = "<target>"
	Dest    = "<dest>"
)

type (
	// Capture is a positional placeholder in a usage line.
	Capture struct {
		Name     string
		Optional bool
		// Repeated captures take every remaining positional (possibly none).
		Repeated bool
	}

	// Pattern is one alternative of the grammar.
	Pattern struct {
		// Words are the literal command words that must open the positionals.
		Words []string
		// Captures follow the words, in order.
		Captures []Capture
		// Options lists the options allowed with this pattern.
		Options []string
		// Requires lists options that must be set for the pattern to fit.
		Requires []string
	}
)

var fqv = []string{Force, Quiet, Verbose}

// Grammar is the ordered list of patterns; the first pattern that fits wins.
var Grammar = []Pattern{
	{Words: []string{"sync"}, Options: fqv},
	{Words: []string{"build"}, Captures: []Capture{{Name: Rules, Repeated: true}}, Options: fqv},
	{Words: []string{"reup"}, Captures: []Capture{{Name: Modules, Repeated: true}}, Options: []string{Quiet, Verbose}},
	{Words: []string{"override"}},
	{Words: []string{"override", "list"}},
	{Words: []string{"override", "add"}, Captures: []Capture{{Name: Module}, {Name: Path}}},
	{Words: []string{"override", "delete"}, Captures: []Capture{{Name: Module}}},
	{Words: []string{"copy"}, Captures: []Capture{{Name: Target}, {Name: Dest, Optional: true}}, Options: fqv},
	{Words: []string{"clean"}, Options: []string{Force}},
	{Words: []string{"help"}},
	{Requires: []string{Help}},
	{Requires: []string{Version}},
}
