// Package pattern implements argument patterns for bot commands.
//
// A pattern is the ordered list of arguments a command expects. Parse checks
// the words following a command name against a pattern and converts them to
// positional values.
package pattern

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind is the kind of an argument.
type Kind int

const (
	// String is any single word.
	String Kind = iota
	// Number is a word which parses as a floating-point number.
	Number
	// Full is all remaining words joined with spaces. It must be the last
	// argument in a pattern.
	Full
	// Enum is a word which exactly equals one of a fixed set of strings.
	Enum
)

// Arg describes one argument of a pattern.
type Arg struct {
	// Kind is the kind of the argument.
	Kind Kind
	// Set is the set of allowed words for Enum arguments.
	Set []string
	// Name is the name of the argument, for display only.
	Name string
	// Optional indicates that the argument may be absent.
	// Every argument following an optional one must also be optional.
	Optional bool
}

// Pattern is an ordered list of arguments.
type Pattern []Arg

// Of builds a pattern from a shorthand description of each argument.
// Each element may be "string", "number", "full", a []string giving an
// enumeration, or an Arg.
func Of(args ...any) (Pattern, error) {
	p := make(Pattern, 0, len(args))
	for i, a := range args {
		switch a := a.(type) {
		case Arg:
			a.Set = slices.Clone(a.Set)
			p = append(p, a)
		case []string:
			p = append(p, Arg{Kind: Enum, Set: slices.Clone(a)})
		case string:
			k, ok := kinds[a]
			if !ok {
				return nil, &PatternError{Index: i, Reason: fmt.Sprintf("unknown argument kind %q", a)}
			}
			p = append(p, Arg{Kind: k})
		default:
			return nil, &PatternError{Index: i, Reason: fmt.Sprintf("can't use %T as an argument", a)}
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustOf is like Of but panics if the pattern is invalid.
func MustOf(args ...any) Pattern {
	p, err := Of(args...)
	if err != nil {
		panic(err)
	}
	return p
}

var kinds = map[string]Kind{
	"string": String,
	"number": Number,
	"full":   Full,
}

// Validate checks that a pattern is well formed.
// The error, if any, is a *PatternError.
func (p Pattern) Validate() error {
	opt := false
	for i, a := range p {
		if opt && !a.Optional {
			return &PatternError{Index: i, Reason: "required argument follows an optional one"}
		}
		opt = opt || a.Optional
		switch a.Kind {
		case String, Number: // do nothing
		case Full:
			if i != len(p)-1 {
				return &PatternError{Index: i, Reason: "argument follows a full argument"}
			}
		case Enum:
			if len(a.Set) == 0 {
				return &PatternError{Index: i, Reason: "enumeration has no members"}
			}
		default:
			return &PatternError{Index: i, Reason: fmt.Sprintf("unknown argument kind %d", a.Kind)}
		}
	}
	return nil
}

// Clone returns a deep copy of the pattern.
func (p Pattern) Clone() Pattern {
	if p == nil {
		return nil
	}
	r := make(Pattern, len(p))
	for i, a := range p {
		a.Set = slices.Clone(a.Set)
		r[i] = a
	}
	return r
}

// Signature renders the pattern for display in help text.
// Optional arguments appear as [name: kind], required named arguments as
// <name: kind>, and required unnamed arguments as (kind).
func (p Pattern) Signature() string {
	var b strings.Builder
	for i, a := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch {
		case a.Optional:
			b.WriteByte('[')
			if a.Name != "" {
				b.WriteString(a.Name)
				b.WriteString(": ")
			}
			b.WriteString(a.Type())
			b.WriteByte(']')
		case a.Name != "":
			b.WriteByte('<')
			b.WriteString(a.Name)
			b.WriteString(": ")
			b.WriteString(a.Type())
			b.WriteByte('>')
		default:
			b.WriteByte('(')
			b.WriteString(a.Type())
			b.WriteByte(')')
		}
	}
	return b.String()
}

// Type renders the argument's kind in a human-readable form.
func (a Arg) Type() string {
	switch a.Kind {
	case String:
		return "string"
	case Number:
		return "number"
	case Full:
		return "full string"
	case Enum:
		return quoteAll(a.Set, " | ")
	default:
		return "Kind(" + strconv.Itoa(int(a.Kind)) + ")"
	}
}

// repr describes an argument in error messages.
func (a Arg) repr() string {
	t := a.Type()
	if a.Name == "" {
		return t
	}
	return a.Name + " (" + t + ")"
}

func quoteAll(s []string, sep string) string {
	q := make([]string, len(s))
	for i, v := range s {
		q[i] = strconv.Quote(v)
	}
	return strings.Join(q, sep)
}

// PatternError is an error in the construction of a pattern.
// It indicates a problem with the bot rather than with user input.
type PatternError struct {
	// Index is the index of the offending argument.
	Index int
	// Reason describes the problem.
	Reason string
}

func (err *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern at argument %d: %s", err.Index, err.Reason)
}
