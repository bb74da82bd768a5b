package pattern

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// Value is a parsed argument value.
// The zero Value is an absent optional argument.
type Value struct {
	s       string
	n       float64
	num     bool
	present bool
}

// Str returns a string value.
func Str(s string) Value {
	return Value{s: s, present: true}
}

// Num returns a number value.
func Num(n float64) Value {
	return Value{n: n, num: true, present: true}
}

// Present reports whether the argument was supplied.
func (v Value) Present() bool {
	return v.present
}

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool {
	return v.num
}

// String returns the value's text. For numbers, it is the formatted number.
// For absent values, it is the empty string.
func (v Value) String() string {
	if v.num {
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	}
	return v.s
}

// Number returns the value as a number. It is zero for absent and
// string values.
func (v Value) Number() float64 {
	return v.n
}

// Equal reports whether two values are identical.
func (v Value) Equal(w Value) bool {
	return v == w
}

// Values is the positional result of parsing a pattern.
// It always has one element per argument in the pattern.
type Values []Value

// String returns the string value at index i, or the empty string if i is out
// of range or the argument is absent.
func (v Values) String(i int) string {
	if i < 0 || i >= len(v) {
		return ""
	}
	return v[i].String()
}

// Number returns the number value at index i, or zero if i is out of range or
// the argument is absent.
func (v Values) Number(i int) float64 {
	if i < 0 || i >= len(v) {
		return 0
	}
	return v[i].Number()
}

// Has reports whether the argument at index i was supplied.
func (v Values) Has(i int) bool {
	return i >= 0 && i < len(v) && v[i].present
}

// Parse checks tokens against a pattern and converts them to values.
// An empty token is treated as absent.
//
// If the pattern itself is invalid, the error is a *PatternError.
// Otherwise, if the tokens don't match the pattern, the error is a
// *ParseError.
func Parse(p Pattern, tokens []string) (Values, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := make(Values, len(p))
	full := false
	filled := 0
	for i, a := range p {
		var cur string
		if i < len(tokens) {
			cur = tokens[i]
		}
		if cur == "" {
			switch {
			case a.Optional:
				continue
			case a.Kind != Full:
				return nil, &ParseError{Kind: MissingArgument, Arg: a}
			}
		}
		switch a.Kind {
		case String:
			r[i] = Str(cur)
		case Number:
			n, ok := number(cur)
			if !ok {
				return nil, &ParseError{Kind: NotANumber, Arg: a, Token: cur}
			}
			r[i] = Num(n)
		case Enum:
			if !member(a.Set, cur) {
				return nil, &ParseError{Kind: NotInSet, Arg: a, Token: cur}
			}
			r[i] = Str(cur)
		case Full:
			full = true
			if i < len(tokens) {
				r[i] = Str(strings.Join(tokens[i:], " "))
			} else {
				r[i] = Str("")
			}
		}
		filled++
	}
	// Skipped optional slots don't absorb their tokens.
	if !full && len(tokens) > filled {
		return nil, &ParseError{Kind: TooManyArguments}
	}
	return r, nil
}

// decimal is the grammar of decimal numerals.
var decimal = regexp.MustCompile(`^[+-]?(?:Infinity|(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?)$`)

// number parses a numeral. It accepts signed decimals with optional
// exponents, signed Infinity, and unsigned 0x, 0o, and 0b integers.
// Surrounding whitespace is ignored, and a blank word is zero.
// Values too large for a float64 become infinities.
func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			if s[2] == '+' || s[2] == '-' {
				return 0, false
			}
			n, ok := new(big.Int).SetString(s[2:], base)
			if !ok {
				return 0, false
			}
			f, _ := new(big.Float).SetInt(n).Float64()
			return f, true
		}
	}
	if !decimal.MatchString(s) {
		return 0, false
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return n, true
}

func member(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ErrorKind is the kind of a parse failure.
type ErrorKind int

const (
	// MissingArgument means a required argument was not supplied.
	MissingArgument ErrorKind = iota + 1
	// NotInSet means a word was not a member of an enumeration.
	NotInSet
	// NotANumber means a word did not parse as a number.
	NotANumber
	// TooManyArguments means there were more words than arguments.
	TooManyArguments
)

func (k ErrorKind) String() string {
	switch k {
	case MissingArgument:
		return "missing argument"
	case NotInSet:
		return "not in set"
	case NotANumber:
		return "not a number"
	case TooManyArguments:
		return "too many arguments"
	default:
		return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseError is a failure to match input against a pattern.
// It indicates a problem with user input.
type ParseError struct {
	// Kind is the kind of failure.
	Kind ErrorKind
	// Arg is the argument which failed to match.
	// It is the zero Arg for TooManyArguments.
	Arg Arg
	// Token is the offending word, if any.
	Token string
}

// Allowed returns the allowed values for a NotInSet error.
func (err *ParseError) Allowed() []string {
	if err.Kind != NotInSet {
		return nil
	}
	return err.Arg.Set
}

func (err *ParseError) Error() string {
	return DefaultMessages.Format(err)
}
