package pattern

import (
	"fmt"
	"strconv"
)

// Messages is the set of format strings used to describe parse failures to
// users. Each one takes the arguments documented on its field.
type Messages struct {
	// Missing is used for MissingArgument. It receives the argument's
	// description, e.g. "amount (number)".
	Missing string `toml:"missing"`
	// NotInSet is used for NotInSet. It receives the quoted word and the
	// comma-separated quoted members of the set.
	NotInSet string `toml:"not_in_set"`
	// NotANumber is used for NotANumber. It receives the quoted word.
	NotANumber string `toml:"not_a_number"`
	// TooMany is used for TooManyArguments. It receives no arguments.
	TooMany string `toml:"too_many"`
}

// DefaultMessages is the message table used when none is configured.
var DefaultMessages = Messages{
	Missing:    "Missing %s.",
	NotInSet:   "%s has to be one of %s.",
	NotANumber: "%s is not a number.",
	TooMany:    "You have too many arguments.",
}

// Merge returns m with each empty field replaced by the corresponding field
// of def.
func (m Messages) Merge(def Messages) Messages {
	or := func(s *string, d string) {
		if *s == "" {
			*s = d
		}
	}
	or(&m.Missing, def.Missing)
	or(&m.NotInSet, def.NotInSet)
	or(&m.NotANumber, def.NotANumber)
	or(&m.TooMany, def.TooMany)
	return m
}

// Format renders a parse error using the message table.
// Empty fields of m fall back to DefaultMessages.
func (m Messages) Format(err *ParseError) string {
	m = m.Merge(DefaultMessages)
	switch err.Kind {
	case MissingArgument:
		return fmt.Sprintf(m.Missing, err.Arg.repr())
	case NotInSet:
		return fmt.Sprintf(m.NotInSet, strconv.Quote(err.Token), quoteAll(err.Arg.Set, ", "))
	case NotANumber:
		return fmt.Sprintf(m.NotANumber, strconv.Quote(err.Token))
	case TooManyArguments:
		return m.TooMany
	default:
		return err.Kind.String()
	}
}
