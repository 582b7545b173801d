package hashcol

import (
	"fmt"
	"strings"
	"unicode"
)

// Mode is the kind of access an attribute token asks for.
type Mode uint8

const (
	ModeRead Mode = iota
	ModeWrite
	ModePredicate
	ModeBeforeTypeCast
	ModeChangedQuery
	ModePreviousValue
	ModeChange
	ModeWillChange
)

var allModes = []Mode{
	ModeRead,
	ModeWrite,
	ModePredicate,
	ModeBeforeTypeCast,
	ModeChangedQuery,
	ModePreviousValue,
	ModeChange,
	ModeWillChange,
}

var suffixTable = []struct {
	suffix string
	mode   Mode
}{
	{"_will_change!", ModeWillChange},
	{"_changed?", ModeChangedQuery},
	{"_before_type_cast", ModeBeforeTypeCast},
	{"_change", ModeChange},
	{"_was", ModePreviousValue},
	{"=", ModeWrite},
	{"?", ModePredicate},
}

func Modes() []Mode {
	return append([]Mode(nil), allModes...)
}

func (m Mode) Suffix() string {
	for _, s := range suffixTable {
		if s.mode == m {
			return s.suffix
		}
	}
	return ""
}

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModePredicate:
		return "predicate"
	case ModeBeforeTypeCast:
		return "before_type_cast"
	case ModeChangedQuery:
		return "changed?"
	case ModePreviousValue:
		return "was"
	case ModeChange:
		return "change"
	case ModeWillChange:
		return "will_change!"
	default:
		return fmt.Sprintf("invalid mode %d", int(m))
	}
}

type Descriptor struct {
	Base string
	Mode Mode
}

func (d Descriptor) MethodName() string {
	return MethodName(d.Base, d.Mode)
}

func MethodName(base string, mode Mode) string {
	return base + mode.Suffix()
}

// Classify splits token into a base attribute name and an access mode. When
// several suffixes match, the longest one wins, so "x_changed?" is a
// changed-query on "x" rather than a predicate on "x_changed".
func Classify(token string) (Descriptor, error) {
	d := Descriptor{Base: token, Mode: ModeRead}
	matched := 0
	for _, s := range suffixTable {
		if len(s.suffix) > matched && strings.HasSuffix(token, s.suffix) {
			d = Descriptor{Base: token[:len(token)-len(s.suffix)], Mode: s.mode}
			matched = len(s.suffix)
		}
	}
	if !isIdentifier(d.Base) {
		return Descriptor{}, attrErrf(nil, token, ErrInvalidAttributeName, "")
	}
	return d, nil
}

// IsValidAttributeName reports whether name can be used as-is as an attribute
// name, i.e. it is an identifier and carries no access-mode suffix.
func IsValidAttributeName(name string) bool {
	d, err := Classify(name)
	return err == nil && d.Mode == ModeRead && d.Base == name
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
