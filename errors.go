package hashcol

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidAttributeName   = errors.New("invalid attribute name")
	ErrReadOnlyAttribute      = errors.New("attribute is marked as read-only")
	ErrInvalidHashColumnValue = errors.New("hash column value must be a map")
	ErrWrongArgumentCount     = errors.New("wrong number of arguments")
	ErrConfiguration          = errors.New("invalid configuration")
	ErrRecordNotFound         = errors.New("record not found")
	ErrRecordNotPersisted     = errors.New("record is not persisted")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// AttributeError reports a failed operation on a single attribute. Err is one
// of the package sentinels, so callers can use errors.Is.
type AttributeError struct {
	Model *Model
	Name  string
	Msg   string
	Err   error
}

func attrErrf(m *Model, name string, err error, format string, args ...any) error {
	return &AttributeError{m, name, fmt.Sprintf(format, args...), err}
}

func (e *AttributeError) Unwrap() error {
	return e.Err
}

func (e *AttributeError) Error() string {
	var buf strings.Builder
	if e.Model != nil {
		buf.WriteString(e.Model.Name())
		buf.WriteByte('.')
	}
	fmt.Fprintf(&buf, "%q", e.Name)
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

type ConfigurationError struct {
	Model string
	Msg   string
}

func configErrf(model string, format string, args ...any) error {
	return &ConfigurationError{model, fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func (e *ConfigurationError) Error() string {
	if e.Model == "" {
		return ErrConfiguration.Error() + ": " + e.Msg
	}
	return ErrConfiguration.Error() + ": " + e.Model + ": " + e.Msg
}

// CodecError wraps a failure of a single codec, with the path of the value it
// was converting (e.g. "prefs.dates[2]").
type CodecError struct {
	Codec string
	Path  string
	Err   error
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s at %s: %v", e.Codec, e.Path, e.Err)
}
