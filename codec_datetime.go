package hashcol

import (
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
)

// DateTimeLayout is the stored form of times: UTC with millisecond precision.
const DateTimeLayout = "2006-01-02T15:04:05.000Z"

var dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

// DateTimeCodec stores time values as DateTimeLayout text. Only text matching
// the layout exactly is turned back into a time; anything else stays text.
type DateTimeCodec struct{}

func (DateTimeCodec) Name() string { return "datetime" }

func (DateTimeCodec) CanDump(v Value) bool {
	return v.Kind() == KindTime
}

func (DateTimeCodec) CanLoad(v Value) bool {
	return v.Kind() == KindText && dateTimePattern.MatchString(v.Str())
}

func (DateTimeCodec) Dump(path string, v Value) (Value, error) {
	return Text(v.Time().UTC().Format(DateTimeLayout)), nil
}

func (DateTimeCodec) Load(path string, v Value) (Value, error) {
	t, err := time.Parse(DateTimeLayout, v.Str())
	if err != nil {
		return Value{}, errors.Wrapf(err, "cannot parse %q as a timestamp", v.Str())
	}
	return Time(t), nil
}
