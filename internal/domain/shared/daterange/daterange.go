package daterange

import (
	"fmt"
	"time"

	"roomstay/internal/domain/shared/apperr"
)

const DateLayout = "2006-01-02"

var ErrInvalidRange = apperr.New(apperr.Validation, "daterange: check-out must be after check-in")

// DateRange represents a half-open interval [CheckIn, CheckOut) of calendar dates.
// Both bounds are kept at midnight UTC; the night of CheckOut is not included.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

func MustParse(checkIn, checkOut string) DateRange {
	dr, err := Parse(checkIn, checkOut)
	if err != nil {
		panic(err)
	}
	return dr
}

func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.Validation, fmt.Sprintf("daterange: invalid calendar date %q", value), err)
	}
	return t, nil
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

const secondsPerDay = 24 * 60 * 60

// Nights counts whole Unix days between the bounds. A time.Duration saturates
// after about 292 years.
func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Unix()/secondsPerDay - dr.CheckIn.Unix()/secondsPerDay)
}

// EachNight returns the date of every night in the range, in order.
func (dr DateRange) EachNight() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for d := dr.CheckIn; d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return !other.CheckIn.Before(dr.CheckIn) && !other.CheckOut.After(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	d := Day(t)
	return !d.Before(dr.CheckIn) && d.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

func (dr DateRange) Equal(other DateRange) bool {
	return dr.CheckIn.Equal(other.CheckIn) && dr.CheckOut.Equal(other.CheckOut)
}

func (dr DateRange) String() string {
	return "[" + dr.CheckIn.Format(DateLayout) + ", " + dr.CheckOut.Format(DateLayout) + ")"
}
