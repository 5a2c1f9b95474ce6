package pivot

import (
	"math"
	"strconv"
	"strings"

	"github.com/paveg/crosstab/internal/common"
)

var (
	monthNames = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	dayNames   = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

// Bin rounds a numeric attribute down to a multiple of width, keeping the
// sign of the value (-7 with width 5 bins to -5). Non-numeric values and a
// zero width yield nil.
func Bin(attr string, width float64) DerivedAttribute {
	return func(rec Record) any {
		x, ok := common.ToFloat64(rec[attr])
		if !ok || width == 0 {
			return nil
		}
		return x - math.Mod(x, width)
	}
}

// DateFormat renders a date attribute with a %-pattern:
//
//	%y year      %m month 01-12   %n month name   %d day 01-31
//	%w weekday   %x weekday 0-6   %H hour         %M minute   %S second
//
// Other %-sequences are kept verbatim. Values that are not dates render as
// the empty string. With utc false the date is converted to local time.
func DateFormat(attr, pattern string, utc bool) DerivedAttribute {
	return func(rec Record) any {
		t, ok := common.ToTime(rec[attr])
		if !ok {
			return ""
		}
		if utc {
			t = t.UTC()
		} else {
			t = t.Local()
		}

		pad := func(n int) string {
			if n < 10 {
				return "0" + strconv.Itoa(n)
			}
			return strconv.Itoa(n)
		}

		var b strings.Builder
		for i := 0; i < len(pattern); i++ {
			if pattern[i] != '%' || i+1 >= len(pattern) {
				b.WriteByte(pattern[i])
				continue
			}
			i++
			switch pattern[i] {
			case 'y':
				b.WriteString(strconv.Itoa(t.Year()))
			case 'm':
				b.WriteString(pad(int(t.Month())))
			case 'n':
				b.WriteString(monthNames[t.Month()-1])
			case 'd':
				b.WriteString(pad(t.Day()))
			case 'w':
				b.WriteString(dayNames[t.Weekday()])
			case 'x':
				b.WriteString(strconv.Itoa(int(t.Weekday())))
			case 'H':
				b.WriteString(pad(t.Hour()))
			case 'M':
				b.WriteString(pad(t.Minute()))
			case 'S':
				b.WriteString(pad(t.Second()))
			default:
				b.WriteByte('%')
				b.WriteByte(pattern[i])
			}
		}
		return b.String()
	}
}
