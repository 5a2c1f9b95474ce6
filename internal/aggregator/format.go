package aggregator

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paveg/crosstab/internal/common"
)

// NumberFormat describes how numeric values are rendered.
type NumberFormat struct {
	DigitsAfterDecimal int     `json:"digitsAfterDecimal" yaml:"digits_after_decimal"`
	Scaler             float64 `json:"scaler" yaml:"scaler"` // zero is treated as 1
	ThousandsSep       string  `json:"thousandsSep" yaml:"thousands_sep"`
	DecimalSep         string  `json:"decimalSep" yaml:"decimal_sep"`
	Prefix             string  `json:"prefix" yaml:"prefix"`
	Suffix             string  `json:"suffix" yaml:"suffix"`
}

// Formatter renders an aggregated value.
type Formatter func(v any) string

var (
	// USFormat renders 1234.5 as "1,234.50".
	USFormat = NumberFormat{DigitsAfterDecimal: 2, Scaler: 1, ThousandsSep: ",", DecimalSep: "."}
	// USIntFormat renders 1234.5 as "1,235".
	USIntFormat = NumberFormat{DigitsAfterDecimal: 0, Scaler: 1, ThousandsSep: ",", DecimalSep: "."}
	// USPercentFormat renders 0.257 as "25.7%".
	USPercentFormat = NumberFormat{DigitsAfterDecimal: 1, Scaler: 100, ThousandsSep: ",", DecimalSep: ".", Suffix: "%"}
)

// FormatFloat renders x. NaN and infinities render as the empty string.
func (f NumberFormat) FormatFloat(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ""
	}
	scaler := f.Scaler
	if scaler == 0 {
		scaler = 1
	}
	digits := max(f.DigitsAfterDecimal, 0)

	s := strconv.FormatFloat(scaler*x, 'f', digits, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
		if strings.Trim(s, "0.") == "" {
			sign = ""
		}
	}

	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	b.WriteString(f.Prefix)
	b.WriteString(sign)
	b.WriteString(groupThousands(intPart, f.ThousandsSep))
	if hasFrac {
		b.WriteString(f.DecimalSep)
		b.WriteString(frac)
	}
	b.WriteString(f.Suffix)
	return b.String()
}

// Format renders any numeric-looking value. Nil renders as the empty string,
// other non-numeric values render as their key string.
func (f NumberFormat) Format(v any) string {
	if v == nil {
		return ""
	}
	x, ok := common.ToFloat64(v)
	if !ok {
		return formatPlain(v)
	}
	return f.FormatFloat(x)
}

// Formatter returns f.Format as a Formatter.
func (f NumberFormat) Formatter() Formatter {
	return f.Format
}

func groupThousands(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func formatPlain(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return formatTime(x)
	default:
		return common.ToKey(v)
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
