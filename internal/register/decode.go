// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package register

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value is a decoded register. The concrete type depends on the encoding:
// DisabledValue, UnsignedValue, ScaledValue, TimestampValue,
// RateSummaryValue or NotImplementedValue.
type Value interface {
	// Definition returns the definition the value was decoded with.
	Definition() Definition
	// String renders the bare value, without unit or description.
	String() string
}

// DisabledValue is returned for registers that cannot be read.
type DisabledValue struct {
	Def Definition
}

func (v DisabledValue) Definition() Definition { return v.Def }
func (v DisabledValue) String() string         { return "Register disabled" }

// UnsignedValue is a 32-bit unsigned integer; the exponent is not applied.
type UnsignedValue struct {
	Def Definition
	Raw uint32
}

func (v UnsignedValue) Definition() Definition { return v.Def }
func (v UnsignedValue) String() string         { return strconv.FormatUint(uint64(v.Raw), 10) }

// ScaledValue is Raw * 10^Exponent.
type ScaledValue struct {
	Def      Definition
	Raw      uint32
	Exponent int8
}

func (v ScaledValue) Definition() Definition { return v.Def }

// Float64 returns the scaled value.
func (v ScaledValue) Float64() float64 {
	if v.Exponent < 0 {
		return float64(v.Raw) / math.Pow10(-int(v.Exponent))
	}
	return float64(v.Raw) * math.Pow10(int(v.Exponent))
}

// String renders the value with exactly abs(Exponent) fractional digits.
// The digits come from Raw, so no float rounding is involved.
func (v ScaledValue) String() string {
	return formatScaled(v.Raw, v.Exponent)
}

func formatScaled(raw uint32, exp int8) string {
	digits := strconv.FormatUint(uint64(raw), 10)
	if exp == 0 {
		return digits
	}
	if exp > 0 {
		n := int(exp)
		if raw != 0 {
			digits += strings.Repeat("0", n)
		}
		return digits + "." + strings.Repeat("0", n)
	}
	n := -int(exp)
	if len(digits) <= n {
		digits = strings.Repeat("0", n-len(digits)+1) + digits
	}
	return digits[:len(digits)-n] + "." + digits[len(digits)-n:]
}

// TimestampValue is the meter clock. Fields are decoded from BCD; Weekday
// counts from 0 (Sunday).
type TimestampValue struct {
	Def     Definition
	Century int
	Year    int // two digits
	Month   int
	Day     int
	Weekday int
	Hour    int
	Minute  int
	Second  int
}

func (v TimestampValue) Definition() Definition { return v.Def }

// String renders CCYY-MM-DD hh:mm:ss ww.
func (v TimestampValue) String() string {
	return fmt.Sprintf("%02d%02d-%02d-%02d %02d:%02d:%02d %02d",
		v.Century, v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second, v.Weekday)
}

// Time converts the clock to a time in loc. It fails when a field is out of
// range, which happens with an unset or corrupted clock.
func (v TimestampValue) Time(loc *time.Location) (time.Time, error) {
	if v.Month < 1 || v.Month > 12 || v.Day < 1 || v.Day > 31 ||
		v.Hour > 23 || v.Minute > 59 || v.Second > 59 {
		return time.Time{}, fmt.Errorf("meter clock %s is not a valid time", v)
	}
	t := time.Date(v.Century*100+v.Year, time.Month(v.Month), v.Day, v.Hour, v.Minute, v.Second, 0, loc)
	if t.Day() != v.Day {
		return time.Time{}, fmt.Errorf("meter clock %s is not a valid date", v)
	}
	return t, nil
}

// RateSummaryValue holds the four tariff rates of a summary register.
type RateSummaryValue struct {
	Def   Definition
	Rates [4]ScaledValue
}

func (v RateSummaryValue) Definition() Definition { return v.Def }

// Strings renders each rate with abs(exponent) fractional digits.
func (v RateSummaryValue) Strings() []string {
	out := make([]string, len(v.Rates))
	for i, r := range v.Rates {
		out[i] = r.String()
	}
	return out
}

func (v RateSummaryValue) String() string {
	return strings.Join(v.Strings(), " ")
}

// NotImplementedValue marks a register whose encoding has no decoder.
type NotImplementedValue struct {
	Def Definition
	Tag EncodingKind
}

func (v NotImplementedValue) Definition() Definition { return v.Def }
func (v NotImplementedValue) String() string {
	return fmt.Sprintf("unimplemented register type %d", uint8(v.Tag))
}

// Decode interprets words according to def. words must hold at least
// def.WordCount words; Decode panics otherwise.
func Decode(def Definition, words []uint16) Value {
	kind := def.Kind()
	need := int(def.WordCount)
	if n := kind.minWords(); n > need {
		need = n
	}
	if kind != EncodingDisabled && kind.Implemented() && len(words) < need {
		panic(fmt.Sprintf("register: decode 0x%04X: got %d words, need %d", def.Address, len(words), need))
	}

	switch kind {
	case EncodingDisabled:
		return DisabledValue{Def: def}
	case EncodingUnsignedInt32:
		return UnsignedValue{Def: def, Raw: uint32Of(words[0], words[1])}
	case EncodingScaledFloat32:
		return ScaledValue{Def: def, Raw: uint32Of(words[0], words[1]), Exponent: def.DecimalExponent}
	case EncodingBcdTimestamp:
		return decodeTimestamp(def, words)
	case EncodingRateSummary8:
		v := RateSummaryValue{Def: def}
		for i := range v.Rates {
			v.Rates[i] = ScaledValue{Def: def, Raw: uint32Of(words[2*i], words[2*i+1]), Exponent: def.DecimalExponent}
		}
		return v
	default:
		return NotImplementedValue{Def: def, Tag: kind}
	}
}

func uint32Of(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

// WireBytes returns words as they travel on the wire: high byte first.
func WireBytes(words []uint16) []byte {
	b := make([]byte, 2*len(words))
	for i, w := range words {
		b[2*i] = byte(w >> 8)
		b[2*i+1] = byte(w)
	}
	return b
}

// decodeTimestamp reads the wire layout
// [sec, min, hour, weekday, day, month, year, century].
func decodeTimestamp(def Definition, words []uint16) TimestampValue {
	b := WireBytes(words[:4])
	return TimestampValue{
		Def:     def,
		Second:  FromBCD(b[0]),
		Minute:  FromBCD(b[1]),
		Hour:    FromBCD(b[2]),
		Weekday: FromBCD(b[3]),
		Day:     FromBCD(b[4]),
		Month:   FromBCD(b[5]),
		Year:    FromBCD(b[6]),
		Century: FromBCD(b[7]),
	}
}

// FromBCD decodes one packed BCD byte.
func FromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// ToBCD encodes 0..99 as one packed BCD byte.
func ToBCD(n int) byte {
	return byte(n/10*16 + n%10)
}
