// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package row

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDateMask is used to render and parse dates when a Value carries no
// conversion mask.
const DefaultDateMask = "yyyy/MM/dd HH:mm:ss.SSS"

// Value describes one column: its semantic type, how raw values are stored in
// a Row and how they are rendered as text.
//
// Native representations per type are float64 (Number), string (String),
// time.Time (Date), bool (Boolean), int64 (Integer), decimal.Decimal
// (BigNumber), []byte (Binary) and any value (Serializable). nil is null.
type Value struct {
	Name      string  `json:"name"`
	Type      Type    `json:"type"`
	Length    int     `json:"length,omitempty"`
	Precision int     `json:"precision,omitempty"`
	Storage   Storage `json:"storage,omitempty"`
	Origin    string  `json:"origin,omitempty"`

	ConversionMask string `json:"format,omitempty"`
	DecimalSymbol  string `json:"decimal,omitempty"`
	GroupingSymbol string `json:"group,omitempty"`
	CurrencySymbol string `json:"currency,omitempty"`
	Encoding       string `json:"encoding,omitempty"`

	SortedDescending bool `json:"descending,omitempty"`
	CaseInsensitive  bool `json:"case_insensitive,omitempty"`

	Dictionary *Dictionary `json:"-"`
}

// NewValue returns a Value with normal storage and no formatting rules.
func NewValue(name string, t Type) *Value {
	return &Value{Name: name, Type: t, Precision: -1}
}

// Clone returns an independent copy. The dictionary of an indexed column is
// append-only and is shared with the copy.
func (v *Value) Clone() *Value {
	c := *v
	return &c
}

func (v *Value) String() string {
	s := fmt.Sprintf("%s %s", v.Name, v.Type)
	if v.Length > 0 {
		if v.Precision > 0 {
			s += fmt.Sprintf("(%d, %d)", v.Length, v.Precision)
		} else {
			s += fmt.Sprintf("(%d)", v.Length)
		}
	}
	if v.Storage == StorageIndexed {
		s += "<indexed>"
	}
	return s
}

// IsNull reports whether raw is null.
func (v *Value) IsNull(raw interface{}) bool {
	if raw == nil {
		return true
	}
	if v.Type == TypeString && v.Storage == StorageNormal {
		if s, ok := raw.(string); ok && s == "" {
			return true
		}
	}
	return false
}

// Native resolves a raw row value to its native representation, looking it up
// in the dictionary for indexed columns.
func (v *Value) Native(raw interface{}) (interface{}, error) {
	if raw == nil || v.Storage == StorageNormal {
		return raw, nil
	}
	idx, ok := raw.(Index)
	if !ok {
		return nil, ConversionError{Value: v.Name, Type: v.Type, Data: raw, Err: "indexed column without an index value"}
	}
	if v.Dictionary == nil {
		return nil, ConversionError{Value: v.Name, Type: v.Type, Data: raw, Err: "indexed column without a dictionary"}
	}
	return v.Dictionary.Lookup(idx)
}

// Raw converts a native value to the representation stored in a Row, adding it
// to the dictionary of an indexed column.
func (v *Value) Raw(native interface{}) interface{} {
	if native == nil || v.Storage == StorageNormal {
		return native
	}
	if v.Dictionary == nil {
		v.Dictionary = NewDictionary()
	}
	return v.Dictionary.Add(native)
}

// Compare compares two raw values of this column. Nulls sort before every
// other value, or after them when the column is sorted descending, and the
// whole result is negated for descending columns.
func (v *Value) Compare(a, b interface{}) (int, error) {
	var err error
	if a, err = v.Native(a); err != nil {
		return 0, err
	}
	if b, err = v.Native(b); err != nil {
		return 0, err
	}

	n1, n2 := v.isNullNative(a), v.isNullNative(b)
	switch {
	case n1 && n2:
		return 0, nil
	case n1:
		if v.SortedDescending {
			return 1, nil
		}
		return -1, nil
	case n2:
		if v.SortedDescending {
			return -1, nil
		}
		return 1, nil
	}

	cmp, err := v.compareNative(a, b)
	if err != nil {
		return 0, err
	}
	if v.SortedDescending {
		return -cmp, nil
	}
	return cmp, nil
}

func (v *Value) isNullNative(n interface{}) bool {
	if n == nil {
		return true
	}
	if s, ok := n.(string); ok && v.Type == TypeString {
		return s == ""
	}
	return false
}

func (v *Value) compareNative(a, b interface{}) (int, error) {
	switch v.Type {
	case TypeString:
		s1, err := v.stringOf(a)
		if err != nil {
			return 0, err
		}
		s2, err := v.stringOf(b)
		if err != nil {
			return 0, err
		}
		if v.CaseInsensitive {
			s1, s2 = strings.ToLower(s1), strings.ToLower(s2)
		}
		return strings.Compare(s1, s2), nil
	case TypeInteger:
		i1, err := v.GetInteger(a)
		if err != nil {
			return 0, err
		}
		i2, err := v.GetInteger(b)
		if err != nil {
			return 0, err
		}
		return compareInt64(i1, i2), nil
	case TypeNumber:
		f1, err := v.GetNumber(a)
		if err != nil {
			return 0, err
		}
		f2, err := v.GetNumber(b)
		if err != nil {
			return 0, err
		}
		return compareFloat64(f1, f2), nil
	case TypeDate:
		d1, err := v.GetDate(a)
		if err != nil {
			return 0, err
		}
		d2, err := v.GetDate(b)
		if err != nil {
			return 0, err
		}
		return compareInt64(d1.UnixNano(), d2.UnixNano()), nil
	case TypeBigNumber:
		b1, err := v.GetBigNumber(a)
		if err != nil {
			return 0, err
		}
		b2, err := v.GetBigNumber(b)
		if err != nil {
			return 0, err
		}
		return b1.Cmp(b2), nil
	case TypeBoolean:
		t1, err := v.GetBoolean(a)
		if err != nil {
			return 0, err
		}
		t2, err := v.GetBoolean(b)
		if err != nil {
			return 0, err
		}
		switch {
		case t1 == t2:
			return 0, nil
		case t1:
			return 1, nil
		default:
			return -1, nil
		}
	case TypeBinary:
		b1, ok1 := a.([]byte)
		b2, ok2 := b.([]byte)
		if !ok1 || !ok2 {
			return 0, ConversionError{Value: v.Name, Type: v.Type, Data: a, Err: "binary comparison needs []byte values"}
		}
		// shorter binaries sort first, equal lengths compare bytewise
		if len(b1) != len(b2) {
			return compareInt64(int64(len(b1)), int64(len(b2))), nil
		}
		return bytes.Compare(b1, b2), nil
	}
	return 0, ConversionError{Value: v.Name, Type: v.Type, Data: a, Err: "values of this type can not be compared"}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case math.IsNaN(a) && !math.IsNaN(b):
		return -1
	case !math.IsNaN(a) && math.IsNaN(b):
		return 1
	}
	return 0
}

// GetString renders a raw value as text using the column's formatting rules.
// Null renders as the empty string.
func (v *Value) GetString(raw interface{}) (string, error) {
	n, err := v.Native(raw)
	if err != nil || n == nil {
		return "", err
	}
	switch v.Type {
	case TypeString, TypeNone:
		return v.stringOf(n)
	case TypeInteger:
		i, err := v.GetInteger(n)
		if err != nil {
			return "", err
		}
		return v.formatDecimal(strconv.FormatInt(i, 10)), nil
	case TypeNumber:
		f, err := v.GetNumber(n)
		if err != nil {
			return "", err
		}
		return v.formatDecimal(strconv.FormatFloat(f, 'f', v.decimals(), 64)), nil
	case TypeBigNumber:
		d, err := v.GetBigNumber(n)
		if err != nil {
			return "", err
		}
		if p := v.decimals(); p >= 0 {
			return v.formatDecimal(d.StringFixed(int32(p))), nil
		}
		return v.formatDecimal(d.String()), nil
	case TypeDate:
		d, err := v.GetDate(n)
		if err != nil {
			return "", err
		}
		return d.Format(v.dateLayout()), nil
	case TypeBoolean:
		b, err := v.GetBoolean(n)
		if err != nil {
			return "", err
		}
		if b {
			return "Y", nil
		}
		return "N", nil
	case TypeBinary:
		b, ok := n.([]byte)
		if !ok {
			return "", ConversionError{Value: v.Name, Type: v.Type, Data: n, Err: "binary value is not []byte"}
		}
		return string(b), nil
	}
	return fmt.Sprintf("%v", n), nil
}

func (v *Value) stringOf(n interface{}) (string, error) {
	switch t := n.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return fmt.Sprintf("%v", n), nil
}

// decimals is the number of fraction digits to render, -1 for as many as needed.
func (v *Value) decimals() int {
	if i := strings.IndexByte(v.ConversionMask, '.'); i >= 0 {
		return len(strings.TrimRight(v.ConversionMask[i+1:], ";")) - strings.Count(v.ConversionMask[i+1:], "%")
	}
	if v.Type == TypeInteger {
		return 0
	}
	if v.Precision > 0 {
		return v.Precision
	}
	return -1
}

func (v *Value) formatDecimal(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	if strings.ContainsRune(v.ConversionMask, ',') {
		group := v.GroupingSymbol
		if group == "" {
			group = ","
		}
		var b strings.Builder
		for i, c := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				b.WriteString(group)
			}
			b.WriteRune(c)
		}
		intPart = b.String()
	}

	out := intPart
	if fracPart != "" {
		dec := v.DecimalSymbol
		if dec == "" {
			dec = "."
		}
		out += dec + fracPart
	}
	if strings.ContainsAny(v.ConversionMask, "$¤") {
		cur := v.CurrencySymbol
		if cur == "" {
			cur = "$"
		}
		out = cur + out
	}
	if neg {
		out = "-" + out
	}
	return out
}

var dateMaskReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"hh", "03",
	"mm", "04",
	"ss", "05",
	"SSS", "000",
	"a", "PM",
	"XXX", "-07:00",
	"Z", "-0700",
	"z", "MST",
)

func (v *Value) dateLayout() string {
	mask := v.ConversionMask
	if mask == "" {
		mask = DefaultDateMask
	}
	return dateMaskReplacer.Replace(mask)
}

// GetInteger converts a native value to int64.
func (v *Value) GetInteger(n interface{}) (int64, error) {
	switch t := n.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(math.Round(t)), nil
	case decimal.Decimal:
		return t.Round(0).IntPart(), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case time.Time:
		return t.UnixNano() / int64(time.Millisecond), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v.stripNumberFormat(t)), 10, 64)
		if err != nil {
			return 0, ConversionError{Value: v.Name, Type: TypeInteger, Data: n, Err: err.Error()}
		}
		return i, nil
	}
	return 0, ConversionError{Value: v.Name, Type: TypeInteger, Data: n, Err: "unsupported native type"}
}

// GetNumber converts a native value to float64.
func (v *Value) GetNumber(n interface{}) (float64, error) {
	switch t := n.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case decimal.Decimal:
		f, _ := t.Float64()
		return f, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.stripNumberFormat(t)), 64)
		if err != nil {
			return 0, ConversionError{Value: v.Name, Type: TypeNumber, Data: n, Err: err.Error()}
		}
		return f, nil
	}
	return 0, ConversionError{Value: v.Name, Type: TypeNumber, Data: n, Err: "unsupported native type"}
}

// GetBigNumber converts a native value to a decimal.
func (v *Value) GetBigNumber(n interface{}) (decimal.Decimal, error) {
	switch t := n.(type) {
	case decimal.Decimal:
		return t, nil
	case int64:
		return decimal.New(t, 0), nil
	case int:
		return decimal.New(int64(t), 0), nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v.stripNumberFormat(t)))
		if err != nil {
			return decimal.Zero, ConversionError{Value: v.Name, Type: TypeBigNumber, Data: n, Err: err.Error()}
		}
		return d, nil
	}
	return decimal.Zero, ConversionError{Value: v.Name, Type: TypeBigNumber, Data: n, Err: "unsupported native type"}
}

// GetBoolean converts a native value to bool. Strings accept Y/N as well as
// everything strconv.ParseBool does.
func (v *Value) GetBoolean(n interface{}) (bool, error) {
	switch t := n.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "Y", "YES":
			return true, nil
		case "N", "NO":
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, ConversionError{Value: v.Name, Type: TypeBoolean, Data: n, Err: err.Error()}
		}
		return b, nil
	}
	return false, ConversionError{Value: v.Name, Type: TypeBoolean, Data: n, Err: "unsupported native type"}
}

// GetDate converts a native value to a time. Integers are taken as
// milliseconds since the epoch.
func (v *Value) GetDate(n interface{}) (time.Time, error) {
	switch t := n.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.Unix(0, t*int64(time.Millisecond)), nil
	case int:
		return time.Unix(0, int64(t)*int64(time.Millisecond)), nil
	case string:
		d, err := time.ParseInLocation(v.dateLayout(), strings.TrimSpace(t), time.Local)
		if err != nil {
			return time.Time{}, ConversionError{Value: v.Name, Type: TypeDate, Data: n, Err: err.Error()}
		}
		return d, nil
	}
	return time.Time{}, ConversionError{Value: v.Name, Type: TypeDate, Data: n, Err: "unsupported native type"}
}

func (v *Value) stripNumberFormat(s string) string {
	if v.CurrencySymbol != "" {
		s = strings.Replace(s, v.CurrencySymbol, "", -1)
	}
	group := v.GroupingSymbol
	if group == "" && strings.ContainsRune(v.ConversionMask, ',') {
		group = ","
	}
	if group != "" {
		s = strings.Replace(s, group, "", -1)
	}
	if v.DecimalSymbol != "" && v.DecimalSymbol != "." {
		s = strings.Replace(s, v.DecimalSymbol, ".", 1)
	}
	return s
}

// ConvertFromString parses text into the raw representation of this column,
// the inverse of GetString. The empty string is null.
func (v *Value) ConvertFromString(s string) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	var (
		n   interface{}
		err error
	)
	switch v.Type {
	case TypeString, TypeNone:
		n = s
	case TypeInteger:
		n, err = v.GetInteger(s)
	case TypeNumber:
		n, err = v.GetNumber(s)
	case TypeBigNumber:
		n, err = v.GetBigNumber(s)
	case TypeBoolean:
		n, err = v.GetBoolean(s)
	case TypeDate:
		n, err = v.GetDate(s)
	case TypeBinary:
		n = []byte(s)
	default:
		return nil, ConversionError{Value: v.Name, Type: v.Type, Data: s, Err: "can not convert from a string"}
	}
	if err != nil {
		return nil, err
	}
	return v.Raw(n), nil
}
