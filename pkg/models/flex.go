package models

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// 生成結果の数値・真偽値は "35歳" "11%" "はい" のような文字列で返ることがあるため、
// 以下の型は解釈できない値をエラーにせずゼロ値として受け取ります。

var (
	digitsPattern = regexp.MustCompile(`-?\d+`)
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// FlexInt は数値でも "35歳" のような文字列でも受け付ける整数です。
type FlexInt int

// UnmarshalJSON 数値・文字列の両方を解釈する
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = 0
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt(int(n + 0.5*sign(n)))
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	if v, err := strconv.Atoi(digitsPattern.FindString(stripDigitSeparators(str))); err == nil {
		*f = FlexInt(v)
	}
	return nil
}

// Int int に変換する
func (f FlexInt) Int() int { return int(f) }

// FlexFloat は数値でも "11%" "約12.5" のような文字列でも受け付ける小数です。
type FlexFloat float64

// UnmarshalJSON 数値・文字列の両方を解釈する
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	if v, err := strconv.ParseFloat(numberPattern.FindString(stripDigitSeparators(str)), 64); err == nil {
		*f = FlexFloat(v)
	}
	return nil
}

// Float float64 に変換する
func (f FlexFloat) Float() float64 { return float64(f) }

// FlexBool は true/false のほか "はい" "yes" "1" などを受け付ける真偽値です。
type FlexBool bool

var truthy = map[string]bool{
	"true": true, "yes": true, "y": true, "1": true, "on": true,
	"はい": true, "あり": true, "有": true, "該当": true, "対象": true, "○": true, "〇": true,
}

// UnmarshalJSON 真偽値・文字列・数値を解釈する
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	*b = false
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = n != 0
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*b = FlexBool(truthy[strings.ToLower(strings.TrimSpace(str))])
	}
	return nil
}

// Bool bool に変換する
func (b FlexBool) Bool() bool { return bool(b) }

func stripDigitSeparators(s string) string {
	return strings.NewReplacer(",", "", "，", "").Replace(s)
}

func sign(n float64) float64 {
	if n < 0 {
		return -1
	}
	return 1
}
