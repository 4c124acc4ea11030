// Package sheetcsv tokenizes rows of published-spreadsheet CSV exports
// and coerces their loosely formatted values.
//
// The upstream sheets are filled in by hand, so the parsing here is
// deliberately tolerant rather than strict RFC 4180.
package sheetcsv

import (
	"strconv"
	"strings"
	"unicode"
)

// SplitRow разбирает одну строку CSV. Кавычка переключает режим
// "внутри поля", запятая внутри кавычек — обычный символ.
// Каждое поле обрезается по пробелам и теряет одну пару обрамляющих
// кавычек. Удвоенная кавычка ("") НЕ разэкранируется — это осознанное
// упрощение, совпадающее с поведением продакшен-таблиц.
func SplitRow(row string) []string {
	if row == "" {
		return []string{}
	}

	var res []string
	var current strings.Builder
	inQuote := false

	for _, ch := range row {
		switch {
		case ch == '"':
			inQuote = !inQuote
			current.WriteRune(ch)
		case ch == ',' && !inQuote:
			res = append(res, cleanField(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	res = append(res, cleanField(current.String()))
	return res
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		s = s[1:]
	}
	if strings.HasSuffix(s, `"`) {
		s = s[:len(s)-1]
	}
	return s
}

// ParseNumber converts sheet values like "9,5", "12 200 so'm" or "$6.0"
// to a float. Non-numeric characters are stripped, a comma is treated
// as the decimal separator. ok=false when nothing numeric is left.
func ParseNumber(s string) (float64, bool) {
	var b strings.Builder
	for _, ch := range s {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '.':
			b.WriteRune('.')
		case ch == ',':
			b.WriteRune('.')
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	// Несколько точек (например "1.200,5" -> "1.200.5"): оставляем последнюю.
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}
	if cleaned == "." {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatWeight renders a numeric weight back to text ("3.5", "12").
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// Digits возвращает только цифры строки (для сравнения телефонов).
func Digits(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// FirstDigitRun returns the first contiguous run of digits in s,
// e.g. "AVIA-0231" -> "0231". Empty string when s has no digits.
func FirstDigitRun(s string) string {
	start := -1
	for i, ch := range s {
		if ch >= '0' && ch <= '9' {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			return s[start:i]
		}
	}
	if start != -1 {
		return s[start:]
	}
	return ""
}

// HasDigit reports whether s contains at least one digit.
func HasDigit(s string) bool {
	return FirstDigitRun(s) != ""
}
