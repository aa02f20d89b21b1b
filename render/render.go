// Package render centralizes the Brazilian-Portuguese formatting used in
// outbound messages: money, dates, and names. Every workflow renders
// through here so the texts read consistently.
package render

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// Money formats a value in reais, e.g. 1234.5 -> "R$ 1.234,50".
func Money(v float64) string {
	return "R$ " + ptBR.Sprint(number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}

// Date formats a time as dd/mm/yyyy.
func Date(t time.Time) string {
	return t.Format("02/01/2006")
}

// DateTime formats a time as dd/mm/yyyy hh:mm.
func DateTime(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

// FirstName extracts the leading word of a full name, title-cased, for
// use in greetings. Empty input yields "Cliente".
func FirstName(full string) string {
	fields := strings.Fields(strings.TrimSpace(full))
	if len(fields) == 0 {
		return "Cliente"
	}
	first := []rune(strings.ToLower(fields[0]))
	return strings.ToUpper(string(first[0])) + string(first[1:])
}

// Quantity formats a decimal quantity with up to three fraction digits,
// e.g. 2.5 -> "2,5" and 10 -> "10".
func Quantity(v float64) string {
	return ptBR.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}
