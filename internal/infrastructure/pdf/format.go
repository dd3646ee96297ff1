package pdf

import (
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Make("en-IN"))

var templateFuncs = template.FuncMap{
	"money":  formatMoney,
	"weight": formatWeight,
	"date":   formatDate,
	"inc":    func(i int) int { return i + 1 },
}

// formatMoney groups digits the way the tenant's invoices print them.
func formatMoney(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return printer.Sprintf("%.2f", f)
}

func formatWeight(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return printer.Sprintf("%.2f", f)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02-Jan-2006")
}

var (
	smallNumbers = []string{
		"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen",
		"Sixteen", "Seventeen", "Eighteen", "Nineteen",
	}
	tensNames = []string{
		"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
	}
	// Indian place values, largest first
	scales = []struct {
		value int64
		name  string
	}{
		{10000000, "Crore"},
		{100000, "Lakh"},
		{1000, "Thousand"},
		{100, "Hundred"},
	}
)

func numberToWords(n int64) string {
	var parts []string
	for _, s := range scales {
		if n >= s.value {
			parts = append(parts, numberToWords(n/s.value), s.name)
			n %= s.value
		}
	}
	switch {
	case n >= 20:
		parts = append(parts, tensNames[n/10])
		if n%10 > 0 {
			parts = append(parts, smallNumbers[n%10])
		}
	case n > 0:
		parts = append(parts, smallNumbers[n])
	}
	return strings.Join(parts, " ")
}

// amountInWords spells a rupee amount, e.g. "Twelve Rupees and Fifty Paise Only".
func amountInWords(d decimal.Decimal) string {
	d = d.Abs().Round(2)
	rupees := d.IntPart()
	paise := d.Sub(decimal.NewFromInt(rupees)).Shift(2).IntPart()

	var parts []string
	if rupees > 0 {
		parts = append(parts, numberToWords(rupees)+" Rupees")
	}
	if paise > 0 {
		parts = append(parts, numberToWords(paise)+" Paise")
	}
	if len(parts) == 0 {
		return "Zero Rupees Only"
	}
	return strings.Join(parts, " and ") + " Only"
}
