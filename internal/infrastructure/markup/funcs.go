package markup

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// currencySymbols maps ISO currency codes to display symbols. Codes without
// an entry render as "<CODE> <amount>".
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// markdownRenderer converts the quote's free-text blocks. GFM tables and
// hard wraps match what quote authors type; raw HTML stays escaped because
// WithUnsafe is deliberately absent.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// formatMoney formats a decimal value with its currency symbol
// Example: "USD", 1234.56 -> "$1,234.56"
func formatMoney(currency string, v interface{}) string {
	if symbol, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return symbol + formatMoneyRaw(v)
	}
	if currency == "" {
		return formatMoneyRaw(v)
	}
	return strings.ToUpper(currency) + " " + formatMoneyRaw(v)
}

// formatMoneyRaw formats a decimal value with thousand separators
// Example: 1234.56 -> "1,234.56"
func formatMoneyRaw(v interface{}) string {
	d := toDecimal(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.Split(d.StringFixed(2), ".")
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	return sign + result.String() + "." + decPart
}

// formatDate formats a time value as a date string
// Example: time.Now() -> "2026-01-15"
func formatDate(v interface{}) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// formatDecimal formats a decimal with the given precision
func formatDecimal(v interface{}, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatMetric formats a float without trailing zeros
// Example: 99.95 -> "99.95", 12.0 -> "12"
func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncate truncates a string to max runes with an ellipsis
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// titleCase converts a string to title case with proper Unicode handling
func titleCase(s string) string {
	caser := cases.Title(language.English)
	return caser.String(s)
}

// statusLabel converts an uppercase status code to display text
// Example: "DRAFT" -> "Draft"
func statusLabel(status string) string {
	return titleCase(strings.ToLower(strings.ReplaceAll(status, "_", " ")))
}

// markdown renders a sanitized free-text block as HTML. The input has had
// control characters stripped upstream; entity escaping of its text content
// is goldmark's job, and embedded raw HTML stays escaped.
func markdown(s string) template.HTML {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(s), &buf); err != nil {
		// Fall back to the escaped literal rather than dropping content.
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

// safeCSS marks a string as safe CSS, bypassing automatic escaping.
// Only used with validated values (hex colors checked upstream).
func safeCSS(s string) template.CSS {
	return template.CSS(s)
}

// safeURL marks a string as safe URL, bypassing automatic escaping.
// Only used with asset references from the branding profile.
func safeURL(s string) template.URL {
	return template.URL(s)
}

// toDecimal converts supported types to decimal.Decimal
func toDecimal(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return *val
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// toTime converts supported types to time.Time
func toTime(v interface{}) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val == nil {
			return time.Time{}
		}
		return *val
	default:
		return time.Time{}
	}
}
