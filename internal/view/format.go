package view

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var (
	billion = decimal.NewFromInt(1_000_000_000)
	million = decimal.NewFromInt(1_000_000)
)

// FormatPrice renders a USD amount with thousands separators and two
// decimals, e.g. "$45,000.00" or "-$1.50".
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price).Round(2)
	if d.IsNegative() {
		return "-$" + humanize.FormatFloat("#,###.##", d.Neg().InexactFloat64())
	}
	return "$" + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

// FormatLargeNumber abbreviates market caps and volumes: "$1.23B", "$4.50M".
func FormatLargeNumber(num float64) string {
	d := decimal.NewFromFloat(num)
	switch {
	case d.GreaterThanOrEqual(billion):
		return "$" + d.Div(billion).StringFixed(2) + "B"
	case d.GreaterThanOrEqual(million):
		return "$" + d.Div(million).StringFixed(2) + "M"
	}
	return "$" + d.StringFixed(2)
}

// FormatChange renders a signed percentage, e.g. "+2.50%".
func FormatChange(change float64) string {
	d := decimal.NewFromFloat(change)
	if !d.IsNegative() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// ChangeClass is the CSS class a UI uses to color a change.
func ChangeClass(change float64) string {
	if change >= 0 {
		return "positive"
	}
	return "negative"
}
