package view

import "testing"

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{45000, "$45,000.00"},
		{0.5, "$0.50"},
		{1234567.891, "$1,234,567.89"},
		{-1.5, "-$1.50"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatLargeNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.23e9, "$1.23B"},
		{900e9, "$900.00B"},
		{4.5e6, "$4.50M"},
		{12, "$12.00"},
	}
	for _, tt := range tests {
		if got := FormatLargeNumber(tt.in); got != tt.want {
			t.Errorf("FormatLargeNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatChange(t *testing.T) {
	if got := FormatChange(2.5); got != "+2.50%" {
		t.Errorf("got %q", got)
	}
	if got := FormatChange(0); got != "+0.00%" {
		t.Errorf("got %q", got)
	}
	if got := FormatChange(-1.234); got != "-1.23%" {
		t.Errorf("got %q", got)
	}
	if ChangeClass(0) != "positive" || ChangeClass(-0.1) != "negative" {
		t.Error("Unexpected change class")
	}
}
