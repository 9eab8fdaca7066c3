package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL_ENV", tt.value)
		if got := ParseBoolEnv("TEST_BOOL_ENV", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT_ENV", "42")
	if got := ParseIntEnv("TEST_INT_ENV", 7); got != 42 {
		t.Errorf("ParseIntEnv = %d, want 42", got)
	}
	t.Setenv("TEST_INT_ENV", "not-a-number")
	if got := ParseIntEnv("TEST_INT_ENV", 7); got != 7 {
		t.Errorf("invalid value should fall back, got %d", got)
	}
	t.Setenv("TEST_INT_ENV", "")
	if got := ParseIntEnv("TEST_INT_ENV", 7); got != 7 {
		t.Errorf("unset value should fall back, got %d", got)
	}
}
