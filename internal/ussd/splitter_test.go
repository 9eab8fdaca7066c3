package ussd

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"single entry", "1234", []string{"1234"}},
		{"multiple entries", "1234*1*3", []string{"1234", "1", "3"}},
		{"preserves order", "3*1*2", []string{"3", "1", "2"}},
		{"trims tokens", " 1234 * 1 ", []string{"1234", "1"}},
		{"drops empty tokens", "1234**1", []string{"1234", "1"}},
		{"trailing separator", "1234*", []string{"1234"}},
		{"reserved entries kept", "1234*1*0*00", []string{"1234", "1", "0", "00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
