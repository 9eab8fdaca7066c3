package ussd

import (
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		entries  []string
		want     []string
		exit     bool
		wentHome bool
	}{
		{"no reserved entries", []string{"1", "3", "2"}, []string{"1", "3", "2"}, false, false},
		{"empty sequence", nil, []string{}, false, false},
		{"back at root exits", []string{"0"}, []string{}, true, false},
		{"back after one entry goes home", []string{"1", "0"}, []string{}, false, true},
		{"back at depth two jumps home for cycle", []string{"1", "4", "0"}, []string{}, false, true},
		{"back at depth two steps up for feedback", []string{"8", "5", "0"}, []string{"8"}, false, false},
		{"back deep drops previous entry", []string{"1", "1", "28", "0"}, []string{"1", "1"}, false, false},
		{"home collapses everything", []string{"1", "1", "28", "00"}, []string{}, false, true},
		{"home then fresh selection", []string{"1", "1", "00", "3"}, []string{"3"}, false, true},
		{"exit only counts when final", []string{"0", "2"}, []string{"2"}, false, false},
		{"cross-service jump via back", []string{"1", "2", "0", "3", "1"}, []string{"3", "1"}, false, true},
		{"consecutive backs unwind", []string{"1", "1", "28", "5", "0", "0"}, []string{"1", "1"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.entries)
			if !reflect.DeepEqual(res.Entries, tt.want) {
				t.Errorf("Resolve(%v).Entries = %v, want %v", tt.entries, res.Entries, tt.want)
			}
			if res.Exit != tt.exit {
				t.Errorf("Resolve(%v).Exit = %v, want %v", tt.entries, res.Exit, tt.exit)
			}
			if res.WentHome != tt.wentHome {
				t.Errorf("Resolve(%v).WentHome = %v, want %v", tt.entries, res.WentHome, tt.wentHome)
			}
		})
	}
}

// A sequence that backs all the way out and selects again must resolve to the
// same position as sending the new selection alone.
func TestResolveBackOutEquivalence(t *testing.T) {
	folded := Resolve([]string{"1", "1", "00", "2"})
	direct := Resolve([]string{"2"})
	if !reflect.DeepEqual(folded.Entries, direct.Entries) {
		t.Errorf("backed-out sequence resolved to %v, direct selection to %v", folded.Entries, direct.Entries)
	}
}
