package ussd

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/AfyaLink/AfyaDial/internal/models"
)

func qDigit(prompt string) question {
	return qNumber(prompt, 1, 9, errors.New("enter a digit from 1 to 9"))
}

func TestCollectPromptsForFirstQuestion(t *testing.T) {
	_, _, out := collect(nil, qDigit("Pick a number:"))
	if out == nil {
		t.Fatal("expected a prompt outcome for an empty sequence")
	}
	if out.Kind != models.KindContinue {
		t.Errorf("expected CON outcome, got %s", out.Kind)
	}
	if out.Text != "Pick a number:" {
		t.Errorf("unexpected prompt: %q", out.Text)
	}
}

func TestCollectAnswersInOrder(t *testing.T) {
	values, rest, out := collect([]string{"3", "7"}, qDigit("first"), qDigit("second"))
	if out != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !reflect.DeepEqual(values, []string{"3", "7"}) {
		t.Errorf("values = %v, want [3 7]", values)
	}
	if rest != nil {
		t.Errorf("rest = %v, want nil", rest)
	}
}

func TestCollectReturnsLeftoverEntries(t *testing.T) {
	values, rest, out := collect([]string{"3", "7", "9"}, qDigit("only"))
	if out != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !reflect.DeepEqual(values, []string{"3"}) {
		t.Errorf("values = %v, want [3]", values)
	}
	if !reflect.DeepEqual(rest, []string{"7", "9"}) {
		t.Errorf("rest = %v, want [7 9]", rest)
	}
}

func TestCollectRepromptsOnInvalidFinalEntry(t *testing.T) {
	_, _, out := collect([]string{"x"}, qDigit("Pick a number:"))
	if out == nil {
		t.Fatal("expected a re-prompt outcome")
	}
	if !strings.Contains(out.Text, "enter a digit") {
		t.Errorf("re-prompt should carry guidance, got %q", out.Text)
	}
	if !strings.Contains(out.Text, "Pick a number:") {
		t.Errorf("re-prompt should repeat the question, got %q", out.Text)
	}
}

// An invalid entry that is not the latest was already answered with a
// re-prompt on a previous turn; replay must consume it without advancing so
// the outcome stays deterministic.
func TestCollectConsumesOlderInvalidEntries(t *testing.T) {
	values, _, out := collect([]string{"x", "4"}, qDigit("Pick a number:"))
	if out != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !reflect.DeepEqual(values, []string{"4"}) {
		t.Errorf("values = %v, want [4]", values)
	}
}

func TestCollectPromptsForPendingQuestion(t *testing.T) {
	_, _, out := collect([]string{"3"}, qDigit("first"), qDigit("second"))
	if out == nil {
		t.Fatal("expected a prompt for the second question")
	}
	if out.Text != "second" {
		t.Errorf("prompt = %q, want \"second\"", out.Text)
	}
}
