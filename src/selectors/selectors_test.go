package selectors

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassifyKnownSelectors(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		input string
		want  string
	}{
		{"", "transfer"},
		{"0x", "transfer"},
		{"0xa9059cbb" + strings.Repeat("0", 128), "transfer"},
		{"0x7ff36ab5" + strings.Repeat("0", 64), "swapExactETHForTokens"},
		{"0x5ae401dc", "multicall"},
		{"0xD0E30DB0", "deposit"}, // case-insensitive
	}
	for _, tc := range tests {
		if got := c.Classify(tc.input); got != tc.want {
			t.Errorf("Classify(%.24q) = %q, want %q", tc.input, got, tc.want)
		}
	}
	if len(c.Unknown()) != 0 {
		t.Errorf("known selectors recorded as unknown: %+v", c.Unknown())
	}
}

func TestClassifyUnknownCountsAndRanks(t *testing.T) {
	c := NewClassifier()
	if got := c.Classify("0xdeadbeef"); got != "0xdeadbeef" {
		t.Fatalf("unknown selector classified as %q, want raw hex", got)
	}
	c.Classify("0xdeadbeef")
	c.Classify("0xcafebabe")

	want := []SelectorCount{
		{Selector: "0xdeadbeef", Count: 2},
		{Selector: "0xcafebabe", Count: 1},
	}
	if diff := cmp.Diff(want, c.Unknown()); diff != "" {
		t.Errorf("Unknown() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyTiesBreakBySelector(t *testing.T) {
	c := NewClassifier()
	c.Classify("0xbbbbbbbb")
	c.Classify("0xaaaaaaab")

	got := c.Unknown()
	if len(got) != 2 || got[0].Selector != "0xaaaaaaab" {
		t.Errorf("equal counts should order by selector, got %+v", got)
	}
}
