package tax

import (
	"strings"
	"testing"
)

func TestStateFullName(t *testing.T) {
	if got := StateFullName("CA"); got != "California" {
		t.Errorf("got %q", got)
	}
	if got := StateFullName("DC"); got != "District of Columbia" {
		t.Errorf("got %q", got)
	}
	if got := StateFullName("Puerto Rico"); got != "Puerto Rico" {
		t.Errorf("expected unknown code to pass through, got %q", got)
	}
}

func TestFilingStatusName(t *testing.T) {
	if got := FilingStatusName("married_joint"); got != "Married Filing Jointly" {
		t.Errorf("got %q", got)
	}
	if got := FilingStatusName("other"); got != "other" {
		t.Errorf("expected unknown status to pass through, got %q", got)
	}
}

func TestFilingPrompt(t *testing.T) {
	prompt := FilingPrompt("Texas", 30, 55000, "Single")
	for _, want := range []string{
		"Age: 30",
		"Annual Income: $55000.00",
		"Filing Status: Single",
		"State of Residence: Texas",
		`"mustFile": boolean`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestScanPrompt(t *testing.T) {
	prompt := ScanPrompt(`[{"id":"e1"}]`)
	if !strings.Contains(prompt, `[{"id":"e1"}]`) {
		t.Error("prompt missing email payload")
	}
	if !strings.Contains(prompt, "1099-NEC") {
		t.Error("prompt missing document type list")
	}
	if !strings.Contains(prompt, jsonOnlyNote) {
		t.Error("prompt missing json-only instruction")
	}
}

func TestDocumentPrompt(t *testing.T) {
	prompt := DocumentPrompt("w2.pdf", "application/pdf", "Wages 50000")
	for _, want := range []string{`"w2.pdf"`, `"application/pdf"`, "Wages 50000", `"financialData"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
