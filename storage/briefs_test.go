package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"meticulous-api/domain"
)

func TestCreateBriefWritesTemplateAndLink(t *testing.T) {
	logger, _ := test.NewNullLogger()
	vault := t.TempDir()
	briefs := NewBriefStore(vault, logger)

	board := domain.Board{Functions: []domain.FunctionTag{{Key: "fulfillment", Label: "Fulfillment / Shipping", Color: "#1565C0"}}}
	card := domain.Card{
		Title:    "Resolve Spanish customs import block",
		Priority: domain.PriorityHigh,
		Owner:    "Roy",
		Function: "fulfillment",
		Due:      "2026-09-15",
		Note:     "Coordinate with freight forwarder.",
	}

	link, err := briefs.Create(context.Background(), card, board)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := "[[Meticulous/Briefs/brief_01_resolve-spanish-customs-import-block]]"
	if link != want {
		t.Fatalf("unexpected link: %q want %q", link, want)
	}

	data, err := os.ReadFile(filepath.Join(vault, "Meticulous", "Briefs", "brief_01_resolve-spanish-customs-import-block.md"))
	if err != nil {
		t.Fatalf("read brief: %v", err)
	}
	content := string(data)
	for _, fragment := range []string{
		"# Resolve Spanish customs import block",
		"- **Owner:** Roy",
		"- **Function:** Fulfillment / Shipping",
		"- **Priority:** High",
		"- **Due:** 2026-09-15",
		"Coordinate with freight forwarder.",
	} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("brief missing %q:\n%s", fragment, content)
		}
	}
}

func TestCreateBriefNumbersPastHighest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	vault := t.TempDir()
	dir := filepath.Join(vault, "Meticulous", "Briefs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"brief_01_a.md", "brief_07_b.md", "notes.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	briefs := NewBriefStore(vault, logger)
	link, err := briefs.Create(context.Background(), domain.Card{Title: "Next"}, domain.Board{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(link, "brief_08_next") {
		t.Fatalf("expected brief number 08, got %q", link)
	}
}

func TestCreateBriefDanglingFunctionFallsBack(t *testing.T) {
	logger, _ := test.NewNullLogger()
	vault := t.TempDir()
	briefs := NewBriefStore(vault, logger)

	link, err := briefs.Create(context.Background(), domain.Card{Title: "T", Function: "roast"}, domain.Board{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(vault, "Meticulous", "Briefs", strings.TrimPrefix(strings.TrimSuffix(link, "]]"), "[[Meticulous/Briefs/")+".md"))
	if err != nil {
		t.Fatalf("read brief: %v", err)
	}
	if !strings.Contains(string(data), "- **Function:** Roast") {
		t.Fatalf("expected capitalized dangling key, got:\n%s", data)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Fix invoice bug":            "fix-invoice-bug",
		"  CE / FCC  certifications": "ce-fcc-certifications",
		"émigré notes":               "migr-notes",
		"___":                        "untitled",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
