// Package domain defines the board model shared by the markdown
// grammar, the persistence gateway, and the sync coordinator.
package domain

import "strings"

// Priority is a card's urgency level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority returns the priority matching s (case-insensitive)
// and whether s named a known priority.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	}
	return PriorityMedium, false
}

// Pillar is a strategic grouping a card may reference by name.
type Pillar struct {
	Icon  string `json:"icon"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Desc  string `json:"desc,omitempty"`
}

// Owner is a team member. Identity is the name; cards reference
// owners by name and the reference may dangle.
type Owner struct {
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
}

// FunctionTag is a short-keyed category. Tags referenced by a card
// but never declared are created implicitly, see Board.EnsureFunction.
type FunctionTag struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Card is a single board item. The ID is ephemeral: it is assigned
// fresh on every parse and never written back to the file. Owner,
// Function and Pillar are name/key references and may dangle.
type Card struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Priority   Priority `json:"priority"`
	Owner      string   `json:"owner,omitempty"`
	Function   string   `json:"fn,omitempty"`
	Pillar     string   `json:"pillar,omitempty"`
	Link       string   `json:"link,omitempty"`
	Note       string   `json:"note,omitempty"`
	Due        string   `json:"due,omitempty"`
	NextAction string   `json:"nextAction,omitempty"`
	MovedAt    string   `json:"movedAt,omitempty"`
}

// Columns holds the four workflow stages in display order.
type Columns struct {
	Now     []Card `json:"now"`
	Next    []Card `json:"next"`
	Waiting []Card `json:"waiting"`
	Done    []Card `json:"done"`
}

// Section is a markdown section outside the recognized grammar,
// carried through parse/serialize verbatim.
type Section struct {
	Heading string   `json:"heading"`
	Lines   []string `json:"lines"`
}

// Board is the full structured state of the file.
type Board struct {
	Pillars   []Pillar      `json:"pillars"`
	Owners    []Owner       `json:"owners"`
	Functions []FunctionTag `json:"functions"`
	Columns   Columns       `json:"columns"`
	Extras    []Section     `json:"extras,omitempty"`
}

// CardCount returns the number of cards across all columns.
func (b *Board) CardCount() int {
	return len(b.Columns.Now) + len(b.Columns.Next) + len(b.Columns.Waiting) + len(b.Columns.Done)
}

// DeriveInitials builds display initials from an owner name when the
// file does not carry them: first letter of the first two words.
func DeriveInitials(name string) string {
	fields := strings.Fields(name)
	var sb strings.Builder
	for i, f := range fields {
		if i == 2 {
			break
		}
		sb.WriteString(strings.ToUpper(f[:1]))
	}
	return sb.String()
}

// Default returns the board seeded on first run when no file exists.
func Default() Board {
	return Board{
		Pillars: []Pillar{
			{Icon: "📦", Name: "Delivery Excellence", Color: "#1565C0", Desc: "Every customer receives their machine without friction"},
			{Icon: "🤝", Name: "Customer Trust", Color: "#2E7D32", Desc: "Support is a competitive moat"},
			{Icon: "☕", Name: "Community", Color: "#6A1B9A", Desc: "Build the definitive social platform for lever espresso"},
			{Icon: "📈", Name: "Growth", Color: "#F0380F", Desc: "Scale production, expand markets, convert momentum into revenue"},
		},
		Owners: []Owner{
			{Name: "Roy", Initials: "RY", Color: "#F0380F"},
		},
		Functions: []FunctionTag{
			{Key: "fulfillment", Label: "Fulfillment / Shipping", Color: "#1565C0"},
			{Key: "manufacturing", Label: "Manufacturing", Color: "#5D4037"},
			{Key: "operations", Label: "Operations", Color: "#455A64"},
			{Key: "website", Label: "Website", Color: "#00838F"},
		},
		Columns: Columns{
			Now: []Card{
				{Title: "Resolve Spanish customs import block", Priority: PriorityHigh, Owner: "Roy", Function: "fulfillment", Pillar: "Delivery Excellence", Link: "[[Meticulous/Shipping/Spain]]", Note: "Coordinate with freight forwarder on HS codes and VAT documentation."},
			},
			Next: []Card{
				{Title: "Shopify store optimization pass", Priority: PriorityLow, Function: "website", Pillar: "Growth"},
			},
			Waiting: []Card{
				{Title: "CE / FCC certifications for new markets", Priority: PriorityHigh, Function: "manufacturing", Pillar: "Growth", Note: "Awaiting test lab results from supplier."},
			},
			Done: []Card{
				{Title: "Kickstarter backer surveys closed", Priority: PriorityLow, Owner: "Roy", Function: "operations", Pillar: "Growth"},
			},
		},
	}
}
