package markdown

import (
	"strings"

	"meticulous-api/domain"
)

const (
	boardTitle = "# Meticulous Board"
	noteIndent = "  "
)

// Serialize renders a Board back to the file format. Output is
// deterministic: section order is fixed, card tokens are emitted in
// canonical order, and the same Board always produces identical
// bytes, so a rewrite of an unchanged board is a no-op diff.
func Serialize(b domain.Board) string {
	lines := []string{boardTitle, ""}

	lines = append(lines, "## Pillars")
	for _, p := range b.Pillars {
		lines = append(lines, "- "+pillarItem(p))
	}
	lines = append(lines, "", "## Team")
	for _, o := range b.Owners {
		lines = append(lines, "- "+o.Name+" | "+o.Initials+" | "+o.Color)
	}
	lines = append(lines, "", "## Functions")
	for _, fn := range b.Functions {
		lines = append(lines, "- "+fn.Key+" | "+fn.Label+" | "+fn.Color)
	}

	columns := []struct {
		heading string
		cards   []domain.Card
	}{
		{"Now", b.Columns.Now},
		{"Next Up", b.Columns.Next},
		{"Waiting", b.Columns.Waiting},
		{"Done", b.Columns.Done},
	}
	for _, col := range columns {
		lines = append(lines, "", "## "+col.heading)
		for _, c := range col.cards {
			lines = append(lines, cardLine(c))
			if c.NextAction != "" {
				lines = append(lines, noteIndent+">> "+c.NextAction)
			}
			if c.Note != "" {
				for _, nl := range strings.Split(c.Note, "\n") {
					if nl == "" {
						lines = append(lines, "")
					} else {
						lines = append(lines, noteIndent+nl)
					}
				}
			}
		}
	}

	for _, extra := range b.Extras {
		lines = append(lines, "", "## "+extra.Heading)
		lines = append(lines, extra.Lines...)
	}

	return strings.Join(lines, "\n") + "\n"
}

func pillarItem(p domain.Pillar) string {
	name := p.Name
	if p.Icon != "" {
		name = p.Icon + " " + name
	}
	item := name + " | " + p.Color
	if p.Desc != "" {
		item += " | " + p.Desc
	}
	return item
}

// cardLine emits the card's tokens in canonical order regardless of
// how they were arranged in the source: title, priority, owner,
// function, pillar, due, moved-at, link. The default priority is left
// implicit.
func cardLine(c domain.Card) string {
	parts := []string{"- **" + c.Title + "**"}
	if c.Priority != "" && c.Priority != domain.PriorityMedium {
		parts = append(parts, "["+string(c.Priority)+"]")
	}
	if c.Owner != "" {
		parts = append(parts, "@"+c.Owner)
	}
	if c.Function != "" {
		parts = append(parts, "#"+c.Function)
	}
	if c.Pillar != "" {
		parts = append(parts, ">"+c.Pillar)
	}
	if c.Due != "" {
		parts = append(parts, "!"+c.Due)
	}
	if c.MovedAt != "" {
		parts = append(parts, "^"+c.MovedAt)
	}
	if c.Link != "" {
		link := c.Link
		if !strings.HasPrefix(link, "[[") {
			link = "[[" + link + "]]"
		}
		parts = append(parts, link)
	}
	return strings.Join(parts, " ")
}
