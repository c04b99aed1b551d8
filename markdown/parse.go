// Package markdown maps the board file's text format to and from the
// domain model. Parse never fails: malformed lines are skipped and
// the rest of the file is kept, because the file is hand-edited and a
// single bad line must not throw the board away.
package markdown

import (
	"strings"

	"github.com/google/uuid"

	"meticulous-api/domain"
)

type sectionKind int

const (
	sectionNone sectionKind = iota
	sectionPillars
	sectionTeam
	sectionFunctions
	sectionColumn
	sectionExtra
)

const defaultColor = "#1F1F1F"

// Parse reads the board file text into a Board. Card IDs are
// generated fresh on every call; the file itself stores none.
func Parse(text string) domain.Board {
	board := domain.Board{
		Pillars:   []domain.Pillar{},
		Owners:    []domain.Owner{},
		Functions: []domain.FunctionTag{},
		Columns: domain.Columns{
			Now:     []domain.Card{},
			Next:    []domain.Card{},
			Waiting: []domain.Card{},
			Done:    []domain.Card{},
		},
	}

	var (
		section sectionKind
		column  *[]domain.Card
		current *domain.Card
		note    noteBuilder
		extra   *domain.Section
	)

	flushCard := func() {
		if current == nil {
			return
		}
		current.Note = note.String()
		*column = append(*column, *current)
		current = nil
		note.Reset()
	}
	flushExtra := func() {
		if extra == nil {
			return
		}
		extra.Lines = trimTrailingBlanks(extra.Lines)
		board.Extras = append(board.Extras, *extra)
		extra = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")

		if strings.HasPrefix(line, "## ") {
			flushCard()
			flushExtra()
			heading := strings.TrimSpace(line[3:])
			section, column = classifyHeading(&board, heading)
			if section == sectionExtra {
				extra = &domain.Section{Heading: heading, Lines: []string{}}
			}
			continue
		}
		if strings.HasPrefix(line, "# ") {
			continue
		}

		switch section {
		case sectionPillars:
			if item, ok := listItem(line); ok {
				if p, ok := parsePillarLine(item); ok {
					board.Pillars = append(board.Pillars, p)
				}
			}
		case sectionTeam:
			if item, ok := listItem(line); ok {
				if o, ok := parseOwnerLine(item); ok {
					board.Owners = append(board.Owners, o)
				}
			}
		case sectionFunctions:
			if item, ok := listItem(line); ok {
				if fn, ok := parseFunctionLine(item); ok {
					board.Functions = append(board.Functions, fn)
				}
			}
		case sectionColumn:
			switch {
			case isCardLine(line):
				flushCard()
				item := strings.TrimSpace(line)[2:]
				if c, ok := parseCardLine(item); ok {
					current = &c
				}
			case current != nil && line == "":
				note.Blank()
			case current != nil && isIndented(line):
				content := strings.TrimSpace(line)
				if after, ok := strings.CutPrefix(content, ">> "); ok && current.NextAction == "" {
					current.NextAction = strings.TrimSpace(after)
				} else if content != "" {
					note.Line(content)
				}
			default:
				// Non-indented content (including a list item with no
				// bold title) ends the current card and is skipped.
				flushCard()
			}
		case sectionExtra:
			extra.Lines = append(extra.Lines, line)
		}
	}
	flushCard()
	flushExtra()

	// Tags referenced by cards but never declared become implicit
	// function declarations with stable colors.
	for _, col := range []*[]domain.Card{&board.Columns.Now, &board.Columns.Next, &board.Columns.Waiting, &board.Columns.Done} {
		for _, c := range *col {
			if c.Function != "" {
				board.EnsureFunction(c.Function)
			}
		}
	}
	return board
}

func classifyHeading(board *domain.Board, heading string) (sectionKind, *[]domain.Card) {
	switch strings.ToLower(heading) {
	case "pillars":
		return sectionPillars, nil
	case "team":
		return sectionTeam, nil
	case "functions":
		return sectionFunctions, nil
	case "now":
		return sectionColumn, &board.Columns.Now
	case "next up", "next":
		return sectionColumn, &board.Columns.Next
	case "waiting":
		return sectionColumn, &board.Columns.Waiting
	case "done":
		return sectionColumn, &board.Columns.Done
	}
	return sectionExtra, nil
}

func listItem(line string) (string, bool) {
	if after, ok := strings.CutPrefix(line, "- "); ok {
		return strings.TrimSpace(after), true
	}
	return "", false
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

// isCardLine reports whether the line starts a card. Indented list
// items count only when they carry the bold title marker, so nested
// plain bullets stay inside the preceding card's note.
func isCardLine(line string) bool {
	if strings.HasPrefix(line, "- ") {
		return true
	}
	trimmed := strings.TrimSpace(line)
	return isIndented(line) && strings.HasPrefix(trimmed, "- **")
}

// parsePillarLine parses "📦 Delivery Excellence | #1565C0 | desc".
func parsePillarLine(item string) (domain.Pillar, bool) {
	parts := splitFields(item)
	if len(parts) < 2 {
		return domain.Pillar{}, false
	}
	icon, name := splitIcon(parts[0])
	if name == "" {
		return domain.Pillar{}, false
	}
	p := domain.Pillar{Icon: icon, Name: name, Color: fieldOr(parts, 1, defaultColor)}
	if len(parts) >= 3 {
		p.Desc = parts[2]
	}
	return p, true
}

// parseOwnerLine parses "Roy | RY | #F0380F".
func parseOwnerLine(item string) (domain.Owner, bool) {
	parts := splitFields(item)
	if len(parts) < 2 || parts[0] == "" {
		return domain.Owner{}, false
	}
	o := domain.Owner{Name: parts[0], Initials: parts[1], Color: fieldOr(parts, 2, defaultColor)}
	if o.Initials == "" {
		o.Initials = domain.DeriveInitials(o.Name)
	}
	return o, true
}

// parseFunctionLine parses "fulfillment | Fulfillment / Shipping | #1565C0".
func parseFunctionLine(item string) (domain.FunctionTag, bool) {
	parts := splitFields(item)
	if len(parts) < 2 || parts[0] == "" {
		return domain.FunctionTag{}, false
	}
	key := strings.ToLower(parts[0])
	fn := domain.FunctionTag{Key: key, Label: parts[1], Color: fieldOr(parts, 2, domain.FallbackColor(key))}
	if fn.Label == "" {
		fn.Label = key
	}
	return fn, true
}

func splitFields(item string) []string {
	parts := strings.Split(item, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func fieldOr(parts []string, i int, fallback string) string {
	if i < len(parts) && parts[i] != "" {
		return parts[i]
	}
	return fallback
}

// splitIcon separates the leading glyph token from a pillar name. A
// single-token field is all name, so icon-less pillars round-trip.
func splitIcon(field string) (icon, name string) {
	first, rest, found := strings.Cut(field, " ")
	if !found {
		return "", field
	}
	return first, strings.TrimSpace(rest)
}

// parseCardLine parses a card item. The bold title is mandatory;
// everything after it is a bag of sigil-prefixed tokens in any order.
// Lines without a title are not cards and are skipped.
func parseCardLine(item string) (domain.Card, bool) {
	title, rest, ok := splitTitle(item)
	if !ok {
		return domain.Card{}, false
	}
	card := domain.Card{
		ID:       uuid.NewString(),
		Title:    title,
		Priority: domain.PriorityMedium,
	}
	scanTokens(&card, rest)
	return card, true
}

func splitTitle(item string) (title, rest string, ok bool) {
	start := strings.Index(item, "**")
	if start < 0 {
		return "", "", false
	}
	end := strings.Index(item[start+2:], "**")
	if end < 0 {
		return "", "", false
	}
	title = strings.TrimSpace(item[start+2 : start+2+end])
	if title == "" {
		return "", "", false
	}
	return title, item[:start] + " " + item[start+2+end+2:], true
}

// scanTokens walks the text once, dispatching on sigils. Assignments
// overwrite, so when the same token appears twice the last one wins.
// Text that matches no sigil is ignored rather than rejected.
func scanTokens(card *domain.Card, text string) {
	i := 0
	for i < len(text) {
		if !sigilStart(text, i) {
			i++
			continue
		}
		switch text[i] {
		case '[':
			if strings.HasPrefix(text[i:], "[[") {
				if end := strings.Index(text[i+2:], "]]"); end >= 0 {
					card.Link = "[[" + strings.TrimSpace(text[i+2:i+2+end]) + "]]"
					i += end + 4
					continue
				}
			}
			if end := strings.IndexByte(text[i+1:], ']'); end >= 0 {
				if p, ok := domain.ParsePriority(strings.TrimSpace(text[i+1 : i+1+end])); ok {
					card.Priority = p
				}
				i += end + 2
				continue
			}
			i++
		case '@':
			val, n := scanUntilSigil(text[i+1:])
			if val != "" {
				card.Owner = val
			}
			i += n + 1
		case '#':
			val := scanWord(text[i+1:])
			if val != "" {
				card.Function = strings.ToLower(val)
			}
			i += len(val) + 1
		case '>':
			val, n := scanUntilSigil(text[i+1:])
			if val != "" {
				card.Pillar = val
			}
			i += n + 1
		case '!':
			if d, ok := scanDate(text[i+1:]); ok {
				card.Due = d
				i += len(d) + 1
			} else {
				i++
			}
		case '^':
			if d, ok := scanDate(text[i+1:]); ok {
				card.MovedAt = d
				i += len(d) + 1
			} else {
				i++
			}
		default:
			i++
		}
	}
}

// sigilStart reports whether position i begins a token: a sigil byte
// at the start of a word. Sigils embedded mid-word (an email address,
// "Growth>2x") are plain text.
func sigilStart(text string, i int) bool {
	switch text[i] {
	case '[', '@', '#', '>', '!', '^':
		return i == 0 || text[i-1] == ' ' || text[i-1] == '\t'
	}
	return false
}

// scanUntilSigil consumes the multi-word value of an @ or > token: it
// runs to the start of the next token or the end of the line.
func scanUntilSigil(s string) (string, int) {
	for j := 1; j < len(s); j++ {
		if sigilStart(s, j) {
			return strings.TrimSpace(s[:j]), j
		}
	}
	return strings.TrimSpace(s), len(s)
}

func scanWord(s string) string {
	for j := 0; j < len(s); j++ {
		if s[j] == ' ' || s[j] == '\t' {
			return s[:j]
		}
	}
	return s
}

// scanDate accepts exactly YYYY-MM-DD.
func scanDate(s string) (string, bool) {
	if len(s) < 10 {
		return "", false
	}
	for i, c := range s[:10] {
		if i == 4 || i == 7 {
			if c != '-' {
				return "", false
			}
			continue
		}
		if c < '0' || c > '9' {
			return "", false
		}
	}
	if len(s) > 10 && s[10] != ' ' && s[10] != '\t' {
		return "", false
	}
	return s[:10], true
}

// noteBuilder accumulates dedented note lines, preserving blank lines
// between note content and dropping trailing ones.
type noteBuilder struct {
	sb      strings.Builder
	pending int
}

func (n *noteBuilder) Line(content string) {
	if n.sb.Len() > 0 {
		for k := 0; k <= n.pending; k++ {
			n.sb.WriteByte('\n')
		}
	}
	n.pending = 0
	n.sb.WriteString(content)
}

func (n *noteBuilder) Blank() {
	if n.sb.Len() > 0 {
		n.pending++
	}
}

func (n *noteBuilder) String() string { return n.sb.String() }

func (n *noteBuilder) Reset() {
	n.sb.Reset()
	n.pending = 0
}

func trimTrailingBlanks(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
