package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"meticulous-api/domain"
)

const briefsSubdir = "Meticulous/Briefs"

var briefNumberRe = regexp.MustCompile(`^brief_(\d+)`)

// BriefStore writes one-off brief documents into the vault. Briefs
// are append-only artifacts: each card sent here becomes a numbered
// markdown file the card can link back to.
type BriefStore struct {
	vaultDir string
	logger   *log.Logger
}

// NewBriefStore creates a brief writer rooted at the vault directory.
func NewBriefStore(vaultDir string, logger *log.Logger) *BriefStore {
	return &BriefStore{vaultDir: vaultDir, logger: logger}
}

// Create renders the brief template for card, writes it atomically as
// the next numbered brief file, and returns the wiki link to it.
// Function labels resolve through the board's declared tags.
func (s *BriefStore) Create(ctx context.Context, card domain.Card, board domain.Board) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := filepath.Join(s.vaultDir, filepath.FromSlash(briefsSubdir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create briefs dir: %w", err)
	}

	num, err := nextBriefNumber(dir)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("brief_%02d_%s.md", num, slugify(card.Title))
	path := filepath.Join(dir, name)

	if _, err := writeAtomic(dir, path, renderBrief(card, board)); err != nil {
		return "", fmt.Errorf("write brief: %w", err)
	}
	s.logger.WithFields(log.Fields{"brief": name, "card": card.Title}).Info("brief created")

	stem := strings.TrimSuffix(name, ".md")
	return "[[" + briefsSubdir + "/" + stem + "]]", nil
}

// nextBriefNumber scans existing brief files and returns one past the
// highest number found, so deleted briefs never cause reuse.
func nextBriefNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("list briefs dir: %w", err)
	}
	highest := 0
	for _, e := range entries {
		m := briefNumberRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// slugify reduces a card title to a filename-safe slug: lowercase
// ASCII letters, digits and hyphens, capped at 60 bytes.
func slugify(title string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_' || r == '\t':
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
		if sb.Len() >= 60 {
			break
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

func renderBrief(card domain.Card, board domain.Board) string {
	title := card.Title
	if title == "" {
		title = "Untitled"
	}
	lines := []string{
		"# " + title,
		"",
		"## Objective",
		"_What needs to happen and why._",
		"",
		"## Context",
	}
	if card.Owner != "" {
		lines = append(lines, "- **Owner:** "+card.Owner)
	}
	if label := functionLabel(card.Function, board); label != "" {
		lines = append(lines, "- **Function:** "+label)
	}
	lines = append(lines, "- **Priority:** "+capitalize(string(priorityOrDefault(card))))
	if card.Due != "" {
		lines = append(lines, "- **Due:** "+card.Due)
	}
	lines = append(lines, "- **Created:** "+time.Now().Format("2006-01-02"))
	lines = append(lines,
		"",
		"## Current Situation",
		"_What is the current state? What has already been tried or decided?_",
		"",
		"## Actions Required",
		"- [ ] ",
		"- [ ] ",
		"- [ ] ",
		"",
		"## Deliverables",
		"_List what needs to be produced (email draft, document, ticket, etc.):_",
		"- ",
		"",
		"## Done When",
		"- ",
		"",
		"## Notes",
	)
	if card.Note != "" {
		lines = append(lines, card.Note)
	} else {
		lines = append(lines, "")
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func functionLabel(key string, board domain.Board) string {
	if key == "" {
		return ""
	}
	if fn, ok := board.Function(key); ok {
		return fn.Label
	}
	return capitalize(key)
}

func priorityOrDefault(card domain.Card) domain.Priority {
	if card.Priority == "" {
		return domain.PriorityMedium
	}
	return card.Priority
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
