package api

import (
	"context"
	"time"

	"meticulous-api/config"
	"meticulous-api/domain"
)

// Coordinator mediates board reads and debounced writes for handlers.
type Coordinator interface {
	Get(ctx context.Context) (domain.Board, time.Time, error)
	Put(ctx context.Context, board domain.Board) (time.Time, error)
	FileExists() bool
}

// BriefWriter turns a card into a brief document in the vault and
// returns the wiki link to it.
type BriefWriter interface {
	Create(ctx context.Context, card domain.Card, board domain.Board) (string, error)
}

// Settings exposes the live configuration to handlers.
type Settings interface {
	Current() config.Config
	Update(vaultPath, boardFile string) (config.Config, error)
}

const (
	putBoardMaxSize = 1 << 20
	briefMaxSize    = 64 << 10
	configMaxSize   = 16 << 10
)
