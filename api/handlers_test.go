package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"meticulous-api/boardsync"
	"meticulous-api/config"
	"meticulous-api/domain"
)

type mockCoordinator struct {
	board  domain.Board
	mtime  time.Time
	getErr error
	putErr error

	putCount int
	lastPut  domain.Board
	exists   bool
}

func (m *mockCoordinator) Get(ctx context.Context) (domain.Board, time.Time, error) {
	if m.getErr != nil {
		return domain.Board{}, time.Time{}, m.getErr
	}
	return m.board, m.mtime, nil
}

func (m *mockCoordinator) Put(ctx context.Context, board domain.Board) (time.Time, error) {
	if m.putErr != nil {
		return time.Time{}, m.putErr
	}
	m.putCount++
	m.lastPut = board
	return m.mtime, nil
}

func (m *mockCoordinator) FileExists() bool { return m.exists }

type mockBriefs struct {
	link     string
	err      error
	lastCard domain.Card
}

func (m *mockBriefs) Create(ctx context.Context, card domain.Card, board domain.Board) (string, error) {
	m.lastCard = card
	return m.link, m.err
}

type mockSettings struct {
	cfg       config.Config
	updateErr error
	updated   []string
}

func (m *mockSettings) Current() config.Config { return m.cfg }

func (m *mockSettings) Update(vaultPath, boardFile string) (config.Config, error) {
	if m.updateErr != nil {
		return config.Config{}, m.updateErr
	}
	m.updated = []string{vaultPath, boardFile}
	if vaultPath != "" {
		m.cfg.VaultPath = vaultPath
	}
	if boardFile != "" {
		m.cfg.BoardFile = boardFile
	}
	return m.cfg, nil
}

func newContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetBoardReturnsBoardAndMtime(t *testing.T) {
	logger, _ := test.NewNullLogger()
	coord := &mockCoordinator{
		board: domain.Default(),
		mtime: time.Unix(1700000000, 500000000),
	}
	c, rec := newContext(http.MethodGet, "/api/board", "")

	if err := getBoard(coord, logger)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp boardResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Mtime != mtimeSeconds(coord.mtime) {
		t.Fatalf("mtime = %v, want %v", resp.Mtime, mtimeSeconds(coord.mtime))
	}
	defaultBoard := domain.Default()
	if resp.Board.CardCount() != defaultBoard.CardCount() {
		t.Fatalf("expected %d cards, got %d", defaultBoard.CardCount(), resp.Board.CardCount())
	}
}

func TestGetBoardReadFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	coord := &mockCoordinator{getErr: errors.New("disk gone")}
	c, rec := newContext(http.MethodGet, "/api/board", "")

	if err := getBoard(coord, logger)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestPutBoardStoresAndReturnsMtime(t *testing.T) {
	coord := &mockCoordinator{mtime: time.Unix(1700000100, 0)}
	body := `{"pillars":[],"owners":[],"functions":[],"columns":{"now":[{"id":"x","title":"Ship it","priority":"high"}],"next":[],"waiting":[],"done":[]}}`
	c, rec := newContext(http.MethodPut, "/api/board", body)

	if err := putBoard(coord)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if coord.putCount != 1 {
		t.Fatalf("expected 1 put, got %d", coord.putCount)
	}
	if coord.lastPut.Columns.Now[0].Title != "Ship it" {
		t.Fatalf("board not delivered to coordinator: %#v", coord.lastPut.Columns)
	}

	var resp putBoardResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Mtime != mtimeSeconds(coord.mtime) {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPutBoardRejectsInvalidJSON(t *testing.T) {
	coord := &mockCoordinator{}
	c, rec := newContext(http.MethodPut, "/api/board", "{not json")

	if err := putBoard(coord)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if coord.putCount != 0 {
		t.Fatal("invalid body must not reach the coordinator")
	}
}

func TestPutBoardRejectsUnknownFields(t *testing.T) {
	coord := &mockCoordinator{}
	c, rec := newContext(http.MethodPut, "/api/board", `{"surprise":true}`)

	if err := putBoard(coord)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPutBoardAfterShutdown(t *testing.T) {
	coord := &mockCoordinator{putErr: boardsync.ErrClosed}
	c, rec := newContext(http.MethodPut, "/api/board", `{"columns":{"now":[],"next":[],"waiting":[],"done":[]}}`)

	if err := putBoard(coord)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPostBriefReturnsLink(t *testing.T) {
	coord := &mockCoordinator{board: domain.Default()}
	briefs := &mockBriefs{link: "[[Meticulous/Briefs/brief_01_fix-invoice-bug]]"}
	c, rec := newContext(http.MethodPost, "/api/brief", `{"id":"c1","title":"Fix invoice bug","priority":"high","owner":"Roy","fn":"billing"}`)

	if err := postBrief(coord, briefs)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if briefs.lastCard.Title != "Fix invoice bug" {
		t.Fatalf("card not delivered: %#v", briefs.lastCard)
	}

	var resp briefResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Link != briefs.link {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPostBriefWriteFailure(t *testing.T) {
	coord := &mockCoordinator{}
	briefs := &mockBriefs{err: errors.New("vault unwritable")}
	c, rec := newContext(http.MethodPost, "/api/brief", `{"title":"T"}`)

	if err := postBrief(coord, briefs)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPingReportsVaultAndFile(t *testing.T) {
	coord := &mockCoordinator{exists: true}
	settings := &mockSettings{cfg: config.Config{VaultPath: "/srv/vault", BoardFile: "Meticulous/Board.md"}}
	c, rec := newContext(http.MethodGet, "/ping", "")

	if err := ping(coord, settings)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var resp pingResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Vault != "/srv/vault" || resp.BoardFile != "Meticulous/Board.md" || !resp.FileExists {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	settings := &mockSettings{cfg: config.Config{VaultPath: "/old", BoardFile: "Board.md"}}

	c, rec := newContext(http.MethodPost, "/config", `{"vault_path":"/new","board_file":""}`)
	if err := postConfig(settings)(c); err != nil {
		t.Fatalf("post handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d", rec.Code)
	}
	if len(settings.updated) != 2 || settings.updated[0] != "/new" {
		t.Fatalf("update not invoked correctly: %#v", settings.updated)
	}

	c, rec = newContext(http.MethodGet, "/config", "")
	if err := getConfig(settings)(c); err != nil {
		t.Fatalf("get handler: %v", err)
	}
	var resp configPayload
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.VaultPath != "/new" || resp.BoardFile != "Board.md" {
		t.Fatalf("unexpected config: %+v", resp)
	}
}

func TestPostConfigRejectsInvalidJSON(t *testing.T) {
	settings := &mockSettings{}
	c, rec := newContext(http.MethodPost, "/config", `nope`)

	if err := postConfig(settings)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if settings.updated != nil {
		t.Fatal("invalid body must not update settings")
	}
}

func TestHealthz(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/healthz", "")
	if err := healthz()(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
