package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"meticulous-api/boardsync"
	"meticulous-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, coord Coordinator, briefs BriefWriter, settings Settings, logger *log.Logger) {
	e.GET("/api/board", getBoard(coord, logger))
	e.PUT("/api/board", putBoard(coord))
	e.POST("/api/brief", postBrief(coord, briefs))
	e.GET("/ping", ping(coord, settings))
	e.GET("/config", getConfig(settings))
	e.POST("/config", postConfig(settings))
	e.GET("/healthz", healthz())
}

type boardResponse struct {
	Board domain.Board `json:"board"`
	Mtime float64      `json:"mtime"`
}

type putBoardResponse struct {
	OK    bool    `json:"ok"`
	Mtime float64 `json:"mtime"`
}

type briefResponse struct {
	OK   bool   `json:"ok"`
	Link string `json:"link"`
}

type pingResponse struct {
	OK         bool   `json:"ok"`
	Vault      string `json:"vault"`
	BoardFile  string `json:"board_file"`
	FileExists bool   `json:"file_exists"`
}

type configPayload struct {
	VaultPath string `json:"vault_path"`
	BoardFile string `json:"board_file"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// mtimeSeconds renders a modification time as fractional unix
// seconds, the representation board clients already store and echo
// back for staleness checks.
func mtimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(coord Coordinator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		readStart := time.Now()
		board, mtime, readErr := coord.Get(ctx)
		metrics.ObserveRead(time.Since(readStart))
		if readErr != nil {
			metrics.SetErrorStage("read")
			c.Logger().Error(readErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: readErr.Error()})
			return err
		}
		metrics.SetCardsReturned(board.CardCount())

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, boardResponse{Board: board, Mtime: mtimeSeconds(mtime)})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func putBoard(coord Coordinator) echo.HandlerFunc {
	return func(c echo.Context) error {
		lr := io.LimitReader(c.Request().Body, putBoardMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var board domain.Board
		if err := dec.Decode(&board); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		mtime, err := coord.Put(c.Request().Context(), board)
		if err != nil {
			if errors.Is(err, boardsync.ErrClosed) {
				return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "server shutting down"})
			}
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, putBoardResponse{OK: true, Mtime: mtimeSeconds(mtime)})
	}
}

func postBrief(coord Coordinator, briefs BriefWriter) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		lr := io.LimitReader(c.Request().Body, briefMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var card domain.Card
		if err := dec.Decode(&card); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		// Function labels in the brief resolve through the board's
		// declared tags; a read failure only degrades the label.
		board, _, err := coord.Get(ctx)
		if err != nil {
			board = domain.Board{}
		}

		link, err := briefs.Create(ctx, card, board)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, briefResponse{OK: true, Link: link})
	}
}

func ping(coord Coordinator, settings Settings) echo.HandlerFunc {
	return func(c echo.Context) error {
		cfg := settings.Current()
		return c.JSON(http.StatusOK, pingResponse{
			OK:         true,
			Vault:      cfg.VaultPath,
			BoardFile:  cfg.BoardFile,
			FileExists: coord.FileExists(),
		})
	}
}

func getConfig(settings Settings) echo.HandlerFunc {
	return func(c echo.Context) error {
		cfg := settings.Current()
		return c.JSON(http.StatusOK, configPayload{VaultPath: cfg.VaultPath, BoardFile: cfg.BoardFile})
	}
}

func postConfig(settings Settings) echo.HandlerFunc {
	return func(c echo.Context) error {
		lr := io.LimitReader(c.Request().Body, configMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var payload configPayload
		if err := dec.Decode(&payload); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if _, err := settings.Update(payload.VaultPath, payload.BoardFile); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, okResponse{OK: true})
	}
}
