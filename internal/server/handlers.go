package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/flags"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/ingest"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/jupiter"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/state"
	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// FlagStore is the subset of the runtime flag store used by the API
type FlagStore interface {
	Upsert(ctx context.Context, key string, value bool) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
}

// Quoter fetches aggregator quotes
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Store   *state.Store   // In-memory pool state, both tiers
	Flags   FlagStore      // Runtime flags (optional)
	Jupiter Quoter         // Aggregator quotes (optional)
	Stats   func() any     // Pipeline counters (optional)
	DevMode bool           // Enable detailed error responses in development
	Logger  *logrus.Logger // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true, Pools: len(h.Store.Index().PoolAddresses())}
	if p, ok := h.Store.NetworkProgress(); ok {
		resp.CurrentSlot = p.CurrentSlot
	}
	return c.JSON(http.StatusOK, resp)
}

// Network returns the latest observed slot progress
func (h *Handlers) Network(c echo.Context) error {
	p, ok := h.Store.NetworkProgress()
	if !ok {
		return h.err(c, http.StatusNotFound, "no slot progress observed yet", nil)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handlers) PipelineStats(c echo.Context) error {
	if h.Stats == nil {
		return h.err(c, http.StatusNotFound, "stats are not configured", nil)
	}
	return c.JSON(http.StatusOK, h.Stats())
}

func (h *Handlers) badTier(c echo.Context) error {
	return h.err(c, http.StatusBadRequest, "invalid tier", map[string]any{"tier": "speculative or durable"})
}

// Pool returns one pool record of a tier
func (h *Handlers) Pool(c echo.Context) error {
	tier, err := models.ParseTier(c.Param("tier"))
	if err != nil {
		return h.badTier(c)
	}
	addr, perr := solana.PublicKeyFromBase58(strings.TrimSpace(c.Param("address")))
	if perr != nil {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": perr.Error()})
	}

	st, ok := h.Store.Get(tier, addr)
	if !ok {
		return h.err(c, http.StatusNotFound, "pool not found", nil)
	}
	return c.JSON(http.StatusOK, ingest.RenderUpdate(h.Store.Index(), &st))
}

// Pools lists the records of a tier, optionally narrowed by symbol or mint.
func (h *Handlers) Pools(c echo.Context) error {
	tier, err := models.ParseTier(c.Param("tier"))
	if err != nil {
		return h.badTier(c)
	}

	symbol := strings.TrimSpace(c.QueryParam("symbol"))
	mintStr := strings.TrimSpace(c.QueryParam("mint"))

	var states []models.TieredState
	switch {
	case symbol != "" && mintStr != "":
		return h.err(c, http.StatusBadRequest, "symbol and mint are mutually exclusive", nil)
	case symbol != "":
		states = h.Store.StatesBySymbol(tier, symbol)
	case mintStr != "":
		mint, perr := solana.PublicKeyFromBase58(mintStr)
		if perr != nil {
			return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": perr.Error()})
		}
		states = h.Store.StatesByMint(tier, mint)
	default:
		h.Store.Range(tier, func(st models.TieredState) bool {
			states = append(states, st)
			return true
		})
	}

	items := make([]*models.PoolUpdate, 0, len(states))
	for i := range states {
		items = append(items, ingest.RenderUpdate(h.Store.Index(), &states[i]))
	}
	return c.JSON(http.StatusOK, PoolsResponse{Tier: tier.String(), Items: items})
}

func (h *Handlers) flagsDisabled(c echo.Context) error {
	return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
}

// FlagsUpsert creates or updates a runtime flag with the given key and value
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsDisabled(c)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate sets the value of the flag named in the path
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsDisabled(c)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsDisabled(c)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsDisabled(c)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a runtime flag by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.flagsDisabled(c)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
