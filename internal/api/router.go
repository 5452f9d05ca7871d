// Package api exposes the decoder and the explorer over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/devblac/state-lens/internal/decoder"
	"github.com/devblac/state-lens/internal/health"
	"github.com/devblac/state-lens/internal/lens"
	"github.com/devblac/state-lens/internal/metrics"
	"github.com/devblac/state-lens/internal/network"
	"github.com/devblac/state-lens/internal/storage"
)

const defaultMaxBody = 1 << 20

// Decoder is the decoder worker surface the API serves.
type Decoder interface {
	Ping(ctx context.Context) (decoder.PingResponse, *decoder.Error)
	Normalize(ctx context.Context, req decoder.Request) decoder.Result
	NormalizeXDR(ctx context.Context, b64 string, asAddress bool) decoder.Result
}

// Inspector is the explorer surface the API serves.
type Inspector interface {
	Inspect(ctx context.Context, contractID string, extraKeys ...string) (*lens.Inspection, error)
	Cached(ctx context.Context, contractID string) ([]lens.Entry, error)
}

// Deps are the collaborators behind the routes. Explorer and Store are
// optional; their routes are not registered when nil.
type Deps struct {
	Decoder      Decoder
	Explorer     Inspector
	Store        *storage.Store
	Health       health.Checker
	Logger       *slog.Logger
	MaxBodyBytes int64
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine with every route wired.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = defaultMaxBody
	}
	h := &handlers{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(d.Logger))

	r.GET("/healthz", gin.WrapH(health.Handler(d.Health)))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api", BodySizeLimiter(d.MaxBodyBytes))
	api.GET("/ping", h.ping)
	api.POST("/normalize", h.normalize)
	api.POST("/decode", h.decode)
	if d.Explorer != nil {
		api.GET("/inspect/:id", h.inspect)
		api.GET("/contracts/:id/entries", h.cachedEntries)
	}
	if d.Store != nil {
		api.GET("/contracts/:id/expanded", h.expandedNodes)
		api.PUT("/contracts/:id/expanded", h.setExpanded)
	}
	return r
}

func (h *handlers) ping(c *gin.Context) {
	resp, perr := h.Decoder.Ping(c.Request.Context())
	if perr != nil {
		c.JSON(http.StatusServiceUnavailable, perr)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) normalize(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.badRequest(c, "read body: "+err.Error())
		return
	}
	req, err := decoder.ParseRequest(body)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	h.respond(c, h.Decoder.Normalize(c.Request.Context(), req))
}

type decodeRequest struct {
	XDR       string `json:"xdr"`
	AsAddress bool   `json:"asAddress"`
}

func (h *handlers) decode(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.XDR) == "" {
		h.badRequest(c, "xdr is required")
		return
	}
	h.respond(c, h.Decoder.NormalizeXDR(c.Request.Context(), strings.TrimSpace(req.XDR), req.AsAddress))
}

func (h *handlers) inspect(c *gin.Context) {
	preds, err := lens.CompileFilter(c.QueryArray("where"))
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	res, err := h.Explorer.Inspect(c.Request.Context(), c.Param("id"), c.QueryArray("key")...)
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := lens.Filter(res.Entries, preds)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	if entries == nil {
		entries = []lens.Entry{}
	}
	res.Entries = entries
	c.JSON(http.StatusOK, res)
}

func (h *handlers) cachedEntries(c *gin.Context) {
	entries, err := h.Explorer.Cached(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *handlers) expandedNodes(c *gin.Context) {
	id, err := network.ValidateContractID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	nodes, err := h.Store.LoadExpandedNodes(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

type expandRequest struct {
	NodeID   string `json:"nodeId"`
	Expanded bool   `json:"expanded"`
}

func (h *handlers) setExpanded(c *gin.Context) {
	id, err := network.ValidateContractID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var req expandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.NodeID) == "" {
		h.badRequest(c, "nodeId is required")
		return
	}
	nodes, err := h.Store.SetNodeExpanded(c.Request.Context(), id, req.NodeID, req.Expanded)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

// respond writes a decoder result with a status derived from its error code.
func (h *handlers) respond(c *gin.Context, res decoder.Result) {
	if !res.IsError() {
		c.JSON(http.StatusOK, res)
		return
	}
	status := http.StatusUnprocessableEntity
	switch res.Err.Code {
	case decoder.CodeInvalidRequest:
		status = http.StatusBadRequest
	case decoder.CodeWorkerStopped:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, res)
}

func (h *handlers) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, &decoder.Error{Code: decoder.CodeInvalidRequest, Message: msg})
}

func (h *handlers) fail(c *gin.Context, err error) {
	if errors.Is(err, network.ErrInvalidContractID) || errors.Is(err, network.ErrEmptyContractID) {
		h.badRequest(c, err.Error())
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"code": "UPSTREAM_FAILED", "message": err.Error()})
}
