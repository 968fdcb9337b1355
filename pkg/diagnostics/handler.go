// Package diagnostics exposes read-mostly HTTP view of a resource manager.
package diagnostics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aldor007/redisres/pkg/middleware"
	"github.com/aldor007/redisres/pkg/monitoring"
	"github.com/aldor007/redisres/pkg/resource"
	"github.com/aldor007/redisres/pkg/response"
)

// DebugHeader makes error responses include error message
const DebugHeader = "X-Redisres-Debug"

// Handler serves resource manager state. Manager calls are serialized with lock.
type Handler struct {
	manager *resource.Manager
	lock    sync.Mutex
	timeout time.Duration
}

// Resource is JSON view of single resource, password is never exposed
type Resource struct {
	ID           string            `json:"id"`
	Server       resource.Server   `json:"server"`
	HasPassword  bool              `json:"has_password"`
	PersistentID string            `json:"persistent_id,omitempty"`
	Database     int               `json:"database"`
	Serializer   string            `json:"serializer,omitempty"`
	LibOptions   map[string]string `json:"lib_options,omitempty"`
	Connected    bool              `json:"connected"`
}

// Version is JSON view of server version
type Version struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Major   int    `json:"major"`
}

// NewHandler creates handler, timeout bounds connection and version lookups of single request
func NewHandler(m *resource.Manager, timeout time.Duration) *Handler {
	return &Handler{manager: m, timeout: timeout}
}

// Router returns chi router with every diagnostics route. metrics is mounted under /metrics when not nil.
func (h *Handler) Router(accessLog bool, metrics http.Handler) chi.Router {
	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.NewAccessLogMiddleware(accessLog).Handler)

	router.Get("/healthz", func(resWriter http.ResponseWriter, _ *http.Request) {
		response.NewJSON(200, map[string]string{"status": "ok"}).Send(resWriter)
	})
	router.Route("/resources", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.remove)
		r.Post("/{id}/connect", h.connect)
		r.Get("/{id}/version", h.version)
	})

	if metrics != nil {
		router.Handle("/metrics", metrics)
	}

	return router
}

func (h *Handler) list(resWriter http.ResponseWriter, req *http.Request) {
	h.lock.Lock()
	ids := h.manager.IDs()
	h.lock.Unlock()

	response.NewJSON(200, map[string][]string{"resources": ids}).Send(resWriter)
}

func (h *Handler) get(resWriter http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	h.lock.Lock()
	view, err := h.view(id)
	h.lock.Unlock()

	if err != nil {
		h.sendError(resWriter, req, id, err)
		return
	}

	response.NewJSON(200, view).Send(resWriter)
}

func (h *Handler) remove(resWriter http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	h.lock.Lock()
	err := h.manager.RemoveResource(id)
	h.lock.Unlock()

	if err != nil {
		h.sendError(resWriter, req, id, err)
		return
	}

	monitoring.Log().Info("diagnostics resource removed", zap.String("resource", id))
	response.NewNoContent(204).Send(resWriter)
}

func (h *Handler) connect(resWriter http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	ctx, cancel := h.context(req)
	defer cancel()

	h.lock.Lock()
	_, err := h.manager.GetResource(ctx, id)
	var view Resource
	if err == nil {
		view, err = h.view(id)
	}
	h.lock.Unlock()

	if err != nil {
		h.sendError(resWriter, req, id, err)
		return
	}

	response.NewJSON(200, view).Send(resWriter)
}

func (h *Handler) version(resWriter http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	ctx, cancel := h.context(req)
	defer cancel()

	h.lock.Lock()
	version, err := h.manager.GetVersion(ctx, id)
	h.lock.Unlock()

	if err != nil {
		h.sendError(resWriter, req, id, err)
		return
	}

	major, err := resource.MajorVersion(version)
	if err != nil {
		h.sendError(resWriter, req, id, err)
		return
	}

	response.NewJSON(200, Version{ID: id, Version: version, Major: major}).Send(resWriter)
}

func (h *Handler) view(id string) (Resource, error) {
	cfg, err := h.manager.GetConfig(id)
	if err != nil {
		return Resource{}, err
	}

	return Resource{
		ID:           id,
		Server:       cfg.Server,
		HasPassword:  cfg.Password != "",
		PersistentID: cfg.PersistentID,
		Database:     cfg.Database,
		Serializer:   cfg.Serializer,
		LibOptions:   cfg.LibOptions,
		Connected:    h.manager.IsConnected(id),
	}, nil
}

func (h *Handler) context(req *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(req.Context())
	}

	return context.WithTimeout(req.Context(), h.timeout)
}

func (h *Handler) sendError(resWriter http.ResponseWriter, req *http.Request, id string, err error) {
	status := errorStatus(err)
	if status >= 500 {
		monitoring.Log().Warn("diagnostics request error", zap.String("resource", id), zap.Int("status", status),
			zap.Error(err))
	}

	response.NewError(status, err).SetDebug(req.Header.Get(DebugHeader) != "").Send(resWriter)
}

// errorStatus maps resource error kinds onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, resource.ErrNotFound):
		return 404
	case errors.Is(err, resource.ErrInvalidConfiguration):
		return 400
	case errors.Is(err, resource.ErrConnection):
		return 502
	default:
		return 500
	}
}
