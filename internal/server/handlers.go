package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	mgmt "github.com/dgnsrekt/tgin/internal/api"
	"github.com/dgnsrekt/tgin/internal/config"
	"github.com/dgnsrekt/tgin/internal/manage"
	"github.com/dgnsrekt/tgin/internal/route"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := mgmt.Health{
		Status: "ok",
		Queues: s.opts.Registry.Paths(),
	}
	if s.opts.Ingested != nil {
		h.Ingested = s.opts.Ingested()
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CommandTimeout)
	defer cancel()

	d, err := s.opts.Manager.ListRoutes(ctx)
	if err != nil {
		s.logger.Warn("list routes failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAddRoute(w http.ResponseWriter, r *http.Request) {
	var req mgmt.AddRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if req.Type == config.TypeLongPoll && s.isMounted(req.Path) {
		writeError(w, http.StatusConflict, fmt.Sprintf("path %s is already served by another handler", req.Path))
		return
	}

	leaf, err := route.NewLeaf(config.RouteConfig{
		Type: req.Type,
		Path: req.Path,
		URL:  req.URL,
	}, route.Deps{
		Registry: s.opts.Registry,
		Relay:    s.opts.Relay,
		Logger:   s.logger,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CommandTimeout)
	defer cancel()

	err = s.opts.Manager.AddRoute(ctx, leaf, req.Sublevel)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, leaf.Describe())
	case errors.Is(err, manage.ErrSublevelNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, route.ErrLockContention):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Warn("add route failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}
