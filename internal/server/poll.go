package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/route"
	"github.com/dgnsrekt/tgin/internal/update"
)

// pollBody is the JSON form of the fetch parameters.
type pollBody struct {
	Offset  *int64 `json:"offset"`
	Timeout *int64 `json:"timeout"`
	Limit   *int64 `json:"limit"`
}

// handlePoll serves a blocking fetch on any path a long-poll queue is
// registered at.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params, err := s.parsePollParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, ok := s.opts.Registry.Lookup(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("path %s not found", r.URL.Path))
		return
	}

	res, err := q.Poll(r.Context(), params)
	if err != nil {
		// Client gone or server shutting down. Nothing was drained, so an
		// empty batch is always a safe answer.
		s.logger.Debug("poll abandoned",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		res = route.PollResult{OK: true, Result: []update.Update{}}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) parsePollParams(r *http.Request) (route.PollParams, error) {
	var body pollBody

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if r.Method == http.MethodPost && mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		switch err := dec.Decode(&body); {
		case errors.Is(err, io.EOF):
			// Empty body: defaults apply.
		case err != nil:
			return route.PollParams{}, errors.New("invalid json body")
		default:
			if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
				return route.PollParams{}, errors.New("invalid json body: trailing data")
			}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return route.PollParams{}, errors.New("invalid form body")
		}
		for name, dst := range map[string]**int64{
			"offset":  &body.Offset,
			"timeout": &body.Timeout,
			"limit":   &body.Limit,
		} {
			raw := r.Form.Get(name)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return route.PollParams{}, fmt.Errorf("%s must be an integer", name)
			}
			*dst = &v
		}
	}

	params := route.PollParams{Offset: body.Offset}
	if body.Timeout != nil {
		if *body.Timeout < 0 {
			return route.PollParams{}, errors.New("timeout must be >= 0")
		}
		seconds := min(*body.Timeout, int64(math.MaxInt64/time.Second))
		params.Timeout = time.Duration(seconds) * time.Second
		if ceiling := s.opts.MaxPollTimeout; ceiling > 0 && params.Timeout > ceiling {
			params.Timeout = ceiling
		}
	}
	if body.Limit != nil {
		if *body.Limit < 0 {
			return route.PollParams{}, errors.New("limit must be >= 0")
		}
		params.Limit = int(*body.Limit)
	}
	return params, nil
}
