package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oxtoacart/bpool"
	"github.com/pandodao/anchor-store/core"
	"github.com/pandodao/anchor-store/store/payload"
	"github.com/pandodao/generic"
)

const maxBodySize = 32 << 20

type Server struct {
	payloads core.PayloadStore
	logger   *slog.Logger
	buffers  *bpool.BufferPool
}

func New(payloads core.PayloadStore, logger *slog.Logger) *Server {
	return &Server{
		payloads: payloads,
		logger:   logger.With("server", "api"),
		buffers:  bpool.NewBufferPool(64),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/payloads", func(r chi.Router) {
		r.Get("/", s.restore)
		r.Post("/", s.persist)
		r.Put("/", s.replace)
		r.Delete("/", s.clear)
	})

	return r
}

type restoreResponse struct {
	Blobs [][]byte `json:"blobs"`
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) {
	blobs, err := s.payloads.Restore(r.Context())
	if err != nil {
		s.renderErr(w, "payloads.Restore", err)
		return
	}

	s.render(w, http.StatusOK, restoreResponse{Blobs: blobs})
}

func (s *Server) persist(w http.ResponseWriter, r *http.Request) {
	payloads, ok := s.decodePayloads(w, r)
	if !ok {
		return
	}

	if err := s.payloads.Persist(r.Context(), payloads); err != nil {
		s.renderErr(w, "payloads.Persist", err)
		return
	}

	s.render(w, http.StatusOK, map[string]any{"ids": ids(payloads)})
}

func (s *Server) replace(w http.ResponseWriter, r *http.Request) {
	payloads, ok := s.decodePayloads(w, r)
	if !ok {
		return
	}

	if err := payload.Replace(r.Context(), s.payloads, payloads); err != nil {
		s.renderErr(w, "payload.Replace", err)
		return
	}

	s.render(w, http.StatusOK, map[string]any{"ids": ids(payloads)})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	if err := s.payloads.Clear(r.Context()); err != nil {
		s.renderErr(w, "payloads.Clear", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodePayloads reads a JSON array of payloads with base64 blobs. Missing
// ids are filled with random uuids.
func (s *Server) decodePayloads(w http.ResponseWriter, r *http.Request) ([]*core.Payload, bool) {
	var payloads []*core.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&payloads); err != nil {
		s.render(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return nil, false
	}

	for idx, p := range payloads {
		if p == nil {
			s.render(w, http.StatusBadRequest, errorResponse{Error: "null payload"})
			return nil, false
		}

		if p.ID == "" {
			payloads[idx].ID = uuid.NewString()
		}
	}

	return payloads, true
}

func ids(payloads []*core.Payload) []string {
	return generic.MapSlice(payloads, func(p *core.Payload) string { return p.ID })
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) renderErr(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidPayload), errors.Is(err, core.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNetwork), errors.Is(err, core.ErrProtocol), errors.Is(err, core.ErrDeserialization):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(op, "err", err)
	}

	s.render(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) render(w http.ResponseWriter, status int, v any) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		s.logger.Error("json.Encode", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
