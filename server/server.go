// Package server provides the HTTP API of the TFHE gateway.
//
// Routes:
//   - GET  /health: liveness
//   - POST /v1/blobs?kind=ciphertext|serverkey: upload a serialized
//     ciphertext or server key, returns its handle
//   - GET  /v1/blobs/{handle}: download a blob
//   - POST /v1/jobs: queue a bootstrap job, returns its ID
//   - GET  /v1/jobs/{id}: job status and result handle
//
// The gateway never holds client keys.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/luxfi/tfhe"
	"github.com/luxfi/tfhe/internal/metrics"
	"github.com/luxfi/tfhe/internal/queue"
	"github.com/luxfi/tfhe/internal/storage"
	"github.com/luxfi/tfhe/internal/worker"
)

// DefaultMaxBlobSize bounds uploads. It fits a PMessage2Carry2 server key.
const DefaultMaxBlobSize = 256 << 20

// Config holds server configuration
type Config struct {
	Params  tfhe.Parameters
	Queue   queue.Queue
	Storage storage.Storage
	// Metrics is optional.
	Metrics *metrics.GatewayMetrics
	// Log is optional.
	Log *zap.Logger
	// MaxBlobSize defaults to DefaultMaxBlobSize.
	MaxBlobSize int64
}

// Server is the gateway HTTP handler
type Server struct {
	cfg Config
	log *zap.Logger
	mux *http.ServeMux
}

// New creates a new gateway handler
func New(cfg Config) *Server {
	if cfg.MaxBlobSize <= 0 {
		cfg.MaxBlobSize = DefaultMaxBlobSize
	}
	s := &Server{cfg: cfg, log: cfg.Log, mux: http.NewServeMux()}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.handle("GET /health", "health", s.health)
	s.handle("POST /v1/blobs", "store_blob", s.storeBlob)
	s.handle("GET /v1/blobs/{handle}", "load_blob", s.loadBlob)
	s.handle("POST /v1/jobs", "submit_job", s.submitJob)
	s.handle("GET /v1/jobs/{id}", "get_job", s.getJob)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handle(pattern, route string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		}
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "params": s.cfg.Params.String()})
}

type blobResponse struct {
	Handle string `json:"handle"`
}

// storeBlob accepts only records that decode under the gateway parameters.
func (s *Server) storeBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBlobSize))
	if err != nil {
		s.fail(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	switch kind := r.URL.Query().Get("kind"); kind {
	case "ciphertext", "":
		ct := new(tfhe.Ciphertext)
		if err := ct.UnmarshalBinary(data); err != nil {
			s.fail(w, http.StatusBadRequest, err)
			return
		}
		if ct.Dimension() != s.cfg.Params.LWEDimension() {
			s.fail(w, http.StatusBadRequest, fmt.Errorf("ciphertext dimension %d, gateway serves %d",
				ct.Dimension(), s.cfg.Params.LWEDimension()))
			return
		}
	case "serverkey":
		sk := new(tfhe.ServerKey)
		if err := sk.UnmarshalBinary(data); err != nil {
			s.fail(w, http.StatusBadRequest, err)
			return
		}
		if !sk.Parameters().Equal(s.cfg.Params) {
			s.fail(w, http.StatusBadRequest, fmt.Errorf("server key parameters %v, gateway serves %v",
				sk.Parameters(), s.cfg.Params))
			return
		}
	default:
		s.fail(w, http.StatusBadRequest, fmt.Errorf("unknown blob kind %q", kind))
		return
	}

	h, err := s.cfg.Storage.Store(r.Context(), data)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, storage.ErrStorageFull) {
			code = http.StatusInsufficientStorage
		}
		s.fail(w, code, err)
		return
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StoredBytes.Add(float64(len(data)))
	}
	writeJSON(w, http.StatusCreated, blobResponse{Handle: string(h)})
}

func (s *Server) loadBlob(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.Storage.Load(r.Context(), storage.Handle(r.PathValue("handle")))
	switch {
	case errors.Is(err, storage.ErrInvalidHandle):
		s.fail(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, storage.ErrNotFound):
		s.fail(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// JobRequest is the body of POST /v1/jobs.
type JobRequest struct {
	Op        queue.Op `json:"op"`
	Gate      string   `json:"gate,omitempty"`
	Table     []uint64 `json:"table,omitempty"`
	Inputs    []string `json:"inputs"`
	ServerKey string   `json:"server_key"`
}

type jobResponse struct {
	ID string `json:"id"`
}

func newJobID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("decode job: %w", err))
		return
	}
	job := &queue.Job{
		Op:        req.Op,
		Gate:      req.Gate,
		Table:     req.Table,
		Inputs:    req.Inputs,
		ServerKey: req.ServerKey,
	}
	if err := worker.Validate(job, s.cfg.Params); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	for _, h := range append([]string{req.ServerKey}, req.Inputs...) {
		ok, err := s.cfg.Storage.Exists(r.Context(), storage.Handle(h))
		switch {
		case errors.Is(err, storage.ErrInvalidHandle):
			s.fail(w, http.StatusBadRequest, err)
			return
		case err != nil:
			s.fail(w, http.StatusInternalServerError, err)
			return
		case !ok:
			s.fail(w, http.StatusNotFound, fmt.Errorf("%w: %s", storage.ErrNotFound, h))
			return
		}
	}

	id, err := newJobID()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	job.ID = id
	if err := s.cfg.Queue.Push(r.Context(), job); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.JobsSubmitted.WithLabelValues(string(job.Op)).Inc()
	}
	s.log.Debug("job submitted", zap.String("job", id), zap.String("op", string(job.Op)))
	writeJSON(w, http.StatusAccepted, jobResponse{ID: id})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.cfg.Queue.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		s.fail(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
