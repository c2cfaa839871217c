package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/config"
	"github.com/JakeFAU/distcrawl/internal/crawler"
	"github.com/JakeFAU/distcrawl/internal/metrics"
)

// MaxBatchBytes caps the size of an ingested batch body.
const MaxBatchBytes = 32 << 20

const notConfiguredMessage = "Worker not configured!"

// Server wires HTTP handlers to the result store and the assignment table.
type Server struct {
	router    chi.Router
	store     crawler.ResultStore
	publisher crawler.Publisher
	idGen     crawler.IDGenerator
	clock     crawler.Clock
	cfg       config.Config
	logger    *zap.Logger
}

// BatchNotification is published after a batch is stored.
type BatchNotification struct {
	BatchID       string    `json:"batch_id"`
	InsertedCount int       `json:"inserted_count"`
	ReceivedAt    time.Time `json:"received_at"`
}

// NewServer constructs a Server with middleware and routes. publisher may be nil.
func NewServer(
	store crawler.ResultStore,
	publisher crawler.Publisher,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     store,
		publisher: publisher,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/", s.home)
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/get_urls/{worker_id}", s.getURLs)
	r.Post("/post_results/data", s.postResults)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "I'm up!"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getURLs(w http.ResponseWriter, r *http.Request) {
	workerID := strings.ToLower(chi.URLParam(r, "worker_id"))
	urls, ok := s.cfg.Orchestrator.Assignments[workerID]
	if !ok {
		s.logger.Warn("assignment requested for unknown worker", zap.String("worker_id", workerID))
		writeJSON(w, http.StatusOK, map[string]string{"error": notConfiguredMessage})
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"urls": urls})
}

func (s *Server) postResults(w http.ResponseWriter, r *http.Request) {
	var batch []crawler.Outcome
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBatchBytes)).Decode(&batch); err != nil {
		metrics.ObserveBatch(0, err)
		writeError(w, http.StatusBadRequest, "invalid JSON: expected an array of outcomes")
		return
	}
	s.logger.Info("batch received", zap.Int("records", len(batch)))

	if len(batch) == 0 {
		metrics.ObserveBatch(0, nil)
		writeJSON(w, http.StatusOK, crawler.IngestAck{Status: "ok", InsertedCount: 0})
		return
	}

	records, err := s.buildRecords(batch)
	if err != nil {
		metrics.ObserveBatch(0, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inserted, err := s.store.InsertBatch(r.Context(), records)
	metrics.ObserveBatch(inserted, err)
	if err != nil {
		s.logger.Error("batch insert failed", zap.String("batch_id", records[0].BatchID), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "failed to store batch")
		return
	}

	s.notify(r.Context(), BatchNotification{
		BatchID:       records[0].BatchID,
		InsertedCount: inserted,
		ReceivedAt:    records[0].ReceivedAt,
	})
	writeJSON(w, http.StatusOK, crawler.IngestAck{Status: "ok", InsertedCount: inserted})
}

func (s *Server) buildRecords(batch []crawler.Outcome) ([]crawler.StoredRecord, error) {
	batchID, err := s.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate batch id: %w", err)
	}
	now := s.clock.Now()
	records := make([]crawler.StoredRecord, 0, len(batch))
	for i, outcome := range batch {
		if outcome.URL == "" || outcome.Status == "" {
			return nil, fmt.Errorf("record %d: url and status are required", i)
		}
		id, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate record id: %w", err)
		}
		records = append(records, crawler.StoredRecord{
			ID:         id,
			BatchID:    batchID,
			ReceivedAt: now,
			Outcome:    outcome,
		})
	}
	return records, nil
}

func (s *Server) notify(ctx context.Context, event BatchNotification) {
	topic := s.cfg.PubSub.TopicName
	if topic == "" || s.publisher == nil {
		return
	}
	msgID, err := s.publisher.Publish(ctx, topic, event)
	if err != nil {
		s.logger.Warn("batch notification failed", zap.String("batch_id", event.BatchID), zap.Error(err))
		return
	}
	s.logger.Debug("batch notification published",
		zap.String("batch_id", event.BatchID),
		zap.String("message_id", msgID),
	)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
