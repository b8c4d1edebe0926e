// Package api is the HTTP host boundary: uploads in, progress and
// playbook out.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moglabs/lumina/internal/brain"
	"github.com/moglabs/lumina/internal/domain"
	"github.com/moglabs/lumina/internal/memory"
	"github.com/moglabs/lumina/internal/progress"
)

// VideoProcessor runs the sensing pipeline over an uploaded video.
type VideoProcessor interface {
	Process(ctx context.Context, videoPath string) error
}

// PlaybookStore reads and resets the playbook.
type PlaybookStore interface {
	Load() (domain.Playbook, error)
	Clear() error
}

// MemoryStore exposes the stored learnings for the viewer endpoints.
type MemoryStore interface {
	ListAll() ([]memory.Memory, error)
	Delete(id string) error
	DeleteAll() error
}

// Server handles HTTP requests for the friction-analysis host.
type Server struct {
	addr      string
	uploadDir string
	processor VideoProcessor
	queue     *brain.Queue
	playbook  PlaybookStore
	memories  MemoryStore
	bus       *progress.Bus
	log       *slog.Logger
}

// New creates an API server.
func New(addr, uploadDir string, processor VideoProcessor, queue *brain.Queue,
	playbook PlaybookStore, memories MemoryStore, bus *progress.Bus, log *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		uploadDir: uploadDir,
		processor: processor,
		queue:     queue,
		playbook:  playbook,
		memories:  memories,
		bus:       bus,
		log:       log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", s.upload)
	mux.HandleFunc("GET /progress", s.progressStream)
	mux.HandleFunc("POST /events", s.ingestEvent)

	mux.HandleFunc("GET /playbook", s.getPlaybook)
	mux.HandleFunc("DELETE /playbook", s.clearPlaybook)

	mux.HandleFunc("GET /api/memories", s.listMemories)
	mux.HandleFunc("DELETE /api/memories/{id}", s.deleteMemory)
	mux.HandleFunc("DELETE /api/memories", s.clearMemories)

	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))

	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// withCORS adds CORS headers for frontend development.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"events_published": s.bus.Published(),
	})
}

// upload saves a multipart video and kicks off the sensing pipeline in
// the background.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = "upload.mp4"
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	videoPath := filepath.Join(s.uploadDir, filename)
	dest, err := os.Create(videoPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	size, err := io.Copy(dest, file)
	dest.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("video uploaded", "filename", filename, "bytes", size)

	go func() {
		if err := s.processor.Process(context.Background(), videoPath); err != nil {
			s.log.Error("sensing pipeline failed", "video", videoPath, "error", err)
			s.bus.Publish("error", fmt.Sprintf("Pipeline failed: %v", err))
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "filename": filename})
}

// progressStream relays bus events to the client as server-sent events.
func (s *Server) progressStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// ingestEvent accepts a friction event directly, bypassing the sensing
// pipeline.
func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.FrictionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	if strings.TrimSpace(event.EventID) == "" {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}
	if event.Status == "" {
		event.Status = domain.StatusPendingReflection
	}

	s.queue.Enqueue(event)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "queued",
		"event_id":   event.EventID,
		"queue_size": s.queue.Len(),
	})
}

func (s *Server) getPlaybook(w http.ResponseWriter, r *http.Request) {
	pb, err := s.playbook.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pb)
}

func (s *Server) clearPlaybook(w http.ResponseWriter, r *http.Request) {
	if err := s.playbook.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := s.memories.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if memories == nil {
		memories = []memory.Memory{}
	}
	writeJSON(w, http.StatusOK, memories)
}

func (s *Server) deleteMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.memories.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) clearMemories(w http.ResponseWriter, r *http.Request) {
	if err := s.memories.DeleteAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
