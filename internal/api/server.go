// Package api exposes the profile pipeline over HTTP with JSON bodies.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"client-profile-service/internal/logging"
	"client-profile-service/internal/models"
	"client-profile-service/internal/profile"
	"client-profile-service/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 4 * 1024 * 1024

// Resolver is the slice of profile.Service the handlers call.
type Resolver interface {
	Resolve(ctx context.Context, email, thread string) (*profile.Result, error)
	UpdateNotes(ctx context.Context, email, notes string) error
}

type resolveRequest struct {
	Email               string `json:"email"`
	LatestThreadContent string `json:"latestThreadContent"`
	Thread              string `json:"thread"`
}

type notesRequest struct {
	Email string `json:"email"`
	Notes string `json:"notes"`
}

// ProfileView is the externally visible projection of a profile.
type ProfileView struct {
	Name        string `json:"name"`
	Preferences string `json:"preferences"`
	Timeline    string `json:"timeline"`
	Concerns    string `json:"concerns"`
	Notes       string `json:"notes"`
}

// NewProfileView projects p for a response body.
func NewProfileView(p *models.Profile) ProfileView {
	return ProfileView{
		Name:        p.Name,
		Preferences: p.Preferences,
		Timeline:    p.Timeline,
		Concerns:    p.Concerns,
		Notes:       p.Notes,
	}
}

// NewHandler returns the routed handler wrapped in tracing and recovery.
func NewHandler(svc Resolver) http.Handler {
	h := &handler{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /get-or-create-profile", h.resolve)
	mux.HandleFunc("POST /update-notes", h.updateNotes)
	mux.HandleFunc("GET /health", h.health)
	return withTrace(withRecover(mux))
}

// NewServer builds the http.Server for addr.
func NewServer(addr string, svc Resolver) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type handler struct {
	svc Resolver
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	thread := req.LatestThreadContent
	if thread == "" {
		thread = req.Thread
	}

	res, err := h.svc.Resolve(r.Context(), req.Email, thread)
	if err != nil {
		writeError(r.Context(), w, statusFor(err), err)
		return
	}
	if res.Outcome == profile.OutcomeNotClient {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Not a client"})
		return
	}
	writeJSON(w, http.StatusOK, NewProfileView(res.Profile))
}

func (h *handler) updateNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.UpdateNotes(r.Context(), req.Email, req.Notes); err != nil {
		writeError(r.Context(), w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	entry := logging.FromContext(ctx).WithError(err).WithField("status", status)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		entry.Error("Request failed")
	case http.StatusNotFound:
		entry.Info("Profile not found")
		msg = "Profile not found"
	default:
		entry.Warn("Rejected request")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// withTrace tags every request with a trace id, reusing X-Request-ID when set.
func withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Request-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", traceID)

		start := time.Now()
		ctx := logging.ContextWithTrace(r.Context(), traceID)
		next.ServeHTTP(w, r.WithContext(ctx))

		logging.WithTrace(traceID).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				writeError(r.Context(), w, http.StatusInternalServerError, fmt.Errorf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
