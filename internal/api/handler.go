// internal/api/handler.go
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-activity-tracker/internal/model"
	"github-activity-tracker/internal/poller"
)

// Tracker is the read/mutate surface the API needs from the scheduler.
type Tracker interface {
	Snapshot() model.Snapshot
	Accounts() []string
	AddAccounts(accounts []string) []string
	SetCredential(token string)
	State() poller.State
}

// Handler is the container for API dependencies.
type Handler struct {
	tracker Tracker
	logger  *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(tracker Tracker, logger *slog.Logger) http.Handler {
	h := &Handler{
		tracker: tracker,
		logger:  logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/activity", h.getActivity)
		r.Get("/activity/{account}", h.getAccountActivity)
		r.Get("/rate-limit", h.getRateLimit)
		r.Get("/accounts", h.getAccounts)
		r.Post("/accounts", h.addAccounts)
		r.Put("/credential", h.setCredential)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "state": h.tracker.State().String()})
}

// getActivity returns the latest snapshot.
// GET /v1/activity
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.tracker.Snapshot())
}

type accountActivityResponse struct {
	Account    string                 `json:"account"`
	Activities []model.ActivityRecord `json:"activities"`
	Error      string                 `json:"error,omitempty"`
}

// getAccountActivity returns the records and error of one tracked account.
// GET /v1/activity/{account}
func (h *Handler) getAccountActivity(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if !slices.Contains(h.tracker.Accounts(), account) {
		respondWithError(w, http.StatusNotFound, "Account is not tracked")
		return
	}

	records, errMsg := h.tracker.Snapshot().Result.ForAccount(account)
	if records == nil {
		records = []model.ActivityRecord{}
	}
	respondWithJSON(w, http.StatusOK, accountActivityResponse{
		Account:    account,
		Activities: records,
		Error:      errMsg,
	})
}

// getRateLimit returns the quota seen at the start of the last cycle.
// GET /v1/rate-limit
func (h *Handler) getRateLimit(w http.ResponseWriter, r *http.Request) {
	status := h.tracker.Snapshot().RateLimit
	if status == nil {
		respondWithError(w, http.StatusNotFound, "Rate limit has not been checked yet")
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

type accountsRequest struct {
	Accounts []string `json:"accounts"`
}

type accountsResponse struct {
	Accounts []string `json:"accounts"`
}

// getAccounts lists tracked accounts in insertion order.
// GET /v1/accounts
func (h *Handler) getAccounts(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, accountsResponse{Accounts: nonNil(h.tracker.Accounts())})
}

// addAccounts tracks new accounts and answers with the ones actually added.
// POST /v1/accounts
func (h *Handler) addAccounts(w http.ResponseWriter, r *http.Request) {
	var req accountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Accounts) == 0 {
		respondWithError(w, http.StatusBadRequest, "'accounts' must contain at least one account")
		return
	}

	added := h.tracker.AddAccounts(req.Accounts)
	h.logger.Info("Accounts requested", "requested", len(req.Accounts), "added", len(added))
	respondWithJSON(w, http.StatusCreated, accountsResponse{Accounts: nonNil(added)})
}

type credentialRequest struct {
	Token string `json:"token"`
}

// setCredential replaces the API credential; an empty token means anonymous.
// PUT /v1/credential
func (h *Handler) setCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	h.tracker.SetCredential(req.Token)
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
