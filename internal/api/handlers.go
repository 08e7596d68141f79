package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/normalize"
	"github.com/ignite/crm-suppression/internal/pkg/logger"
	"github.com/ignite/crm-suppression/internal/service/dnc"
)

// Handlers holds the HTTP handlers for the do-not-contact API.
type Handlers struct {
	svc     *dnc.Service
	started time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(svc *dnc.Service) *Handlers {
	return &Handlers{svc: svc, started: time.Now()}
}

// contactPayload is the wire form of a contact to check. Raw fields only;
// normalization happens server-side so callers can't skip it.
type contactPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
	ExternalIDA string `json:"external_id_a"`
	ExternalIDB string `json:"external_id_b"`
}

func (p contactPayload) toContact() domain.Contact {
	c := domain.Contact{
		ID:          p.ID,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		CompanyName: p.CompanyName,
		ExternalIDA: p.ExternalIDA,
		ExternalIDB: p.ExternalIDB,
	}
	normalize.Apply(&c)
	return c
}

// CheckContact evaluates a single contact. A store failure is surfaced as
// 502; callers must not read it as "clear to contact".
func (h *Handlers) CheckContact(w http.ResponseWriter, r *http.Request) {
	var p contactPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c := p.toContact()
	verdict, err := h.svc.Evaluate(r.Context(), &c)
	if err != nil {
		logger.Error("dnc check failed", "contact_id", p.ID, "error", err.Error())
		writeError(w, http.StatusBadGateway, "do-not-contact check unavailable")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type bulkCheckRequest struct {
	Contacts []contactPayload `json:"contacts"`
}

type bulkCheckResponse struct {
	Checked int                           `json:"checked"`
	Matched int                           `json:"matched"`
	Matches map[string]domain.MatchReason `json:"matches"`
	Summary map[domain.MatchReason]int    `json:"summary"`
}

// CheckContactsBulk evaluates a batch and returns the sparse match map
// plus per-reason totals.
func (h *Handlers) CheckContactsBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contacts := make([]domain.Contact, 0, len(req.Contacts))
	for _, p := range req.Contacts {
		contacts = append(contacts, p.toContact())
	}

	matches, err := h.svc.EvaluateBulk(r.Context(), contacts)
	if err != nil {
		logger.Error("dnc bulk check failed", "contacts", len(contacts), "error", err.Error())
		writeError(w, http.StatusBadGateway, "do-not-contact check unavailable")
		return
	}

	writeJSON(w, http.StatusOK, bulkCheckResponse{
		Checked: len(contacts),
		Matched: len(matches),
		Matches: matches,
		Summary: dnc.CountByReason(matches),
	})
}

// entryPayload is the wire form of a new do-not-contact entry. Full name
// and company are raw; the compound hash is derived server-side.
type entryPayload struct {
	Email       string `json:"email"`
	ExternalIDA string `json:"external_id_a"`
	ExternalIDB string `json:"external_id_b"`
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name"`
	Reason      string `json:"reason"`
	Source      string `json:"source"`
}

// AddEntry creates a list entry.
func (h *Handlers) AddEntry(w http.ResponseWriter, r *http.Request) {
	var p entryPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry := &domain.SuppressionEntry{
		NormalizedEmail: p.Email,
		ExternalIDA:     p.ExternalIDA,
		ExternalIDB:     p.ExternalIDB,
		CompoundHash:    normalize.CompoundHash(normalize.Text(p.FullName), normalize.Text(p.CompanyName)),
		Reason:          p.Reason,
		Source:          domain.EntrySource(p.Source),
	}

	if err := h.svc.AddEntry(r.Context(), entry); err != nil {
		if errors.Is(err, dnc.ErrNotMatchable) {
			writeError(w, http.StatusBadRequest, "entry needs an email, external ID, or full name plus company")
			return
		}
		logger.Error("dnc add entry failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not store entry")
		return
	}

	logger.Info("dnc entry added", "entry_id", entry.ID, "source", string(entry.Source))
	writeJSON(w, http.StatusCreated, entry)
}

// DeleteEntry removes a list entry by ID.
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.RemoveEntry(r.Context(), id); err != nil {
		if errors.Is(err, dnc.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		logger.Error("dnc delete entry failed", "entry_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not delete entry")
		return
	}
	logger.Info("dnc entry removed", "entry_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListEntries returns entries with optional source/search filters.
func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := dnc.ListFilter{
		Source: q.Get("source"),
		Search: q.Get("search"),
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	entries, total, err := h.svc.ListEntries(r.Context(), filter)
	if err != nil {
		logger.Error("dnc list entries failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not list entries")
		return
	}
	if entries == nil {
		entries = []domain.SuppressionEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

// GetStats returns aggregate list statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetStats(r.Context())
	if err != nil {
		logger.Error("dnc stats failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "could not compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HealthCheck reports process liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
