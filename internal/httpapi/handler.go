package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/auth"
	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/export"
	"github.com/rpattn/rowql/internal/filterparams"
	"github.com/rpattn/rowql/internal/middleware"
	"github.com/rpattn/rowql/internal/predicate"
	"github.com/rpattn/rowql/internal/search"
)

const maxBodyBytes = 1 << 20

// Handler serves the row search endpoints.
type Handler struct {
	search   *search.Service
	export   *export.Service
	validate *validator.Validate
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListRows(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	entity, err := h.search.Entity(r.Context(), tenantID, r.PathValue("entity"))
	if err != nil {
		writeError(w, err)
		return
	}

	set, page, sorts, err := filterparams.Parse(r.URL.Query(), entity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.search.SearchEntity(r.Context(), entity, search.Request{
		TenantID:   tenantID,
		Filters:    set,
		Sort:       sorts,
		Pagination: page,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSearchRows(w http.ResponseWriter, r *http.Request) {
	tenantID, payload, ok := h.decodeSearch(w, r)
	if !ok {
		return
	}
	entity, err := h.search.Entity(r.Context(), tenantID, r.PathValue("entity"))
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.search.SearchEntity(r.Context(), entity, search.Request{
		TenantID:   tenantID,
		Filters:    payload.filterSet(),
		Sort:       filterparams.ParseSort(payload.Sort, entity.Properties),
		Pagination: domain.Pagination{Page: payload.Page, PageSize: payload.PageSize},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type predicateResponse struct {
	Predicate   map[string]any `json:"predicate"`
	Description string         `json:"description"`
}

func (h *Handler) handlePredicate(w http.ResponseWriter, r *http.Request) {
	tenantID, payload, ok := h.decodeSearch(w, r)
	if !ok {
		return
	}

	pred, err := h.search.Predicate(r.Context(), search.Request{
		TenantID: tenantID,
		Entity:   r.PathValue("entity"),
		Filters:  payload.filterSet(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predicateResponse{Predicate: predicate.Render(pred), Description: pred.String()})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	entity, err := h.search.Entity(r.Context(), tenantID, r.PathValue("entity"))
	if err != nil {
		writeError(w, err)
		return
	}
	set, _, sorts, err := filterparams.Parse(r.URL.Query(), entity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	result, err := h.export.WriteWorkbook(r.Context(), search.Request{
		TenantID: tenantID,
		Entity:   entity.ID.String(),
		Filters:  set,
		Sort:     sorts,
	}, &buf)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[HTTP] failed to write export for %s: %v", entity.Slug, err)
	}
}

// decodeSearch reads and validates the JSON body and resolves the tenant,
// writing the error response itself when it returns false.
func (h *Handler) decodeSearch(w http.ResponseWriter, r *http.Request) (uuid.UUID, searchPayload, bool) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return uuid.Nil, searchPayload{}, false
	}

	var payload searchPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return uuid.Nil, searchPayload{}, false
	}
	if err := h.validate.Struct(payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %s", validationMessage(err)), http.StatusBadRequest)
		return uuid.Nil, searchPayload{}, false
	}

	if payload.TenantID != "" {
		if err := auth.EnforceTenantScope(r.Context(), uuid.MustParse(payload.TenantID)); err != nil {
			writeError(w, err)
			return uuid.Nil, searchPayload{}, false
		}
	}
	return tenantID, payload, true
}

func requireTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, middleware.TenantHeader+" header is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return tenantID, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrEntityNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrScopeMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.Printf("[HTTP] request failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
