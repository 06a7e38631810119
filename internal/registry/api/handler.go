// Package api exposes the registry over HTTP.
// It provides REST endpoints for entry management and SSE for event streaming.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zjrosen/registrar/internal/deployer"
	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/registry/application"
	"github.com/zjrosen/registrar/internal/registry/domain"
)

// CallerHeader carries the caller identity for owner-gated operations.
const CallerHeader = "X-Caller"

// Handler provides HTTP endpoints for registry operations.
type Handler struct {
	svc *application.Service
}

// NewHandler creates a new API handler wrapping the given service.
func NewHandler(svc *application.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Entry CRUD
	mux.HandleFunc("POST /entries", h.Create)
	mux.HandleFunc("POST /entries/deterministic", h.CreateDeterministic)
	mux.HandleFunc("GET /entries", h.List)
	mux.HandleFunc("GET /entries/{id}", h.Get)
	mux.HandleFunc("GET /entries/{id}/metadata", h.Metadata)
	mux.HandleFunc("GET /entries/{id}/address", h.Address)
	mux.HandleFunc("PUT /entries/{id}/metadata", h.UpdateMetadata)
	mux.HandleFunc("DELETE /entries/{id}", h.Destroy)

	// Address prediction
	mux.HandleFunc("GET /predict", h.Predict)

	// Ownership
	mux.HandleFunc("GET /owner", h.Owner)
	mux.HandleFunc("POST /owner/transfer", h.TransferOwnership)
	mux.HandleFunc("POST /owner/renounce", h.RenounceOwnership)

	// Event streaming
	mux.HandleFunc("GET /events", h.StreamEvents)

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	return mux
}

// === Request/Response Types ===

// CreateEntryRequest is the request body for creating an entry.
type CreateEntryRequest struct {
	// MetadataURI is the metadata to register (optional for direct creation).
	MetadataURI string `json:"metadata_uri"`
	// Salt selects the deterministic address, hex encoded (deterministic only).
	Salt string `json:"salt,omitempty"`
	// SaltLabel derives the salt from an arbitrary string (deterministic only).
	// Ignored when Salt is set.
	SaltLabel string `json:"salt_label,omitempty"`
}

// EntryResponse is the response body for a single entry.
type EntryResponse struct {
	ID          uint64     `json:"id"`
	Address     string     `json:"address"`
	MetadataURI string     `json:"metadata_uri,omitempty"`
	Salt        string     `json:"salt,omitempty"`
	Destroyed   bool       `json:"destroyed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DestroyedAt *time.Time `json:"destroyed_at,omitempty"`
}

// ListEntriesResponse is the response body for listing entries.
type ListEntriesResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

// MetadataResponse is the response body for a metadata lookup.
type MetadataResponse struct {
	ID          uint64 `json:"id"`
	MetadataURI string `json:"metadata_uri"`
}

// AddressResponse is the response body for an address lookup or prediction.
type AddressResponse struct {
	Address string `json:"address"`
}

// OwnerResponse is the response body for the owner endpoint.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// UpdateMetadataRequest is the request body for replacing entry metadata.
type UpdateMetadataRequest struct {
	MetadataURI string `json:"metadata_uri"`
}

// TransferOwnershipRequest is the request body for an ownership transfer.
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

// ErrorResponse is the response body for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// === Handlers ===

// Create creates an entry at a nonce-derived address.
// POST /entries
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	entry, err := h.svc.CreateDirect(r.Context(), req.MetadataURI)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, entryToResponse(entry))
}

// CreateDeterministic creates an entry at a salt-derived address.
// POST /entries/deterministic
func (h *Handler) CreateDeterministic(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	salt, err := saltFromRequest(req)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_salt", err.Error())
		return
	}

	entry, err := h.svc.CreateDeterministic(r.Context(), salt, req.MetadataURI)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, entryToResponse(entry))
}

// List returns registered entries ordered by identifier.
// GET /entries?include_destroyed=true&limit=50
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		IncludeDestroyed: r.URL.Query().Get("include_destroyed") == "true",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}

	resp := ListEntriesResponse{
		Entries: make([]EntryResponse, 0, len(entries)),
		Total:   len(entries),
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, entryToResponse(entry))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Get returns a single entry, tombstoned or live.
// GET /entries/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	entry, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entryToResponse(entry))
}

// Metadata returns the metadata URI of a live entry.
// GET /entries/{id}/metadata
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	uri, err := h.svc.Metadata(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, MetadataResponse{ID: id, MetadataURI: uri})
}

// Address returns the entry's address. Tombstoned entries report the zero
// address with status 200.
// GET /entries/{id}/address
func (h *Handler) Address(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	addr, err := h.svc.AddressOf(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, AddressResponse{Address: addr.Hex()})
}

// Predict returns the address a deterministic creation would land on.
// GET /predict?salt=0x...
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("salt")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_salt", "salt query parameter is required")
		return
	}
	salt, err := deployer.SaltFromHex(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_salt", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, AddressResponse{Address: h.svc.PredictAddress(salt).Hex()})
}

// UpdateMetadata replaces an entry's metadata. Owner only.
// PUT /entries/{id}/metadata
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	var req UpdateMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	if err := h.svc.UpdateMetadata(r.Context(), h.caller(r), id, req.MetadataURI); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Destroy tombstones an entry. Owner only.
// DELETE /entries/{id}
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Destroy(r.Context(), h.caller(r), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Owner returns the current registry owner.
// GET /owner
func (h *Handler) Owner(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, OwnerResponse{Owner: h.svc.Owner().Hex()})
}

// TransferOwnership hands the registry to a new owner. Current owner only.
// POST /owner/transfer
func (h *Handler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	if !common.IsHexAddress(req.NewOwner) {
		h.writeError(w, http.StatusBadRequest, "invalid_address", "new_owner must be a hex address")
		return
	}

	if err := h.svc.TransferOwnership(h.caller(r), common.HexToAddress(req.NewOwner)); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RenounceOwnership sets the owner to the zero address. Current owner only.
// POST /owner/renounce
func (h *Handler) RenounceOwnership(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RenounceOwnership(h.caller(r)); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamEvents streams registry events to the client via SSE.
// GET /events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	events := h.svc.Subscribe(r.Context())

	// Send initial connection event
	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	// Heartbeat ticker to keep connection alive
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(event.Payload)
			if err != nil {
				log.Error(log.CatAPI, "failed to marshal event", "error", err)
				continue
			}

			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Payload.Type, data)
			flusher.Flush()
		}
	}
}

// Health returns 200 when the service is reachable.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === Helpers ===

func (h *Handler) entryID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "id must be a non-negative integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) caller(r *http.Request) common.Address {
	return common.HexToAddress(r.Header.Get(CallerHeader))
}

func saltFromRequest(req CreateEntryRequest) (deployer.Salt, error) {
	if req.Salt != "" {
		return deployer.SaltFromHex(req.Salt)
	}
	if req.SaltLabel != "" {
		return deployer.SaltFromString(req.SaltLabel), nil
	}
	return deployer.Salt{}, errors.New("salt or salt_label is required")
}

func entryToResponse(entry *domain.Entry) EntryResponse {
	return EntryResponse{
		ID:          entry.ID(),
		Address:     entry.Address().Hex(),
		MetadataURI: entry.MetadataURI(),
		Salt:        entry.SaltHex(),
		Destroyed:   !entry.Alive(),
		CreatedAt:   entry.CreatedAt(),
		UpdatedAt:   entry.UpdatedAt(),
		DestroyedAt: entry.DestroyedAt(),
	}
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEntryNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrEntryDestroyed):
		h.writeError(w, http.StatusGone, "destroyed", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrInvalidMetadata):
		h.writeError(w, http.StatusBadRequest, "invalid_metadata", err.Error())
	case errors.Is(err, domain.ErrAddressOccupied):
		h.writeError(w, http.StatusConflict, "address_occupied", err.Error())
	case errors.Is(err, domain.ErrDeployFailed):
		h.writeError(w, http.StatusBadGateway, "deploy_failed", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatAPI, "failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
