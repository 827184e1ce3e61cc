package document

import (
	"encoding/json"
	"errors"
	"net/http"

	"inkwell/internal/access"
	"inkwell/internal/auth"
	"inkwell/internal/document/model"
	"inkwell/internal/document/service"
	"inkwell/middleware"
	"inkwell/pkg/logger"
)

type Handler struct {
	Service *service.DocumentService
}

func NewHandler(s *service.DocumentService) *Handler {
	return &Handler{Service: s}
}

func identityFrom(r *http.Request) auth.Identity {
	return r.Context().Value(middleware.IdentityKey).(auth.Identity)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrNotFound):
		http.Error(w, "Document not found", http.StatusNotFound)
	case errors.Is(err, access.ErrForbidden):
		http.Error(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, auth.ErrUnauthenticated):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	default:
		logger.Sugar.Errorf("Handler: internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.CreateDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to empty

	doc, err := h.Service.CreateDocument(identityFrom(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("id")
	if docID == "" {
		http.Error(w, "Missing document id", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.GetDocument(identityFrom(r), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Service.ListDocuments(identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []model.DocumentMetadata{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// SaveDocument is the REST entry into the change intake; it shares the
// versioned write path with the socket CHANGE event.
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DocID      string `json:"document_id"`
		Content    string `json:"content"`
		ShareToken string `json:"share_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocID == "" {
		http.Error(w, "Missing document id", http.StatusBadRequest)
		return
	}

	ack, err := h.Service.SubmitChange(req.DocID, identityFrom(r), req.Content, req.ShareToken, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("id")
	if docID == "" {
		var req struct {
			DocID string `json:"document_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		docID = req.DocID
	}
	if docID == "" {
		http.Error(w, "Missing document id", http.StatusBadRequest)
		return
	}

	if err := h.Service.DeleteDocument(identityFrom(r), docID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted successfully"})
}

func (h *Handler) GetVersions(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("id")
	if docID == "" {
		http.Error(w, "Missing document id", http.StatusBadRequest)
		return
	}

	versions, err := h.Service.ListVersions(identityFrom(r), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if versions == nil {
		versions = []model.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) ShareDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocID == "" {
		http.Error(w, "Missing document id", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.ShareDocument(identityFrom(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetShares(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("id")
	if docID == "" {
		http.Error(w, "Missing document id", http.StatusBadRequest)
		return
	}

	grants, err := h.Service.ListShares(identityFrom(r), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if grants == nil {
		grants = []model.ShareGrant{}
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *Handler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DocID string `json:"document_id"`
		Token string `json:"share_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocID == "" || req.Token == "" {
		http.Error(w, "Missing document id or share token", http.StatusBadRequest)
		return
	}

	if err := h.Service.RevokeShare(identityFrom(r), req.DocID, req.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Share revoked"})
}

// GetShared serves the public shared-link view; no credential required,
// possession of a valid token is the capability.
func (h *Handler) GetShared(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing share token", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.GetSharedDocument(token)
	if err != nil {
		if errors.Is(err, access.ErrNotFound) {
			http.Error(w, "Shared document not found or expired", http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
