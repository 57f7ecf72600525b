package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alkewallet/wallet-core/internal/infrastructure/auth"
	"github.com/alkewallet/wallet-core/internal/infrastructure/observability"
	"github.com/alkewallet/wallet-core/internal/models"
	service "github.com/alkewallet/wallet-core/internal/services"
	pkgerrors "github.com/alkewallet/wallet-core/pkg/errors"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type Handler struct {
	wallet    service.WalletService
	transfers service.TransferService
}

func NewHandler(wallet service.WalletService, transfers service.TransferService) *Handler {
	return &Handler{wallet: wallet, transfers: transfers}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors to HTTP statuses. Validation errors
// carry their user-facing reason; unexpected errors are logged and hidden.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *pkgerrors.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, pkgerrors.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, pkgerrors.ErrInsufficientFunds.Error())
	case errors.Is(err, pkgerrors.ErrRecipientNotFound), errors.Is(err, pkgerrors.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pkgerrors.ErrRecipientInactive),
		errors.Is(err, pkgerrors.ErrUserAlreadyExists),
		errors.Is(err, pkgerrors.ErrContactExists),
		errors.Is(err, pkgerrors.ErrAccountAlreadyActive):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pkgerrors.ErrPersistence):
		observability.WithContext(r.Context(), "path", r.URL.Path).Error("storage unavailable", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "storage unavailable, try again later")
	default:
		observability.WithContext(r.Context(), "path", r.URL.Path).Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "user not authenticated")
	}
	return userID, ok
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/me", h.Profile).Methods(http.MethodGet)
	r.HandleFunc("/balance", h.GetBalance).Methods(http.MethodGet)
	r.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
	r.HandleFunc("/deposit", h.Deposit).Methods(http.MethodPost)
	r.HandleFunc("/transfer", h.Transfer).Methods(http.MethodPost)
	r.HandleFunc("/account", h.UpdateAccount).Methods(http.MethodPut)
	r.HandleFunc("/account/activate", h.ActivateAccount).Methods(http.MethodPost)
	r.HandleFunc("/recipients", h.ListRecipients).Methods(http.MethodGet)
	r.HandleFunc("/contacts", h.ListContacts).Methods(http.MethodGet)
	r.HandleFunc("/contacts", h.AddContact).Methods(http.MethodPost)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.wallet.Register(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
		Username   string `json:"username"`
		Password   string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}
	token, err := h.wallet.Login(r.Context(), identifier, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.wallet.Logout(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.wallet.Profile(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	balance, err := h.wallet.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.StringFixed(2)})
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	history, err := h.wallet.GetHistory(r.Context(), userID, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal      `json:"amount"`
		Method models.DepositMethod `json:"method"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.wallet.Deposit(r.Context(), userID, req.Amount, req.Method)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Transfer accepts the recipient by id, email or username.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		RecipientID string          `json:"recipient_id"`
		Recipient   string          `json:"recipient"`
		Amount      decimal.Decimal `json:"amount"`
		Concept     string          `json:"concept"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.transfers.ExecuteTransfer(r.Context(), models.TransferIntent{
		SenderUserID:        userID,
		RecipientUserID:     req.RecipientID,
		RecipientIdentifier: req.Recipient,
		Amount:              req.Amount,
		Concept:             req.Concept,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	rec, err := h.wallet.ActivateAccount(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req service.AccountInput
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.wallet.UpdateAccount(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	users, err := h.wallet.ListRecipients(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	contacts, err := h.wallet.ListContacts(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req service.ContactInput
	if !h.decode(w, r, &req) {
		return
	}
	contact, err := h.wallet.AddContact(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}
