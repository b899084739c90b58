/**
 * @description
 * This file contains the HTTP handlers for the settlement-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/app"
	"github.com/crosspay/settlement-service/internal/domain"
	"github.com/crosspay/settlement-service/internal/ledger"
	"github.com/crosspay/settlement-service/internal/store"
)

// SettlementHandlers holds the application service that handlers will use.
type SettlementHandlers struct {
	service *app.Service
	auth    AuthConfig
}

// NewSettlementHandlers creates a new instance of SettlementHandlers. The
// auth settings are needed both for the router's bearer middleware and to
// verify the provider co-authorization token on withdrawal finalization.
func NewSettlementHandlers(service *app.Service, auth AuthConfig) *SettlementHandlers {
	return &SettlementHandlers{service: service, auth: auth}
}

type userProfileResponse struct {
	Address       string `json:"address"`
	Authority     string `json:"authority"`
	Role          string `json:"role"`
	CountryCode   string `json:"country_code"`
	KycVerified   bool   `json:"kyc_verified"`
	TotalSent     uint64 `json:"total_sent"`
	TotalReceived uint64 `json:"total_received"`
	CreatedAt     string `json:"created_at"`
}

func buildUserProfileResponse(p *domain.UserProfile) userProfileResponse {
	return userProfileResponse{
		Address:       p.Address.String(),
		Authority:     string(p.Authority),
		Role:          string(p.Role),
		CountryCode:   p.CountryCode,
		KycVerified:   p.KycVerified,
		TotalSent:     p.TotalSent,
		TotalReceived: p.TotalReceived,
		CreatedAt:     p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type transferResponse struct {
	Address     string  `json:"address"`
	Sender      string  `json:"sender"`
	Receiver    string  `json:"receiver"`
	Amount      uint64  `json:"amount"`
	Fee         uint64  `json:"fee"`
	NetAmount   uint64  `json:"net_amount"`
	Status      string  `json:"status"`
	Nonce       uint64  `json:"nonce"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

func buildTransferResponse(req *domain.TransferRequest) transferResponse {
	resp := transferResponse{
		Address:   req.Address.String(),
		Sender:    string(req.Sender),
		Receiver:  string(req.Receiver),
		Amount:    req.Amount,
		Fee:       domain.PlatformFee(req.Amount),
		NetAmount: domain.NetAmount(req.Amount),
		Status:    string(req.Status),
		Nonce:     req.Nonce,
	}
	if req.CompletedAt != nil {
		formatted := req.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.CompletedAt = &formatted
	}
	return resp
}

type providerResponse struct {
	Address               string `json:"address"`
	Authority             string `json:"authority"`
	Location              string `json:"location"`
	FxRate                uint64 `json:"fx_rate"`
	TrustScore            uint16 `json:"trust_score"`
	AvailableLiquidity    uint64 `json:"available_liquidity"`
	IsActive              bool   `json:"is_active"`
	CompletedTransactions uint64 `json:"completed_transactions"`
	TotalVolume           uint64 `json:"total_volume"`
}

func buildProviderResponse(p *domain.LiquidityProvider) providerResponse {
	return providerResponse{
		Address:               p.Address.String(),
		Authority:             string(p.Authority),
		Location:              p.Location,
		FxRate:                p.FxRate,
		TrustScore:            p.TrustScore,
		AvailableLiquidity:    p.AvailableLiquidity,
		IsActive:              p.IsActive,
		CompletedTransactions: p.CompletedTransactions,
		TotalVolume:           p.TotalVolume,
	}
}

type withdrawalResponse struct {
	Address          string  `json:"address"`
	Freelancer       string  `json:"freelancer"`
	Amount           uint64  `json:"amount"`
	Method           string  `json:"method"`
	Status           string  `json:"status"`
	SelectedProvider *string `json:"selected_provider,omitempty"`
	Nonce            uint64  `json:"nonce"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

func buildWithdrawalResponse(req *domain.WithdrawalRequest) withdrawalResponse {
	resp := withdrawalResponse{
		Address:    req.Address.String(),
		Freelancer: string(req.Freelancer),
		Amount:     req.Amount,
		Method:     string(req.Method),
		Status:     string(req.Status),
		Nonce:      req.Nonce,
	}
	if req.SelectedProvider != nil {
		provider := string(*req.SelectedProvider)
		resp.SelectedProvider = &provider
	}
	if req.CompletedAt != nil {
		formatted := req.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.CompletedAt = &formatted
	}
	return resp
}

// authority extracts the authenticated caller or writes a 500.
func (h *SettlementHandlers) authority(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	subject, ok := GetAuthority(r.Context())
	if !ok {
		http.Error(w, "Could not get authority from context", http.StatusInternalServerError)
		return "", false
	}
	return domain.Identity(subject), true
}

// pathAddress parses the {address} URL parameter.
func (h *SettlementHandlers) pathAddress(w http.ResponseWriter, r *http.Request) (addressing.Address, bool) {
	address, err := addressing.Parse(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid record address")
		return addressing.Address{}, false
	}
	return address, true
}

// InitializeUserHandler handles profile creation for the caller.
func (h *SettlementHandlers) InitializeUserHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}

	var req struct {
		Role        string `json:"role"`
		CountryCode string `json:"country_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.service.InitializeUser(r.Context(), authority, domain.UserRole(req.Role), req.CountryCode)
	if err != nil {
		h.writeServiceError(w, "initialize_user", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildUserProfileResponse(profile))
}

// GetOwnProfileHandler returns the caller's profile.
func (h *SettlementHandlers) GetOwnProfileHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}
	profile, err := h.service.GetUserProfile(r.Context(), authority)
	if err != nil {
		h.writeServiceError(w, "get_profile", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildUserProfileResponse(profile))
}

// UpdateKycStatusHandler overwrites the caller's KYC fields.
func (h *SettlementHandlers) UpdateKycStatusHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}

	var req struct {
		Verified bool   `json:"verified"`
		KycHash  string `json:"kyc_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	hash, ok := domain.ParseKycHash(req.KycHash)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "KYC hash must be 32 hex-encoded bytes")
		return
	}

	if err := h.service.UpdateKycStatus(r.Context(), authority, req.Verified, hash); err != nil {
		h.writeServiceError(w, "update_kyc", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// InitiateTransferHandler creates a pending transfer request.
func (h *SettlementHandlers) InitiateTransferHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount         uint64 `json:"amount"`
		Receiver       string `json:"receiver"`
		RequestAddress string `json:"request_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	requestAddress, err := addressing.Parse(req.RequestAddress)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request address")
		return
	}

	transfer, err := h.service.InitiateTransfer(r.Context(), authority, app.InitiateTransferParams{
		Amount:         req.Amount,
		Receiver:       domain.Identity(req.Receiver),
		RequestAddress: requestAddress,
	})
	if err != nil {
		h.writeServiceError(w, "initiate_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildTransferResponse(transfer))
}

// GetTransferHandler fetches a transfer request by address.
func (h *SettlementHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authority(w, r); !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.GetTransferRequest(r.Context(), address)
	if err != nil {
		h.writeServiceError(w, "get_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransferResponse(transfer))
}

// ConfirmTransferHandler executes a pending transfer.
func (h *SettlementHandlers) ConfirmTransferHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.ConfirmTransfer(r.Context(), authority, address)
	if err != nil {
		h.writeServiceError(w, "confirm_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildTransferResponse(transfer))
}

// CancelTransferHandler cancels a pending transfer.
func (h *SettlementHandlers) CancelTransferHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelTransfer(r.Context(), authority, address); err != nil {
		h.writeServiceError(w, "cancel_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// RegisterProviderHandler creates the caller's liquidity provider record.
func (h *SettlementHandlers) RegisterProviderHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}

	var req struct {
		Location string `json:"location"`
		FxRate   uint64 `json:"fx_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	provider, err := h.service.RegisterLiquidityProvider(r.Context(), authority, app.RegisterLiquidityProviderParams{
		Location: req.Location,
		FxRate:   req.FxRate,
	})
	if err != nil {
		h.writeServiceError(w, "register_provider", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildProviderResponse(provider))
}

// GetProviderHandler fetches a provider record by address.
func (h *SettlementHandlers) GetProviderHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authority(w, r); !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	provider, err := h.service.GetLiquidityProviderByAddress(r.Context(), address)
	if err != nil {
		h.writeServiceError(w, "get_provider", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildProviderResponse(provider))
}

// UpdateProviderAvailabilityHandler overwrites the caller's availability.
func (h *SettlementHandlers) UpdateProviderAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}

	var req struct {
		IsActive           bool   `json:"is_active"`
		AvailableLiquidity uint64 `json:"available_liquidity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	provider, err := h.service.UpdateProviderAvailability(r.Context(), authority, req.IsActive, req.AvailableLiquidity)
	if err != nil {
		h.writeServiceError(w, "update_provider_availability", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildProviderResponse(provider))
}

// RequestWithdrawalHandler creates a pending withdrawal request.
func (h *SettlementHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount         uint64 `json:"amount"`
		Method         string `json:"method"`
		RequestAddress string `json:"request_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	requestAddress, err := addressing.Parse(req.RequestAddress)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request address")
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), authority, app.RequestWithdrawalParams{
		Amount:         req.Amount,
		Method:         domain.PayoutMethod(req.Method),
		RequestAddress: requestAddress,
	})
	if err != nil {
		h.writeServiceError(w, "request_withdrawal", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildWithdrawalResponse(withdrawal))
}

// GetWithdrawalHandler fetches a withdrawal request by address.
func (h *SettlementHandlers) GetWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authority(w, r); !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	withdrawal, err := h.service.GetWithdrawalRequest(r.Context(), address)
	if err != nil {
		h.writeServiceError(w, "get_withdrawal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildWithdrawalResponse(withdrawal))
}

// SelectProviderHandler binds a liquidity provider to a pending withdrawal.
func (h *SettlementHandlers) SelectProviderHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}

	var req struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Provider == "" {
		h.writeError(w, http.StatusBadRequest, "Provider authority required")
		return
	}

	withdrawal, err := h.service.SelectProvider(r.Context(), authority, address, domain.Identity(req.Provider))
	if err != nil {
		h.writeServiceError(w, "select_provider", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildWithdrawalResponse(withdrawal))
}

// FinalizeWithdrawalHandler settles a provider-selected withdrawal. The
// caller is the freelancer; the selected provider co-authorizes by supplying
// its own bearer token in the request body, verified against the same JWKS.
func (h *SettlementHandlers) FinalizeWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}

	var req struct {
		ProviderToken string `json:"provider_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProviderToken == "" {
		h.writeError(w, http.StatusBadRequest, "Provider co-authorization token required")
		return
	}

	providerSubject, err := verifyBearerToken(h.auth, req.ProviderToken)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "Invalid provider co-authorization token")
		return
	}

	withdrawal, err := h.service.FinalizeWithdrawal(r.Context(), authority, domain.Identity(providerSubject), address)
	if err != nil {
		h.writeServiceError(w, "finalize_withdrawal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildWithdrawalResponse(withdrawal))
}

// CancelWithdrawalHandler cancels a not-yet-completed withdrawal.
func (h *SettlementHandlers) CancelWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := h.authority(w, r)
	if !ok {
		return
	}
	address, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelWithdrawal(r.Context(), authority, address); err != nil {
		h.writeServiceError(w, "cancel_withdrawal", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// writeServiceError maps service-layer errors to HTTP status codes.
func (h *SettlementHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, store.ErrProfileNotFound),
		errors.Is(err, store.ErrTransferNotFound),
		errors.Is(err, store.ErrProviderNotFound),
		errors.Is(err, store.ErrWithdrawalNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrProfileExists),
		errors.Is(err, store.ErrProviderExists):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrKycNotVerified):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAddressMismatch),
		errors.Is(err, domain.ErrInvalidTransferStatus),
		errors.Is(err, domain.ErrInvalidWithdrawalStatus),
		errors.Is(err, domain.ErrProviderAlreadySelected),
		errors.Is(err, domain.ErrProviderNotActive),
		errors.Is(err, domain.ErrInsufficientLiquidity):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrMissingReceiver),
		errors.Is(err, domain.ErrInvalidCountryCode),
		errors.Is(err, domain.ErrInvalidLocation),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidPayoutMethod):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *SettlementHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *SettlementHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
