package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"circle-integration/engine"
	"circle-integration/governance"
	"circle-integration/logger"
	"circle-integration/models"
)

// Wallet holds the accounts of the local chain.
type Wallet interface {
	Approve(ctx context.Context, owner, spender models.Address, amount *uint256.Int) error
	Balances(ctx context.Context, owner models.Address) (token, native *uint256.Int, err error)
	Drip(ctx context.Context, to models.Address, token, native *uint256.Int) error
}

// Handler contains the HTTP handlers of the integration API
type Handler struct {
	Engine     *engine.Engine
	Governance *governance.Processor
	Wallet     Wallet
}

// NewHandler creates and returns a new Handler instance
func NewHandler(e *engine.Engine, g *governance.Processor, w Wallet) *Handler {
	return &Handler{Engine: e, Governance: g, Wallet: w}
}

type transferRequest struct {
	Caller        models.Address `json:"caller"`
	Token         models.Address `json:"token"`
	Amount        string         `json:"amount"`
	TargetChain   models.ChainID `json:"targetChain"`
	MintRecipient models.Address `json:"mintRecipient"`
	BatchID       uint32         `json:"batchId"`
	Payload       hexutil.Bytes  `json:"payload"`
	MessageFee    string         `json:"messageFee,omitempty"`
}

func (r *transferRequest) caller() models.Address { return r.Caller }

type redeemRequest struct {
	Caller models.Address `json:"caller"`
	models.RedeemParameters
}

func (r *redeemRequest) caller() models.Address { return r.Caller }

type approvalRequest struct {
	Caller  models.Address `json:"caller"`
	Spender models.Address `json:"spender"`
	Amount  string         `json:"amount"`
}

func (r *approvalRequest) caller() models.Address { return r.Caller }

type faucetRequest struct {
	Address models.Address `json:"address"`
	Amount  string         `json:"amount"`
	Native  string         `json:"native"`
}

type governanceRequest struct {
	EncodedEnvelope hexutil.Bytes `json:"encodedEnvelope"`
}

type depositResponse struct {
	Token         models.Address `json:"token"`
	TokenChain    models.ChainID `json:"tokenChain"`
	Amount        string         `json:"amount"`
	SourceDomain  models.Domain  `json:"sourceDomain"`
	TargetDomain  models.Domain  `json:"targetDomain"`
	Nonce         uint64         `json:"nonce"`
	TargetChain   models.ChainID `json:"targetChain"`
	FromAddress   models.Address `json:"fromAddress"`
	MintRecipient models.Address `json:"mintRecipient"`
	Payload       hexutil.Bytes  `json:"payload"`
}

func newDepositResponse(d *models.Deposit) depositResponse {
	return depositResponse{
		Token:         d.Token,
		TokenChain:    d.TokenChain,
		Amount:        d.Amount.Dec(),
		SourceDomain:  d.SourceDomain,
		TargetDomain:  d.TargetDomain,
		Nonce:         d.Nonce,
		TargetChain:   d.TargetChain,
		FromAddress:   d.FromAddress,
		MintRecipient: d.MintRecipient,
		Payload:       d.Payload,
	}
}

// parseAmount parses a decimal amount. An empty string is zero.
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

// Transfer handles POST requests burning tokens towards another chain
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := readSigned(w, r, &req); err != nil {
		logger.Logger.Error("Failed to read transfer", zap.Error(err))
		writeError(w, err)
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeBadRequest(w, "Invalid amount")
		return
	}
	fee, err := parseAmount(req.MessageFee)
	if err != nil {
		writeBadRequest(w, "Invalid message fee")
		return
	}

	receipt, err := h.Engine.Transfer(r.Context(), req.Caller, models.TransferParameters{
		Token:         req.Token,
		Amount:        amount,
		TargetChain:   req.TargetChain,
		MintRecipient: req.MintRecipient,
		MessageFee:    fee,
	}, req.BatchID, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":          "Transfer published",
		"sequence":         receipt.Sequence,
		"custodialNonce":   receipt.CustodialNonce,
		"custodialMessage": receipt.CustodialMessage,
		"deposit":          newDepositResponse(receipt.Deposit),
	})
}

// Redeem handles POST requests completing an inbound transfer
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := readSigned(w, r, &req); err != nil {
		logger.Logger.Error("Failed to read redemption", zap.Error(err))
		writeError(w, err)
		return
	}

	redemption, err := h.Engine.Redeem(r.Context(), req.Caller, req.RedeemParameters)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Redeemed",
		"emitterChain":   redemption.EmitterChain,
		"emitterAddress": redemption.EmitterAddress,
		"sequence":       redemption.Sequence,
		"fromAddress":    redemption.FromAddress,
		"amount":         redemption.Amount.Dec(),
		"payload":        redemption.Payload,
	})
}

// SubmitGovernance handles POST requests carrying a signed governance envelope
func (h *Handler) SubmitGovernance(w http.ResponseWriter, r *http.Request) {
	var req governanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode governance message", zap.Error(err))
		writeBadRequest(w, "Invalid request payload")
		return
	}

	action, err := h.Governance.Submit(r.Context(), req.EncodedEnvelope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Governance action applied",
		"action":  action.String(),
	})
}

// Approve handles POST requests letting a spender, the integration by default, move
// the caller's stablecoin
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := readSigned(w, r, &req); err != nil {
		logger.Logger.Error("Failed to read approval", zap.Error(err))
		writeError(w, err)
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeBadRequest(w, "Invalid amount")
		return
	}
	if req.Spender.IsZero() {
		req.Spender = h.Engine.Contract()
	}

	if err := h.Wallet.Approve(r.Context(), req.Caller, req.Spender, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Approved",
		"owner":   req.Caller,
		"spender": req.Spender,
		"amount":  amount.Dec(),
	})
}

// GetBalances returns the stablecoin and native balances of an account
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	owner, err := models.AddressFromHex(mux.Vars(r)["address"])
	if err != nil {
		writeBadRequest(w, "Invalid address")
		return
	}
	token, native, err := h.Wallet.Balances(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": owner,
		"token":   token.Dec(),
		"native":  native.Dec(),
	})
}

// Faucet handles POST requests minting devnet funds to an account
func (h *Handler) Faucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode faucet request", zap.Error(err))
		writeBadRequest(w, "Invalid request payload")
		return
	}
	token, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, "Invalid amount")
		return
	}
	native, err := parseAmount(req.Native)
	if err != nil {
		writeBadRequest(w, "Invalid native amount")
		return
	}

	if err := h.Wallet.Drip(r.Context(), req.Address, token, native); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Funded",
		"address": req.Address,
		"token":   token.Dec(),
		"native":  native.Dec(),
	})
}

// GetEndpoints lists every registered remote endpoint
func (h *Handler) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.Engine.Endpoints(r.Context())
	if err != nil {
		logger.Logger.Error("Failed to list endpoints", zap.Error(err))
		writeError(w, err)
		return
	}
	if endpoints == nil {
		endpoints = []models.RemoteEndpoint{}
	}
	writeJSON(w, http.StatusOK, endpoints)
}

// GetEndpoint returns the endpoint registered for one chain
func (h *Handler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	chain, err := strconv.ParseUint(mux.Vars(r)["chain"], 10, 16)
	if err != nil {
		writeBadRequest(w, "Invalid chain id")
		return
	}
	ep, err := h.Engine.Endpoint(r.Context(), models.ChainID(chain))
	if err != nil {
		writeError(w, err)
		return
	}
	if ep == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not registered"})
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// GetChainForDomain returns the chain registered with a custodial domain
func (h *Handler) GetChainForDomain(w http.ResponseWriter, r *http.Request) {
	domain, err := strconv.ParseUint(mux.Vars(r)["domain"], 10, 32)
	if err != nil {
		writeBadRequest(w, "Invalid domain")
		return
	}
	chain, ok, err := h.Engine.ChainForDomain(r.Context(), models.Domain(domain))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "domain not registered"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain, "chain": chain})
}

// GetRedemption reports whether a custodial burn was redeemed on this chain
func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	domain, err := strconv.ParseUint(vars["domain"], 10, 32)
	if err != nil {
		writeBadRequest(w, "Invalid domain")
		return
	}
	nonce, err := strconv.ParseUint(vars["nonce"], 10, 64)
	if err != nil {
		writeBadRequest(w, "Invalid nonce")
		return
	}
	redeemed, err := h.Engine.IsRedeemed(r.Context(), models.Domain(domain), nonce)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain, "nonce": nonce, "redeemed": redeemed})
}

// GetImplementation reports whether an implementation finished initialization
func (h *Handler) GetImplementation(w http.ResponseWriter, r *http.Request) {
	impl, err := models.AddressFromHex(mux.Vars(r)["address"])
	if err != nil {
		writeBadRequest(w, "Invalid address")
		return
	}
	initialized, err := h.Engine.IsInitialized(r.Context(), impl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementation": impl, "initialized": initialized})
}

// GetConfig returns the identity of this deployment
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	finality, err := h.Engine.Finality(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := h.Engine.Config()
	gov := h.Governance.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"chainId":            cfg.ChainID,
		"messageFee":         h.Engine.MessageFee().Dec(),
		"domain":             cfg.Domain,
		"token":              cfg.Token,
		"contract":           cfg.Contract,
		"finality":           finality,
		"governanceChainId":  gov.GovernanceChain,
		"governanceContract": gov.GovernanceContract,
	})
}
