package routers

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"circle-integration/handlers"
)

// RegisterRoutes sets up all the HTTP routes of the integration
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {
	r.Use(handlers.RequestLogger)

	// Burns tokens and publishes a deposit for another chain
	r.HandleFunc("/transfers", h.Transfer).Methods("POST")

	// Verifies both proofs of a deposit and mints it to the caller
	r.HandleFunc("/redemptions", h.Redeem).Methods("POST")

	// Applies a guardian-signed governance action
	r.HandleFunc("/governance", h.SubmitGovernance).Methods("POST")

	// Accounts of the local chain; the faucet only mints on devnets
	r.HandleFunc("/approvals", h.Approve).Methods("POST")
	r.HandleFunc("/balances/{address}", h.GetBalances).Methods("GET")
	r.HandleFunc("/faucet", h.Faucet).Methods("POST")

	r.HandleFunc("/endpoints", h.GetEndpoints).Methods("GET")
	r.HandleFunc("/endpoints/{chain:[0-9]+}", h.GetEndpoint).Methods("GET")
	r.HandleFunc("/domains/{domain:[0-9]+}", h.GetChainForDomain).Methods("GET")
	r.HandleFunc("/redemptions/{domain:[0-9]+}/{nonce:[0-9]+}", h.GetRedemption).Methods("GET")
	r.HandleFunc("/implementations/{address}", h.GetImplementation).Methods("GET")
	r.HandleFunc("/config", h.GetConfig).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
