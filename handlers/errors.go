package handlers

import (
	"encoding/json"
	"net/http"

	errorsmod "cosmossdk.io/errors"

	"circle-integration/devnet"
	"circle-integration/models"
)

var statusByError = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, []error{
		models.ErrMalformedMessage, models.ErrPayloadTooLarge, models.ErrZeroAmount,
		models.ErrInvalidRecipient, models.ErrTokenNotAccepted, models.ErrInvalidEndpoint,
		models.ErrInvalidTargetChain, models.ErrInvalidGovernance, models.ErrInvalidMessageFee,
	}},
	{http.StatusUnauthorized, []error{
		models.ErrInvalidCallerSignature,
	}},
	{http.StatusForbidden, []error{
		models.ErrCallerNotRecipient, models.ErrUnregisteredSender, devnet.ErrFaucetDisabled,
	}},
	{http.StatusNotFound, []error{
		models.ErrTargetNotRegistered,
	}},
	{http.StatusConflict, []error{
		models.ErrAlreadyRedeemed, models.ErrStaleGovernanceMessage,
		models.ErrAlreadyInitialized, models.ErrEndpointAlreadyRegistered,
	}},
	{http.StatusUnprocessableEntity, []error{
		models.ErrInsufficientSignatures, models.ErrUnknownGuardianSet, models.ErrInvalidAttestation,
		models.ErrInvalidEnvelope, models.ErrInvalidMessagePair,
	}},
	{http.StatusBadGateway, []error{
		models.ErrMintFailed,
	}},
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	for _, group := range statusByError {
		if errorsmod.IsOf(err, group.errs...) {
			return group.status
		}
	}
	if codespace, _, _ := errorsmod.ABCIInfo(err, false); codespace == devnet.Codespace {
		// token and transmitter reverts are caused by the request
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	writeJSON(w, statusFor(err), map[string]any{
		"error":     err.Error(),
		"code":      code,
		"codespace": codespace,
	})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
