package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"circle-integration/attestation"
	"circle-integration/models"
)

// CallerSignatureHeader carries the caller's signature over keccak256 of the raw
// request body, in EVM form (r, s, v with v 27 or 28).
const CallerSignatureHeader = "X-Caller-Signature"

const maxBodySize = 1 << 20

// signedRequest is a request made on behalf of the account it names.
type signedRequest interface {
	caller() models.Address
}

// readSigned decodes the body into req and checks that it was signed by the caller
// it names.
func readSigned(w http.ResponseWriter, r *http.Request, req signedRequest) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return errorsmod.Wrap(models.ErrMalformedMessage, err.Error())
	}
	if err := json.Unmarshal(body, req); err != nil {
		return errorsmod.Wrap(models.ErrMalformedMessage, err.Error())
	}

	sig, err := hexutil.Decode(r.Header.Get(CallerSignatureHeader))
	if err != nil {
		return errorsmod.Wrapf(models.ErrInvalidCallerSignature, "%s: %v", CallerSignatureHeader, err)
	}
	signer, err := attestation.RecoverKeccak256(body, sig)
	if err != nil {
		return errorsmod.Wrap(models.ErrInvalidCallerSignature, err.Error())
	}
	if models.AddressFromEVM(signer) != req.caller() {
		return errorsmod.Wrapf(models.ErrInvalidCallerSignature,
			"signed by %s, not by caller %s", signer.Hex(), req.caller())
	}
	return nil
}

// SignRequest returns the CallerSignatureHeader value for body signed by signer.
func SignRequest(signer *attestation.Signer, body []byte) (string, error) {
	sig, err := signer.SignKeccak256(body)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig[:]), nil
}
