package engine

import (
	"context"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"circle-integration/logger"
	"circle-integration/metrics"
	"circle-integration/models"
	"circle-integration/wire"
)

// Transfer pulls params.Amount of the stablecoin from caller, burns it towards the
// target chain's domain and publishes a deposit carrying payload. Nothing is changed
// when any step fails.
func (e *Engine) Transfer(ctx context.Context, caller models.Address, params models.TransferParameters,
	batchID uint32, payload []byte) (*models.TransferReceipt, error) {

	receipt, err := e.transfer(ctx, caller, params, batchID, payload)

	outcome, code := metrics.Outcome(err)
	e.metrics.Transfers.WithLabelValues(strconv.Itoa(int(params.TargetChain)), outcome, code).Inc()
	if err != nil {
		logger.Logger.Warn("Transfer rejected",
			zap.Uint16("target_chain", uint16(params.TargetChain)),
			zap.Stringer("caller", caller),
			zap.Error(err))
		return nil, err
	}

	logger.Logger.Info("Transfer published",
		zap.Uint16("target_chain", uint16(params.TargetChain)),
		zap.Uint32("domain", uint32(receipt.Deposit.TargetDomain)),
		zap.Uint64("nonce", receipt.CustodialNonce),
		zap.Uint64("sequence", receipt.Sequence),
		zap.String("amount", params.Amount.Dec()))
	return receipt, nil
}

func (e *Engine) transfer(ctx context.Context, caller models.Address, params models.TransferParameters,
	batchID uint32, payload []byte) (*models.TransferReceipt, error) {

	if params.Amount == nil || params.Amount.IsZero() {
		return nil, models.ErrZeroAmount
	}
	if params.MintRecipient.IsZero() {
		return nil, models.ErrInvalidRecipient
	}
	if params.Token != e.cfg.Token {
		return nil, errorsmod.Wrapf(models.ErrTokenNotAccepted, "token %s", params.Token)
	}
	if len(payload) > models.MaxPayloadSize {
		return nil, errorsmod.Wrapf(models.ErrPayloadTooLarge,
			"payload is %d bytes, max %d", len(payload), models.MaxPayloadSize)
	}
	fee := params.MessageFee
	if fee == nil {
		fee = new(uint256.Int)
	}
	if required := e.deps.Network.MessageFee(); !fee.Eq(required) {
		return nil, errorsmod.Wrapf(models.ErrInvalidMessageFee,
			"message fee is %s, sent %s", required.Dec(), fee.Dec())
	}

	var receipt *models.TransferReceipt
	err := e.uow.Update(ctx, func(ctx context.Context) error {
		target, err := e.lookupEndpoint(ctx, params.TargetChain)
		if err != nil {
			return err
		}
		if target == nil {
			return errorsmod.Wrapf(models.ErrTargetNotRegistered, "chain %d", params.TargetChain)
		}

		if err := e.deps.Token.TransferFrom(ctx, e.cfg.Contract, caller, e.cfg.Contract, params.Amount); err != nil {
			return err
		}

		// The target integration contract receives the mint and is the only caller
		// allowed to execute it.
		encoded, err := e.deps.Custodial.Burn(ctx, e.cfg.Contract, params.Amount, target.Domain,
			target.Emitter, e.cfg.Token, target.Emitter)
		if err != nil {
			return err
		}
		burn, err := wire.DecodeCustodialMessage(encoded)
		if err != nil {
			return err
		}

		deposit := &models.Deposit{
			Token:         e.cfg.Token,
			TokenChain:    e.cfg.ChainID,
			Amount:        params.Amount.Clone(),
			SourceDomain:  burn.SourceDomain,
			TargetDomain:  burn.DestinationDomain,
			Nonce:         burn.Nonce,
			TargetChain:   params.TargetChain,
			FromAddress:   caller,
			MintRecipient: params.MintRecipient,
			Payload:       payload,
		}
		message, err := wire.EncodeDeposit(deposit)
		if err != nil {
			return err
		}

		finality, err := e.registry.Finality(ctx)
		if err != nil {
			return err
		}
		sequence, err := e.deps.Network.Publish(ctx, e.cfg.Contract, caller, batchID, message, finality)
		if err != nil {
			return err
		}

		receipt = &models.TransferReceipt{
			Sequence:         sequence,
			CustodialNonce:   burn.Nonce,
			CustodialMessage: encoded,
			Deposit:          deposit,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
