package engine

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"circle-integration/logger"
	"circle-integration/metrics"
	"circle-integration/models"
	"circle-integration/wire"
)

// Redeem completes an inbound transfer for caller, who must be the deposit's mint
// recipient. The redeem key is consumed before minting; if minting fails the whole
// redemption, consumption included, is rolled back.
func (e *Engine) Redeem(ctx context.Context, caller models.Address, params models.RedeemParameters) (*models.Redemption, error) {
	redemption, err := e.redeem(ctx, caller, params)

	outcome, code := metrics.Outcome(err)
	e.metrics.Redemptions.WithLabelValues(outcome, code).Inc()
	if err != nil {
		logger.Logger.Warn("Redemption rejected", zap.Stringer("caller", caller), zap.Error(err))
		return nil, err
	}

	logger.Logger.Info("Redeemed",
		zap.Uint16("chain", uint16(redemption.EmitterChain)),
		zap.Uint64("sequence", redemption.Sequence),
		zap.Uint32("domain", uint32(redemption.Deposit.SourceDomain)),
		zap.Uint64("nonce", redemption.Deposit.Nonce),
		zap.Stringer("recipient", caller),
		zap.String("amount", redemption.Amount.Dec()))
	return redemption, nil
}

func (e *Engine) redeem(ctx context.Context, caller models.Address, params models.RedeemParameters) (*models.Redemption, error) {
	var redemption *models.Redemption
	err := e.uow.Update(ctx, func(ctx context.Context) error {
		envelope, err := e.deps.Guardians.VerifyEnvelope(ctx, params.EncodedEnvelope)
		if err != nil {
			return err
		}
		deposit, err := wire.DecodeDeposit(envelope.Payload)
		if err != nil {
			return err
		}

		source, err := e.lookupEndpoint(ctx, envelope.EmitterChain)
		if err != nil {
			return err
		}
		if source == nil || source.Emitter != envelope.EmitterAddress {
			return errorsmod.Wrapf(models.ErrUnregisteredSender,
				"emitter %s on chain %d", envelope.EmitterAddress, envelope.EmitterChain)
		}
		if deposit.TargetChain != e.cfg.ChainID {
			return errorsmod.Wrapf(models.ErrInvalidTargetChain,
				"deposit targets chain %d, this is chain %d", deposit.TargetChain, e.cfg.ChainID)
		}

		burn, err := e.deps.Attesters.VerifyAttestation(ctx, params.CustodialMessage, params.CustodialAttestation)
		if err != nil {
			return err
		}
		if err := checkMessagePair(deposit, burn, source); err != nil {
			return err
		}

		if err := e.registry.Consume(ctx, burn.RedeemKey()); err != nil {
			return err
		}

		if caller != deposit.MintRecipient {
			return errorsmod.Wrapf(models.ErrCallerNotRecipient,
				"caller %s, mint recipient %s", caller, deposit.MintRecipient)
		}

		ok, err := e.deps.Custodial.Mint(ctx, e.cfg.Contract, params.CustodialMessage, params.CustodialAttestation)
		if err != nil {
			return errorsmod.Wrap(models.ErrMintFailed, err.Error())
		}
		if !ok {
			return models.ErrMintFailed
		}
		if err := e.deps.Token.Transfer(ctx, e.cfg.Contract, deposit.MintRecipient, deposit.Amount); err != nil {
			return err
		}

		redemption = &models.Redemption{
			EmitterChain:   envelope.EmitterChain,
			EmitterAddress: envelope.EmitterAddress,
			Sequence:       envelope.Sequence,
			FromAddress:    deposit.FromAddress,
			Amount:         deposit.Amount,
			Payload:        deposit.Payload,
			Deposit:        deposit,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return redemption, nil
}

// checkMessagePair ties the guardian-signed deposit to the attested burn. Both must
// name the same burn, and that burn must come from the sender's registered domain.
func checkMessagePair(deposit *models.Deposit, burn *models.CustodialMessage, source *models.RemoteEndpoint) error {
	if deposit.SourceDomain != burn.SourceDomain ||
		deposit.TargetDomain != burn.DestinationDomain ||
		deposit.Nonce != burn.Nonce {
		return errorsmod.Wrapf(models.ErrInvalidMessagePair,
			"deposit (%d -> %d, nonce %d) does not match burn (%d -> %d, nonce %d)",
			deposit.SourceDomain, deposit.TargetDomain, deposit.Nonce,
			burn.SourceDomain, burn.DestinationDomain, burn.Nonce)
	}
	if deposit.SourceDomain != source.Domain {
		return errorsmod.Wrapf(models.ErrInvalidMessagePair,
			"deposit source domain %d, sender registered with domain %d", deposit.SourceDomain, source.Domain)
	}
	if !deposit.Amount.Eq(burn.Body.Amount) {
		return errorsmod.Wrapf(models.ErrInvalidMessagePair,
			"deposit amount %s, burned %s", deposit.Amount.Dec(), burn.Body.Amount.Dec())
	}
	return nil
}
