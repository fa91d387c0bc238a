package engine_test

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"circle-integration/db"
	"circle-integration/devnet"
	"circle-integration/models"
	"circle-integration/wire"
)

var payload = []byte("All your base are belong to us.")

type EngineTestSuite struct {
	suite.Suite

	ctx       context.Context
	net       *devnet.Testnet
	sender    models.Address
	recipient models.Address
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	net, err := devnet.NewTestnet(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(net.RegisterEndpoints(s.ctx))
	s.net = net

	s.sender = models.Address{31: 0xa1}
	s.recipient = models.Address{31: 0xb2}
	s.Require().NoError(net.Fund(s.ctx, net.A, s.sender, uint256.NewInt(1000)))
}

func (s *EngineTestSuite) TearDownTest() {
	s.Require().NoError(s.net.Close())
}

func (s *EngineTestSuite) balance(chain *devnet.Chain, owner models.Address) uint64 {
	b, err := chain.Ledger.BalanceOf(s.ctx, owner)
	s.Require().NoError(err)
	return b.Uint64()
}

func (s *EngineTestSuite) params(amount uint64) models.TransferParameters {
	return models.TransferParameters{
		Token:         s.net.A.Config.Token,
		Amount:        uint256.NewInt(amount),
		TargetChain:   s.net.B.Config.ChainID,
		MintRecipient: s.recipient,
	}
}

// send approves and transfers amount from the sender on A to the recipient on B and
// returns the proofs needed to redeem it.
func (s *EngineTestSuite) send(amount uint64) (*models.TransferReceipt, models.RedeemParameters) {
	a := s.net.A
	s.Require().NoError(a.Ledger.Approve(s.ctx, s.sender, a.Config.Contract, uint256.NewInt(amount)))
	receipt, err := a.Engine.Transfer(s.ctx, s.sender, s.params(amount), 0, payload)
	s.Require().NoError(err)
	params, err := s.net.Relay(s.ctx, a, receipt)
	s.Require().NoError(err)
	return receipt, params
}

func (s *EngineTestSuite) TestTransferAndRedeem() {
	a, b := s.net.A, s.net.B
	supplyBefore, err := a.Ledger.TotalSupply(s.ctx)
	s.Require().NoError(err)

	receipt, params := s.send(69)
	s.Require().Equal(uint64(1000-69), s.balance(a, s.sender))
	s.Require().Zero(s.balance(a, a.Config.Contract))
	supplyAfter, err := a.Ledger.TotalSupply(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(supplyBefore.Uint64()-69, supplyAfter.Uint64())

	deposit := receipt.Deposit
	s.Require().Equal(a.Config.Domain, deposit.SourceDomain)
	s.Require().Equal(b.Config.Domain, deposit.TargetDomain)
	s.Require().Equal(receipt.CustodialNonce, deposit.Nonce)
	s.Require().Equal(s.sender, deposit.FromAddress)

	published, err := a.Network.PublishedMessage(s.ctx, a.Config.Contract, receipt.Sequence)
	s.Require().NoError(err)
	s.Require().Equal(uint8(1), published.ConsistencyLevel)
	decoded, err := wire.DecodeDeposit(published.Payload)
	s.Require().NoError(err)
	s.Require().True(bytes.Equal(payload, decoded.Payload))

	redemption, err := b.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().NoError(err)
	s.Require().True(bytes.Equal(payload, redemption.Payload))
	s.Require().Equal(uint64(69), redemption.Amount.Uint64())
	s.Require().Equal(a.Config.ChainID, redemption.EmitterChain)
	s.Require().Equal(a.Config.Contract, redemption.EmitterAddress)
	s.Require().Equal(receipt.Sequence, redemption.Sequence)
	s.Require().Equal(s.sender, redemption.FromAddress)
	s.Require().Equal(uint64(69), s.balance(b, s.recipient))
	s.Require().Zero(s.balance(b, b.Config.Contract))

	redeemed, err := b.Engine.IsRedeemed(s.ctx, deposit.SourceDomain, deposit.Nonce)
	s.Require().NoError(err)
	s.Require().True(redeemed)

	_, err = b.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().ErrorIs(err, models.ErrAlreadyRedeemed)
	s.Require().Equal(uint64(69), s.balance(b, s.recipient))
}

func (s *EngineTestSuite) TestSequencesAndNoncesIncrease() {
	first, _ := s.send(1)
	second, _ := s.send(2)
	s.Require().Equal(first.Sequence+1, second.Sequence)
	s.Require().Equal(first.CustodialNonce+1, second.CustodialNonce)
}

func (s *EngineTestSuite) TestTransferValidation() {
	a := s.net.A
	s.Require().NoError(a.Ledger.Approve(s.ctx, s.sender, a.Config.Contract, uint256.NewInt(1000)))

	testCases := []struct {
		name     string
		malleate func(p *models.TransferParameters) []byte
		expErr   error
	}{
		{"zero amount", func(p *models.TransferParameters) []byte {
			p.Amount = new(uint256.Int)
			return payload
		}, models.ErrZeroAmount},
		{"missing amount", func(p *models.TransferParameters) []byte {
			p.Amount = nil
			return payload
		}, models.ErrZeroAmount},
		{"zero recipient", func(p *models.TransferParameters) []byte {
			p.MintRecipient = models.ZeroAddress
			return payload
		}, models.ErrInvalidRecipient},
		{"zero recipient with large amount", func(p *models.TransferParameters) []byte {
			p.MintRecipient = models.ZeroAddress
			p.Amount = uint256.NewInt(999)
			return payload
		}, models.ErrInvalidRecipient},
		{"other token", func(p *models.TransferParameters) []byte {
			p.Token = s.net.B.Config.Token
			return payload
		}, models.ErrTokenNotAccepted},
		{"unregistered target", func(p *models.TransferParameters) []byte {
			p.TargetChain = 23
			return payload
		}, models.ErrTargetNotRegistered},
		{"payload too large", func(p *models.TransferParameters) []byte {
			return make([]byte, models.MaxPayloadSize+1)
		}, models.ErrPayloadTooLarge},
		{"amount above allowance", func(p *models.TransferParameters) []byte {
			p.Amount = uint256.NewInt(1001)
			return payload
		}, devnet.ErrInsufficientAllowance},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			p := s.params(10)
			body := tc.malleate(&p)

			_, err := a.Engine.Transfer(s.ctx, s.sender, p, 0, body)
			s.Require().ErrorIs(err, tc.expErr)

			s.Require().Equal(uint64(1000), s.balance(a, s.sender))
			nonce, err := a.Transmitter.NextNonce(s.ctx)
			s.Require().NoError(err)
			s.Require().Zero(nonce)
		})
	}
}

func (s *EngineTestSuite) TestTransferInsufficientBalanceRollsBack() {
	a := s.net.A
	s.Require().NoError(a.Ledger.Approve(s.ctx, s.sender, a.Config.Contract, uint256.NewInt(5000)))

	_, err := a.Engine.Transfer(s.ctx, s.sender, s.params(2000), 0, payload)
	s.Require().ErrorIs(err, devnet.ErrInsufficientBalance)

	allowance, err := a.Ledger.Allowance(s.ctx, s.sender, a.Config.Contract)
	s.Require().NoError(err)
	s.Require().Equal(uint64(5000), allowance.Uint64())
}

// feeChain deploys chain 2 again with a message fee of fee and registers B on it.
func (s *EngineTestSuite) feeChain(fee uint64) *devnet.Chain {
	cfg := devnet.TestnetChain(2, 0, 1, s.net.Guardians, s.net.Attesters)
	cfg.MessageFee = uint256.NewInt(fee)

	ldb, err := db.NewMemLevelDB()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = ldb.Close() })
	chain, err := devnet.NewChain(s.ctx, ldb, cfg)
	s.Require().NoError(err)
	s.Require().NoError(s.net.Register(s.ctx, chain, s.net.B))

	s.Require().NoError(chain.Wallet.Drip(s.ctx, s.sender, uint256.NewInt(1000), nil))
	s.Require().NoError(chain.Wallet.Approve(s.ctx, s.sender, cfg.Contract, uint256.NewInt(1000)))
	return chain
}

func (s *EngineTestSuite) TestMessageFee() {
	chain := s.feeChain(5)
	s.Require().Equal(uint64(5), chain.Engine.MessageFee().Uint64())

	unchanged := func() {
		s.Require().Equal(uint64(1000), s.balance(chain, s.sender))
		allowance, err := chain.Ledger.Allowance(s.ctx, s.sender, chain.Config.Contract)
		s.Require().NoError(err)
		s.Require().Equal(uint64(1000), allowance.Uint64())
		nonce, err := chain.Transmitter.NextNonce(s.ctx)
		s.Require().NoError(err)
		s.Require().Zero(nonce)
		fees, err := chain.Network.FeesCollected(s.ctx)
		s.Require().NoError(err)
		s.Require().True(fees.IsZero())
	}

	for _, sent := range []*uint256.Int{nil, uint256.NewInt(4), uint256.NewInt(6)} {
		p := s.params(10)
		p.MessageFee = sent
		_, err := chain.Engine.Transfer(s.ctx, s.sender, p, 0, payload)
		s.Require().ErrorIs(err, models.ErrInvalidMessageFee)
		unchanged()
	}

	// the fee matches but the sender holds no native coin to pay it
	p := s.params(10)
	p.MessageFee = uint256.NewInt(5)
	_, err := chain.Engine.Transfer(s.ctx, s.sender, p, 0, payload)
	s.Require().ErrorIs(err, devnet.ErrInsufficientBalance)
	unchanged()

	s.Require().NoError(chain.Wallet.Drip(s.ctx, s.sender, nil, uint256.NewInt(7)))
	_, err = chain.Engine.Transfer(s.ctx, s.sender, p, 0, payload)
	s.Require().NoError(err)

	_, native, err := chain.Wallet.Balances(s.ctx, s.sender)
	s.Require().NoError(err)
	s.Require().Equal(uint64(2), native.Uint64())
	fees, err := chain.Network.FeesCollected(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(uint64(5), fees.Uint64())
	s.Require().Equal(uint64(990), s.balance(chain, s.sender))
}

func (s *EngineTestSuite) TestMessagePairIntegrity() {
	b := s.net.B
	_, x := s.send(10)
	_, y := s.send(20)

	mixed := models.RedeemParameters{
		CustodialMessage:     y.CustodialMessage,
		CustodialAttestation: y.CustodialAttestation,
		EncodedEnvelope:      x.EncodedEnvelope,
	}
	_, err := b.Engine.Redeem(s.ctx, s.recipient, mixed)
	s.Require().ErrorIs(err, models.ErrInvalidMessagePair)
	s.Require().Zero(s.balance(b, s.recipient))

	_, err = b.Engine.Redeem(s.ctx, s.recipient, x)
	s.Require().NoError(err)
	_, err = b.Engine.Redeem(s.ctx, s.recipient, y)
	s.Require().NoError(err)
	s.Require().Equal(uint64(30), s.balance(b, s.recipient))
}

func (s *EngineTestSuite) TestCallerMustBeRecipient() {
	b := s.net.B
	_, params := s.send(69)

	_, err := b.Engine.Redeem(s.ctx, s.sender, params)
	s.Require().ErrorIs(err, models.ErrCallerNotRecipient)
	s.Require().Zero(s.balance(b, s.sender))

	_, err = b.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().NoError(err)
	s.Require().Equal(uint64(69), s.balance(b, s.recipient))
}

func (s *EngineTestSuite) TestMintFailureRollsBackRedeemKey() {
	b := s.net.B
	receipt, params := s.send(69)

	b.Transmitter.SetPaused(true)
	_, err := b.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().ErrorIs(err, models.ErrMintFailed)

	redeemed, err := b.Engine.IsRedeemed(s.ctx, receipt.Deposit.SourceDomain, receipt.Deposit.Nonce)
	s.Require().NoError(err)
	s.Require().False(redeemed)
	s.Require().Zero(s.balance(b, s.recipient))

	b.Transmitter.SetPaused(false)
	_, err = b.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().NoError(err)
	s.Require().Equal(uint64(69), s.balance(b, s.recipient))
}

func (s *EngineTestSuite) TestConcurrentRedemptionsSucceedOnce() {
	b := s.net.B
	_, params := s.send(69)

	var succeeded, replayed atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := b.Engine.Redeem(s.ctx, s.recipient, params)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errorsmod.IsOf(err, models.ErrAlreadyRedeemed):
				replayed.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Require().Equal(int32(1), succeeded.Load())
	s.Require().Equal(int32(7), replayed.Load())
	s.Require().Equal(uint64(69), s.balance(b, s.recipient))
}

func (s *EngineTestSuite) TestRedeemRejectsUntrustedEnvelopes() {
	a, b := s.net.A, s.net.B
	receipt, params := s.send(69)

	published, err := a.Network.PublishedMessage(s.ctx, a.Config.Contract, receipt.Sequence)
	s.Require().NoError(err)

	resign := func(malleate func(e *models.Envelope)) []byte {
		e := *published
		malleate(&e)
		encoded, err := s.net.Guardians.Sign(&e)
		s.Require().NoError(err)
		return encoded
	}

	testCases := []struct {
		name     string
		envelope []byte
		expErr   error
	}{
		{"unknown emitter", resign(func(e *models.Envelope) {
			e.EmitterAddress = models.Address{31: 0xee}
		}), models.ErrUnregisteredSender},
		{"unregistered chain", resign(func(e *models.Envelope) {
			e.EmitterChain = 23
		}), models.ErrUnregisteredSender},
		{"deposit for another chain", resign(func(e *models.Envelope) {
			d, err := wire.DecodeDeposit(e.Payload)
			s.Require().NoError(err)
			d.TargetChain = 23
			e.Payload, err = wire.EncodeDeposit(d)
			s.Require().NoError(err)
		}), models.ErrInvalidTargetChain},
		{"not a deposit", resign(func(e *models.Envelope) {
			e.Payload = []byte{1, 2, 3}
		}), models.ErrMalformedMessage},
		{"unsigned", func() []byte {
			e := *published
			encoded, err := wire.EncodeEnvelope(&e)
			s.Require().NoError(err)
			return encoded
		}(), models.ErrInsufficientSignatures},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			p := params
			p.EncodedEnvelope = tc.envelope
			_, err := b.Engine.Redeem(s.ctx, s.recipient, p)
			s.Require().ErrorIs(err, tc.expErr)
		})
	}

	_, err = b.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().NoError(err)
}

func (s *EngineTestSuite) TestRedeemRejectsWeakAttestation() {
	b := s.net.B
	_, params := s.send(69)

	single, err := s.net.Attesters.Signers[0].SignKeccak256(params.CustodialMessage)
	s.Require().NoError(err)
	weak := params
	weak.CustodialAttestation = single[:]

	_, err = b.Engine.Redeem(s.ctx, s.recipient, weak)
	s.Require().ErrorIs(err, models.ErrInvalidAttestation)

	_, err = b.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().NoError(err)
}

func (s *EngineTestSuite) TestRedeemOnWrongChain() {
	// A never registers itself, so its own deposits are not trusted there.
	_, params := s.send(69)
	_, err := s.net.A.Engine.Redeem(s.ctx, s.recipient, params)
	s.Require().ErrorIs(err, models.ErrUnregisteredSender)
}

func (s *EngineTestSuite) TestQueries() {
	a, b := s.net.A, s.net.B

	emitter, err := a.Engine.RegisteredEmitter(s.ctx, b.Config.ChainID)
	s.Require().NoError(err)
	s.Require().Equal(b.Config.Contract, emitter)

	domain, ok, err := a.Engine.DomainForChain(s.ctx, b.Config.ChainID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(b.Config.Domain, domain)

	chain, ok, err := a.Engine.ChainForDomain(s.ctx, b.Config.Domain)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(b.Config.ChainID, chain)

	_, ok, err = a.Engine.ChainForDomain(s.ctx, 99)
	s.Require().NoError(err)
	s.Require().False(ok)

	emitter, err = a.Engine.RegisteredEmitter(s.ctx, 99)
	s.Require().NoError(err)
	s.Require().True(emitter.IsZero())

	endpoints, err := a.Engine.Endpoints(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(endpoints, 1)

	finality, err := a.Engine.Finality(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(uint8(1), finality)
	s.Require().Equal(a.Config.Token, a.Engine.Token())
	s.Require().Equal(a.Config.Domain, a.Engine.LocalDomain())
}
