package main

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"circle-integration/config"
	"circle-integration/devnet"
	"circle-integration/models"
	"circle-integration/wire"
)

func newGovernanceCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		sequence    uint64
		targetChain uint16
	)

	cmd := &cobra.Command{
		Use:   "governance",
		Short: "Sign governance messages with the configured guardian keys",
	}
	cmd.PersistentFlags().Uint64Var(&sequence, "sequence", 0, "governance message sequence")
	cmd.PersistentFlags().Uint16Var(&targetChain, "target-chain", 0, "chain the action applies to (default: chain.id)")

	// sign wraps the built payload into an envelope emitted by the configured governance contract.
	sign := func(cmd *cobra.Command, build func(header models.GovernanceHeader) []byte) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		guardians, err := devnet.NewGuardians(cfg.Devnet.GuardianSetIndex, cfg.Devnet.GuardianKeys)
		if err != nil {
			return err
		}

		header := models.GovernanceHeader{TargetChain: models.ChainID(cfg.Chain.ID)}
		if targetChain != 0 {
			header.TargetChain = models.ChainID(targetChain)
		}
		encoded, err := guardians.Governance(models.ChainID(cfg.Governance.ChainID),
			config.Address(cfg.Governance.Contract), sequence, build(header))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(encoded))
		return nil
	}

	register := &cobra.Command{
		Use:   "register <foreign-chain> <foreign-emitter> <foreign-domain>",
		Short: "Register the integration deployed on another chain",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("foreign chain: %w", err)
			}
			emitter, err := models.AddressFromHex(args[1])
			if err != nil {
				return err
			}
			domain, err := strconv.ParseUint(args[2], 10, 32)
			if err != nil {
				return fmt.Errorf("foreign domain: %w", err)
			}
			return sign(cmd, func(header models.GovernanceHeader) []byte {
				return wire.EncodeRegisterEmitterAndDomain(&models.RegisterEmitterAndDomain{
					GovernanceHeader: header,
					ForeignChain:     models.ChainID(chain),
					ForeignEmitter:   emitter,
					ForeignDomain:    models.Domain(domain),
				})
			})
		},
	}

	upgrade := &cobra.Command{
		Use:   "upgrade <implementation>",
		Short: "Upgrade the integration to a new implementation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			impl, err := models.AddressFromHex(args[0])
			if err != nil {
				return err
			}
			return sign(cmd, func(header models.GovernanceHeader) []byte {
				return wire.EncodeUpgradeContract(&models.UpgradeContract{
					GovernanceHeader:  header,
					NewImplementation: impl,
				})
			})
		},
	}

	finality := &cobra.Command{
		Use:   "finality <consistency-level>",
		Short: "Change the consistency level of published deposits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil {
				return fmt.Errorf("consistency level: %w", err)
			}
			return sign(cmd, func(header models.GovernanceHeader) []byte {
				return wire.EncodeUpdateFinality(&models.UpdateFinality{
					GovernanceHeader: header,
					Finality:         uint8(level),
				})
			})
		},
	}

	cmd.AddCommand(register, upgrade, finality)
	return cmd
}
