package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/viper"

	"circle-integration/models"
)

// EnvPrefix prefixes every environment override, e.g. CIRCLE_SERVER_PORT.
const EnvPrefix = "CIRCLE"

// Config is the node configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	LevelDB    LevelDBConfig    `mapstructure:"leveldb"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Governance GovernanceConfig `mapstructure:"governance"`
	Devnet     DevnetConfig     `mapstructure:"devnet"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	AppLogFile string `mapstructure:"app_log_file"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

// ChainConfig identifies the local deployment.
type ChainConfig struct {
	ID          uint16 `mapstructure:"id"`
	Domain      uint32 `mapstructure:"domain"`
	Token       string `mapstructure:"token"`
	Contract    string `mapstructure:"contract"`
	Transmitter string `mapstructure:"transmitter"`
	Finality    uint8  `mapstructure:"finality"`
}

// GovernanceConfig is the emitter governance messages must come from.
type GovernanceConfig struct {
	ChainID  uint16 `mapstructure:"chain_id"`
	Contract string `mapstructure:"contract"`
}

// DevnetConfig holds the keys of the in-process guardians and attesters.
type DevnetConfig struct {
	GuardianKeys       []string `mapstructure:"guardian_keys"`
	GuardianSetIndex   uint32   `mapstructure:"guardian_set_index"`
	AttesterKeys       []string `mapstructure:"attester_keys"`
	SignatureThreshold uint32   `mapstructure:"signature_threshold"`
	MessageFee         string   `mapstructure:"message_fee"`
	Faucet             bool     `mapstructure:"faucet"`
}

var defaults = map[string]any{
	"server.port":                8080,
	"log.level":                  "info",
	"log.app_log_file":           "",
	"leveldb.path":               "data/leveldb",
	"chain.id":                   0,
	"chain.domain":               0,
	"chain.token":                "",
	"chain.contract":             "",
	"chain.transmitter":          "",
	"chain.finality":             1,
	"governance.chain_id":        1,
	"governance.contract":        "0x0000000000000000000000000000000000000000000000000000000000000004",
	"devnet.guardian_keys":       []string{},
	"devnet.guardian_set_index":  0,
	"devnet.attester_keys":       []string{},
	"devnet.signature_threshold": 1,
	"devnet.message_fee":         "0",
	"devnet.faucet":              false,
}

// Load reads the YAML file at path, applies CIRCLE_* environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Chain.ID == 0 {
		return fmt.Errorf("chain.id must be set")
	}
	if c.Chain.ID == c.Governance.ChainID {
		return fmt.Errorf("chain.id %d is the governance chain", c.Chain.ID)
	}
	for key, value := range map[string]string{
		"chain.token":         c.Chain.Token,
		"chain.contract":      c.Chain.Contract,
		"chain.transmitter":   c.Chain.Transmitter,
		"governance.contract": c.Governance.Contract,
	} {
		addr, err := models.AddressFromHex(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if addr.IsZero() {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if len(c.Devnet.GuardianKeys) == 0 {
		return fmt.Errorf("devnet.guardian_keys must not be empty")
	}
	if c.Devnet.SignatureThreshold == 0 || int(c.Devnet.SignatureThreshold) > len(c.Devnet.AttesterKeys) {
		return fmt.Errorf("devnet.signature_threshold %d invalid for %d attester keys",
			c.Devnet.SignatureThreshold, len(c.Devnet.AttesterKeys))
	}
	if _, err := c.MessageFee(); err != nil {
		return err
	}
	return nil
}

// MessageFee parses devnet.message_fee as a decimal amount.
func (c *Config) MessageFee() (*uint256.Int, error) {
	if c.Devnet.MessageFee == "" {
		return new(uint256.Int), nil
	}
	fee, err := uint256.FromDecimal(c.Devnet.MessageFee)
	if err != nil {
		return nil, fmt.Errorf("devnet.message_fee: %w", err)
	}
	return fee, nil
}

// Address parses one of the validated address settings.
func Address(value string) models.Address {
	addr, _ := models.AddressFromHex(value)
	return addr
}
