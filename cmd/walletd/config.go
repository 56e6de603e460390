package main

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/code-payments/wallet-server/pkg/app"
)

type postgresConfig struct {
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Host               string `mapstructure:"host"`
	Port               string `mapstructure:"port"`
	DbName             string `mapstructure:"db_name"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
	UseAwsIam          bool   `mapstructure:"use_aws_iam"`
}

type walletConfig struct {
	// Solana JSON-RPC endpoint per chain id
	RpcEndpoints map[string]string `mapstructure:"rpc_endpoints"`

	// The in memory store is used when no host is configured
	Postgres postgresConfig `mapstructure:"postgres"`

	// Status events are not published when empty
	NatsUrl        string `mapstructure:"nats_url"`
	EventWorkers   uint   `mapstructure:"event_workers"`
	EventQueueSize uint   `mapstructure:"event_queue_size"`

	// File URLs. The keyring file holds one base58 private key per line.
	KeyringFile   string `mapstructure:"keyring_file"`
	BlocklistFile string `mapstructure:"blocklist_file"`

	ReconciliationInterval time.Duration `mapstructure:"reconciliation_interval"`
}

var defaultWalletConfig = walletConfig{
	Postgres: postgresConfig{
		Port: "5432",
	},
	EventWorkers:           16,
	EventQueueSize:         1024,
	ReconciliationInterval: time.Minute,
}

func init() {
	_ = viper.BindEnv("app.nats_url", "NATS_URL")
	_ = viper.BindEnv("app.keyring_file", "KEYRING_FILE")
	_ = viper.BindEnv("app.blocklist_file", "BLOCKLIST_FILE")
	_ = viper.BindEnv("app.reconciliation_interval", "RECONCILIATION_INTERVAL")

	_ = viper.BindEnv("app.postgres.user", "POSTGRES_USER")
	_ = viper.BindEnv("app.postgres.password", "POSTGRES_PASSWORD")
	_ = viper.BindEnv("app.postgres.host", "POSTGRES_HOST")
	_ = viper.BindEnv("app.postgres.port", "POSTGRES_PORT")
	_ = viper.BindEnv("app.postgres.db_name", "POSTGRES_DB_NAME")
	_ = viper.BindEnv("app.postgres.use_aws_iam", "POSTGRES_USE_AWS_IAM")
}

func decodeWalletConfig(raw app.Config) (walletConfig, error) {
	config := defaultWalletConfig
	config.RpcEndpoints = make(map[string]string)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return walletConfig{}, errors.Wrap(err, "error creating config decoder")
	}

	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return walletConfig{}, errors.Wrap(err, "error decoding wallet config")
	}

	if len(config.RpcEndpoints) == 0 {
		return walletConfig{}, errors.New("at least one rpc endpoint is required")
	}
	if config.ReconciliationInterval <= 0 {
		return walletConfig{}, errors.New("reconciliation interval must be positive")
	}
	if config.EventWorkers == 0 || config.EventQueueSize == 0 {
		return walletConfig{}, errors.New("event workers and queue size must be positive")
	}
	return config, nil
}
