package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the validity-prover service.
type Config struct {
	// L1/L2 RPC endpoints
	L1RPCURL    string
	L1ChainID   int64
	L2RPCURL    string
	L2ChainID   int64

	// Contract addresses watched by the observers
	RollupContractAddress    string
	LiquidityContractAddress string
	RollupDeployedBlock      uint64

	// Reorg tolerance
	L1SafetyConfirmations uint64
	L2SafetyConfirmations uint64

	// Server configuration
	ListenAddr  string
	MetricsAddr string

	// Database configuration (URL-based, matches lib/pq DSN format)
	DatabaseURL         string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int
	DatabaseConnMaxIdleTime time.Duration
	DatabaseConnMaxLifetime time.Duration

	// Observer/reconstructor/coordinator poll cadence
	L1PollInterval       time.Duration
	L2PollInterval       time.Duration
	ReconstructorInterval time.Duration
	ChainingInterval     time.Duration
	MaxBlocksPerScan     uint64

	// Prover task coordination (C6)
	ProverLeaseTTL        time.Duration
	ProverHeartbeatPeriod time.Duration
	LeaseSweepInterval    time.Duration

	// Backup & prune (C1 retention)
	BackupOffset     uint32
	BackupInterval   time.Duration

	// AggregatorEndpoint is the external recursion service C6's chaining
	// loop posts transition proofs to (§4.6).
	AggregatorEndpoint string

	LogLevel string
}

// Load reads configuration from environment variables. Required variables
// have no defaults; call Validate() after Load() to enforce their presence.
func Load() (*Config, error) {
	cfg := &Config{
		L1RPCURL:  getEnv("L1_RPC_URL", ""),
		L1ChainID: getEnvInt64("L1_CHAIN_ID", 11155111),
		L2RPCURL:  getEnv("L2_RPC_URL", ""),
		L2ChainID: getEnvInt64("L2_CHAIN_ID", 1),

		RollupContractAddress:    getEnv("ROLLUP_CONTRACT_ADDRESS", ""),
		LiquidityContractAddress: getEnv("LIQUIDITY_CONTRACT_ADDRESS", ""),
		RollupDeployedBlock:      uint64(getEnvInt64("ROLLUP_DEPLOYED_BLOCK", 0)),

		L1SafetyConfirmations: uint64(getEnvInt64("L1_SAFETY_CONFIRMATIONS", 12)),
		L2SafetyConfirmations: uint64(getEnvInt64("L2_SAFETY_CONFIRMATIONS", 3)),

		ListenAddr:  getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),

		DatabaseURL:             getEnv("DATABASE_URL", ""),
		DatabaseMaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
		DatabaseConnMaxIdleTime: getEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
		DatabaseConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),

		L1PollInterval:        getEnvDuration("L1_POLL_INTERVAL", 15*time.Second),
		L2PollInterval:        getEnvDuration("L2_POLL_INTERVAL", 5*time.Second),
		ReconstructorInterval: getEnvDuration("RECONSTRUCTOR_INTERVAL", 2*time.Second),
		ChainingInterval:      getEnvDuration("CHAINING_INTERVAL", 2*time.Second),
		MaxBlocksPerScan:      uint64(getEnvInt64("MAX_BLOCKS_PER_SCAN", 2000)),

		ProverLeaseTTL:        getEnvDuration("PROVER_LEASE_TTL", 30*time.Second),
		ProverHeartbeatPeriod: getEnvDuration("PROVER_HEARTBEAT_PERIOD", 10*time.Second),
		LeaseSweepInterval:    getEnvDuration("LEASE_SWEEP_INTERVAL", 5*time.Second),

		BackupOffset:   uint32(getEnvInt("BACKUP_OFFSET", 10000)),
		BackupInterval: getEnvDuration("BACKUP_INTERVAL", time.Hour),

		AggregatorEndpoint: getEnv("AGGREGATOR_ENDPOINT", "http://localhost:9400/aggregate"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present. Must be
// called after Load() before starting the service.
func (c *Config) Validate() error {
	var errs []string

	if c.L1RPCURL == "" {
		errs = append(errs, "L1_RPC_URL is required but not set")
	}
	if c.L2RPCURL == "" {
		errs = append(errs, "L2_RPC_URL is required but not set")
	}
	if c.RollupContractAddress == "" {
		errs = append(errs, "ROLLUP_CONTRACT_ADDRESS is required but not set")
	}
	if c.LiquidityContractAddress == "" {
		errs = append(errs, "LIQUIDITY_CONTRACT_ADDRESS is required but not set")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	} else if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		errs = append(errs, "DATABASE_URL must not disable TLS in production (sslmode=disable found)")
	}
	if c.ProverLeaseTTL <= c.ProverHeartbeatPeriod {
		errs = append(errs, "PROVER_LEASE_TTL must be greater than PROVER_HEARTBEAT_PERIOD")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local
// development against a devnet. Do not use in production.
func (c *Config) ValidateForDevelopment() error {
	var errs []string
	if c.L1RPCURL == "" {
		errs = append(errs, "L1_RPC_URL is required")
	}
	if c.L2RPCURL == "" {
		errs = append(errs, "L2_RPC_URL is required")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("development configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
