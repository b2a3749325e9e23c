package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so topology files can express intervals as
// "15s", "2m", etc. instead of raw nanosecond integers.
type Duration time.Duration

func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Topology describes static per-environment deployment facts that change
// rarely enough to live in a checked-in file rather than process
// environment variables: contract addresses, safety-confirmation counts,
// and the backup cron schedule. Env-var references of the form
// ${VAR_NAME} or ${VAR_NAME:-default} are substituted before parsing, so
// secrets still come from the environment while topology stays in git.
type Topology struct {
	Environment string `yaml:"environment"`

	Contracts struct {
		RollupAddress     string `yaml:"rollup_address"`
		LiquidityAddress  string `yaml:"liquidity_address"`
		DeployedBlock     uint64 `yaml:"deployed_block"`
	} `yaml:"contracts"`

	Safety struct {
		L1Confirmations uint64 `yaml:"l1_confirmations"`
		L2Confirmations uint64 `yaml:"l2_confirmations"`
	} `yaml:"safety"`

	Backup struct {
		Offset   uint32   `yaml:"offset"`
		Schedule string   `yaml:"schedule"` // cron expression
		Interval Duration `yaml:"interval"`
	} `yaml:"backup"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, fallback := groups[1], groups[3]
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// LoadTopology reads and parses a topology YAML file, substituting
// ${VAR}/${VAR:-default} references against the process environment.
func LoadTopology(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}

	substituted := substituteEnvVars(string(raw))

	var topo Topology
	if err := yaml.Unmarshal([]byte(substituted), &topo); err != nil {
		return nil, fmt.Errorf("parse topology file: %w", err)
	}
	return &topo, nil
}

// ApplyTopology overlays topology values onto a Config for fields the
// topology file specifies, leaving env-var-derived values untouched where
// the topology is silent (zero value). Environment and Backup.Schedule are
// parsed but not applied: Config has no cron field, and the backup job
// runs every BackupInterval.
func (c *Config) ApplyTopology(t *Topology) {
	if t.Contracts.RollupAddress != "" {
		c.RollupContractAddress = t.Contracts.RollupAddress
	}
	if t.Contracts.LiquidityAddress != "" {
		c.LiquidityContractAddress = t.Contracts.LiquidityAddress
	}
	if t.Contracts.DeployedBlock != 0 {
		c.RollupDeployedBlock = t.Contracts.DeployedBlock
	}
	if t.Safety.L1Confirmations != 0 {
		c.L1SafetyConfirmations = t.Safety.L1Confirmations
	}
	if t.Safety.L2Confirmations != 0 {
		c.L2SafetyConfirmations = t.Safety.L2Confirmations
	}
	if t.Backup.Offset != 0 {
		c.BackupOffset = t.Backup.Offset
	}
	if t.Backup.Interval != 0 {
		c.BackupInterval = t.Backup.Interval.AsDuration()
	}
}
