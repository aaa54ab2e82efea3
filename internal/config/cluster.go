package config

import "time"

const (
	// DefaultRpcURL is the JSON-RPC endpoint of solana-test-validator.
	DefaultRpcURL = "http://127.0.0.1:8899"
	// DefaultProgramID is the address the escrow program is deployed at by `anchor deploy` on localnet.
	DefaultProgramID = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"
)

// Cluster defines the RPC endpoint and commitment levels used for submission.
type Cluster struct {
	RpcURL              string `yaml:"rpc_url"`
	Commitment          string `yaml:"commitment"`           // processed|confirmed|finalized
	PreflightCommitment string `yaml:"preflight_commitment"` // processed|confirmed|finalized
	ConfirmTimeoutMs    int    `yaml:"confirm_timeout_ms"`
	PollIntervalMs      int    `yaml:"poll_interval_ms"`
}

// ConfirmTimeout bounds how long a signature is polled before giving up.
func (c Cluster) ConfirmTimeout() time.Duration { return millis(c.ConfirmTimeoutMs, 60_000) }

// PollInterval is the delay between signature status polls.
func (c Cluster) PollInterval() time.Duration { return millis(c.PollIntervalMs, 500) }

// Program identifies the escrow program and the seeds of its derived addresses.
type Program struct {
	ID            string `yaml:"id"`
	VaultSeed     string `yaml:"vault_seed"`
	AuthoritySeed string `yaml:"authority_seed"`
}

// Wallet stores env-backed or file-backed signing material for the initializer.
type Wallet struct {
	PrivateKeyBase58 string `yaml:"private_key_base58"`
	KeypairPath      string `yaml:"keypair_path"`
}
