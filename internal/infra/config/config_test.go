package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	// 既定値の確認。CI 側で設定済みの環境変数は明示的に潰す
	for _, key := range []string{
		"PORT", "SOLANA_RPC_ENDPOINT", "SOLANA_COMMITMENT", "SOLANA_EXPLORER_CLUSTER",
		"STORAGE_HOST", "STORAGE_API_BASE", "STORAGE_ACCOUNT",
		"UPLOAD_MAX_ATTEMPTS", "UPLOAD_BACKOFF_BASE", "UPLOAD_VERIFY_DELAY",
		"CONFIRM_TIMEOUT", "CONFIRM_POLL_INTERVAL",
		"TOKEN_SYMBOL", "ROYALTY_BASIS_POINTS",
		"GCP_PROJECT_ID", "FIRESTORE_PROJECT_ID", "POSTGRES_DSN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.SolanaRPCEndpoint)
	assert.Equal(t, "confirmed", cfg.SolanaCommitment)
	assert.Equal(t, "devnet", cfg.ExplorerCluster)

	assert.Equal(t, "https://shdw-drive.genesysgo.net", cfg.StorageHost)
	assert.Equal(t, "https://shadow-storage.genesysgo.net", cfg.StorageAPIBase)
	assert.Empty(t, cfg.StorageAccount)

	assert.Equal(t, 3, cfg.UploadMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.UploadBackoffBase)
	assert.Equal(t, 2*time.Second, cfg.UploadVerifyDelay)

	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConfirmPollInterval)

	assert.Equal(t, "ATLR", cfg.TokenSymbol)
	assert.Equal(t, uint16(500), cfg.RoyaltyBasisPoints)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SOLANA_RPC_ENDPOINT", "http://localhost:8899")
	t.Setenv("SOLANA_COMMITMENT", "finalized")
	t.Setenv("SOLANA_EXPLORER_CLUSTER", "mainnet-beta")
	t.Setenv("STORAGE_ACCOUNT", "AcctKey111")
	t.Setenv("UPLOAD_MAX_ATTEMPTS", "5")
	t.Setenv("UPLOAD_BACKOFF_BASE", "250ms")
	t.Setenv("CONFIRM_TIMEOUT", "90s")
	t.Setenv("TOKEN_SYMBOL", "NRTV")
	t.Setenv("ROYALTY_BASIS_POINTS", "750")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:8899", cfg.SolanaRPCEndpoint)
	assert.Equal(t, "finalized", cfg.SolanaCommitment)
	assert.Equal(t, "mainnet-beta", cfg.ExplorerCluster)
	assert.Equal(t, "AcctKey111", cfg.StorageAccount)
	assert.Equal(t, 5, cfg.UploadMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.UploadBackoffBase)
	assert.Equal(t, 90*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, "NRTV", cfg.TokenSymbol)
	assert.Equal(t, uint16(750), cfg.RoyaltyBasisPoints)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("UPLOAD_MAX_ATTEMPTS", "zero")
	t.Setenv("CONFIRM_TIMEOUT", "-5s")
	t.Setenv("ROYALTY_BASIS_POINTS", "-1")

	cfg := Load()

	assert.Equal(t, 3, cfg.UploadMaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, uint16(500), cfg.RoyaltyBasisPoints)
}

func TestFirestoreProjectFallsBackToGCPProject(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "")
	t.Setenv("GCP_PROJECT_ID", "my-project")

	cfg := Load()
	assert.Equal(t, "my-project", cfg.FirestoreProjectID)
}
