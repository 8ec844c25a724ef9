// internal/infra/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の環境変数設定を保持します。
// プロセス起動時に一度だけ Load し、以後 immutable として各層に渡すこと。
// （呼び出し時に os.Getenv を読むグローバル状態は持たない）
type Config struct {
	Port string

	// Solana
	SolanaRPCEndpoint string
	SolanaCommitment  string // 確認ポーリングの commitment（confirmed / finalized）
	ExplorerCluster   string // explorer URL の ?cluster= に入る値

	// サービス署名鍵（ストレージ認証 + mint keypair の部分署名に使う）
	// 優先順: Secret Manager → ファイル → 環境変数の JSON 配列
	ServiceKeySecret string // "projects/<id>/secrets/<id>/versions/latest"
	ServiceKeyFile   string
	ServiceKeyJSON   string

	// ストレージネットワーク（Shadow Drive 互換）
	StorageHost    string // 公開 URL のホスト
	StorageAPIBase string // アップロード API のベース URL
	StorageAccount string // 事前プロビジョニング済みの storage account

	// アップロード再試行
	UploadMaxAttempts int
	UploadBackoffBase time.Duration
	UploadVerifyDelay time.Duration

	// relay の確認ポーリング
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	// ミント既定値
	TokenSymbol        string
	RoyaltyBasisPoints uint16

	// mint レコード永続化
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	PostgresDSN              string // 指定時は Firestore の代わりに PG を使う

	// 任意: Firebase Auth（未設定なら認証ミドルウェアは無効）
	FirebaseProjectID string

	// 任意: ミント確定通知メール（未設定なら通知はスキップ）
	SendGridAPIKey  string
	NotifyFromEmail string
	NotifyToEmail   string
}

// Load は環境変数を読み込み Config を返します。
func Load() *Config {
	defaultProject := getenvDefault("GCP_PROJECT_ID", "")

	cfg := &Config{
		Port: getenvDefault("PORT", "8080"),

		SolanaRPCEndpoint: getenvDefault("SOLANA_RPC_ENDPOINT", "https://api.devnet.solana.com"),
		SolanaCommitment:  getenvDefault("SOLANA_COMMITMENT", "confirmed"),
		ExplorerCluster:   getenvDefault("SOLANA_EXPLORER_CLUSTER", "devnet"),

		ServiceKeySecret: os.Getenv("SERVICE_KEY_SECRET"),
		ServiceKeyFile:   os.Getenv("SERVICE_KEY_FILE"),
		ServiceKeyJSON:   os.Getenv("SERVICE_KEY_JSON"),

		StorageHost:    getenvDefault("STORAGE_HOST", "https://shdw-drive.genesysgo.net"),
		StorageAPIBase: getenvDefault("STORAGE_API_BASE", "https://shadow-storage.genesysgo.net"),
		StorageAccount: os.Getenv("STORAGE_ACCOUNT"),

		UploadMaxAttempts: getenvInt("UPLOAD_MAX_ATTEMPTS", 3),
		UploadBackoffBase: getenvDuration("UPLOAD_BACKOFF_BASE", 500*time.Millisecond),
		UploadVerifyDelay: getenvDuration("UPLOAD_VERIFY_DELAY", 2*time.Second),

		ConfirmTimeout:      getenvDuration("CONFIRM_TIMEOUT", 60*time.Second),
		ConfirmPollInterval: getenvDuration("CONFIRM_POLL_INTERVAL", 2*time.Second),

		TokenSymbol:        getenvDefault("TOKEN_SYMBOL", "ATLR"),
		RoyaltyBasisPoints: uint16(getenvInt("ROYALTY_BASIS_POINTS", 500)),

		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),

		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),

		SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		NotifyFromEmail: os.Getenv("NOTIFY_FROM_EMAIL"),
		NotifyToEmail:   os.Getenv("NOTIFY_TO_EMAIL"),
	}

	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
