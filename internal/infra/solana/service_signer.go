// internal/infra/solana/service_signer.go
package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"

	"atelier/internal/infra/config"
)

var (
	ErrServiceKeyNotConfigured = errors.New("service_signer: no key source configured")
	ErrServiceKeyInvalid       = errors.New("service_signer: invalid keypair")
)

// ServiceSigner はサービスが保持する唯一の長期鍵ペアです。
// 2 つの役割を兼ねる:
//   - ストレージネットワークのアップロード認可メッセージへの ed25519 署名
//   - ミントトランザクション組み立て時のサーバ側部分署名
//
// エンドユーザーのウォレット鍵では「ない」。fee payer の署名は常に外部ウォレット。
type ServiceSigner struct {
	Account types.Account
}

// PublicKeyBase58 は署名者の公開アドレスを返します。
func (s *ServiceSigner) PublicKeyBase58() string {
	if s == nil {
		return ""
	}
	return s.Account.PublicKey.ToBase58()
}

// PrivateKey は ed25519 秘密鍵（64 バイト）を返します。
func (s *ServiceSigner) PrivateKey() ed25519.PrivateKey {
	if s == nil {
		return nil
	}
	return ed25519.PrivateKey(s.Account.PrivateKey)
}

// LoadServiceSigner は Config に従ってサービス鍵を復元します。
// 優先順: Secret Manager → 鍵ファイル → 環境変数の JSON 配列。
// どれも設定されていなければ ErrServiceKeyNotConfigured。
func LoadServiceSigner(ctx context.Context, cfg *config.Config) (*ServiceSigner, error) {
	if cfg == nil {
		return nil, ErrServiceKeyNotConfigured
	}

	if name := strings.TrimSpace(cfg.ServiceKeySecret); name != "" {
		return loadFromSecretManager(ctx, name)
	}

	if path := strings.TrimSpace(cfg.ServiceKeyFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("service_signer: read key file: %w", err)
		}
		return signerFromKeypairJSON(data, "file:"+path)
	}

	if raw := strings.TrimSpace(cfg.ServiceKeyJSON); raw != "" {
		return signerFromKeypairJSON([]byte(raw), "env:SERVICE_KEY_JSON")
	}

	return nil, ErrServiceKeyNotConfigured
}

// loadFromSecretManager は Secret Version のフルパス
// ("projects/<PROJECT_ID>/secrets/<SECRET_ID>/versions/latest") から
// solana-keygen 形式の keypair JSON を取得して復元します。
func loadFromSecretManager(ctx context.Context, secretName string) (*ServiceSigner, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("service_signer: secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return nil, fmt.Errorf("service_signer: AccessSecretVersion: %w", err)
	}

	return signerFromKeypairJSON(resp.Payload.Data, "secretmanager:"+secretName)
}

func signerFromKeypairJSON(data []byte, source string) (*ServiceSigner, error) {
	keyBytes, err := decodeKeypairJSON(data)
	if err != nil {
		return nil, err
	}

	acc, err := types.AccountFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: AccountFromBytes: %v", ErrServiceKeyInvalid, err)
	}

	// 鍵の取得経路と公開鍵だけログに出す（秘密鍵は出さない）
	log.Printf(
		"[service_signer] loaded service keypair: source=%s pubkey=%s",
		source,
		acc.PublicKey.ToBase58(),
	)

	return &ServiceSigner{Account: acc}, nil
}

// decodeKeypairJSON は solana-keygen の keypair JSON から 64 バイトの
// 鍵配列を復元します。
// - 正: [u8;64] を []byte で受け取る
// - 互換: [int,...] を []int で受けてから []byte に変換
func decodeKeypairJSON(data []byte) ([]byte, error) {
	var keyBytes []byte
	if err := json.Unmarshal(data, &keyBytes); err == nil {
		if len(keyBytes) == ed25519.PrivateKeySize {
			return keyBytes, nil
		}
		// 長さが想定外の場合は後続のパスでエラーにする
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("%w: unmarshal keypair json: %v", ErrServiceKeyInvalid, err)
	}

	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrServiceKeyInvalid, len(ints), ed25519.PrivateKeySize)
	}

	keyBytes = make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte out of range at %d: %d", ErrServiceKeyInvalid, i, v)
		}
		keyBytes[i] = byte(v)
	}

	return keyBytes, nil
}
