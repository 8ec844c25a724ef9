// cmd/drive/main.go
//
// ストレージアップロードの疎通確認用デバッグコマンド。
// サービス鍵と STORAGE_ACCOUNT を設定して実行すると
// 小さな JSON を 1 件アップロードして URI を表示する。
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	mintdom "atelier/internal/domain/mint"
	appcfg "atelier/internal/infra/config"
	"atelier/internal/infra/shadowdrive"
	solanainfra "atelier/internal/infra/solana"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := appcfg.Load()

	signer, err := solanainfra.LoadServiceSigner(ctx, cfg)
	if err != nil {
		log.Fatalf("load service signer: %v", err)
	}

	if cfg.StorageAccount == "" {
		log.Fatal("STORAGE_ACCOUNT is empty")
	}

	u := shadowdrive.NewUploader(
		cfg.StorageHost,
		cfg.StorageAPIBase,
		cfg.StorageAccount,
		signer,
		cfg.UploadMaxAttempts,
		cfg.UploadBackoffBase,
		cfg.UploadVerifyDelay,
	)

	payload := map[string]any{
		"hello": "from drive debug",
		"ts":    time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal json: %v", err)
	}

	log.Printf("[debug-drive] upload to account=%s ...", cfg.StorageAccount)
	uri, err := u.Upload(ctx, mintdom.AssetBlob{
		Data:        data,
		ContentType: mintdom.ContentTypeJSON,
	}, "ping.json")
	if err != nil {
		log.Fatalf("upload failed: %v", err)
	}

	log.Printf("[debug-drive] OK uri=%s", uri)
}
