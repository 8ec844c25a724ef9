// internal/adapters/out/db/mint_record_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mintdom "atelier/internal/domain/mint"
)

// PG implementation of mintdom.RecordRepository.
// ローカル開発や自前ホスティング向けの Firestore 代替。
//
// 想定テーブル:
//
//	CREATE TABLE mints (
//	  id                    TEXT PRIMARY KEY,
//	  mint_address          TEXT NOT NULL UNIQUE,
//	  user_wallet_address   TEXT NOT NULL,
//	  name                  TEXT NOT NULL DEFAULT '',
//	  description           TEXT NOT NULL DEFAULT '',
//	  image_uri             TEXT NOT NULL,
//	  metadata_uri          TEXT NOT NULL,
//	  transaction_signature TEXT,
//	  explorer_url          TEXT,
//	  minted                BOOLEAN NOT NULL DEFAULT FALSE,
//	  created_at            TIMESTAMPTZ NOT NULL,
//	  minted_at             TIMESTAMPTZ
//	);
type MintRecordRepositoryPG struct {
	DB *sql.DB
}

var _ mintdom.RecordRepository = (*MintRecordRepositoryPG)(nil)

func NewMintRecordRepositoryPG(db *sql.DB) *MintRecordRepositoryPG {
	return &MintRecordRepositoryPG{DB: db}
}

func (r *MintRecordRepositoryPG) Create(ctx context.Context, rec mintdom.MintRecord) (mintdom.MintRecord, error) {
	if r == nil || r.DB == nil {
		return mintdom.MintRecord{}, errors.New("pg: db is nil")
	}

	if rec.ID == "" {
		rec.ID = rec.MintAddress
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := rec.Validate(); err != nil {
		return mintdom.MintRecord{}, err
	}

	const q = `
INSERT INTO mints (
  id, mint_address, user_wallet_address, name, description,
  image_uri, metadata_uri, transaction_signature, explorer_url,
  minted, created_at, minted_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  mint_address = EXCLUDED.mint_address,
  user_wallet_address = EXCLUDED.user_wallet_address,
  name = EXCLUDED.name,
  description = EXCLUDED.description,
  image_uri = EXCLUDED.image_uri,
  metadata_uri = EXCLUDED.metadata_uri`

	_, err := r.DB.ExecContext(ctx, q,
		rec.ID, rec.MintAddress, rec.UserWalletAddress, rec.Name, rec.Description,
		rec.ImageURI, rec.MetadataURI,
		nullIfEmpty(rec.TransactionSignature), nullIfEmpty(rec.ExplorerURL),
		rec.Minted, rec.CreatedAt, rec.MintedAt,
	)
	if err != nil {
		return mintdom.MintRecord{}, fmt.Errorf("pg: create mint record: %w", err)
	}
	return rec, nil
}

func (r *MintRecordRepositoryPG) GetByID(ctx context.Context, id string) (*mintdom.MintRecord, error) {
	if r == nil || r.DB == nil {
		return nil, errors.New("pg: db is nil")
	}

	const q = `
SELECT
  id, mint_address, user_wallet_address, name, description,
  image_uri, metadata_uri, transaction_signature, explorer_url,
  minted, created_at, minted_at
FROM mints
WHERE id = $1`
	return scanMintRecord(r.DB.QueryRowContext(ctx, q, strings.TrimSpace(id)))
}

func (r *MintRecordRepositoryPG) GetByMintAddress(ctx context.Context, mintAddress string) (*mintdom.MintRecord, error) {
	if r == nil || r.DB == nil {
		return nil, errors.New("pg: db is nil")
	}

	const q = `
SELECT
  id, mint_address, user_wallet_address, name, description,
  image_uri, metadata_uri, transaction_signature, explorer_url,
  minted, created_at, minted_at
FROM mints
WHERE mint_address = $1`
	return scanMintRecord(r.DB.QueryRowContext(ctx, q, strings.TrimSpace(mintAddress)))
}

func (r *MintRecordRepositoryPG) MarkMinted(ctx context.Context, mintAddress, signature, explorerURL string, at time.Time) (*mintdom.MintRecord, error) {
	if r == nil || r.DB == nil {
		return nil, errors.New("pg: db is nil")
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}

	const q = `
UPDATE mints SET
  minted = TRUE,
  transaction_signature = $2,
  explorer_url = $3,
  minted_at = $4
WHERE mint_address = $1`

	res, err := r.DB.ExecContext(ctx, q, strings.TrimSpace(mintAddress), signature, explorerURL, at.UTC())
	if err != nil {
		return nil, fmt.Errorf("pg: mark minted: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, mintdom.ErrNotFound
	}

	return r.GetByMintAddress(ctx, mintAddress)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMintRecord(row rowScanner) (*mintdom.MintRecord, error) {
	var (
		rec      mintdom.MintRecord
		txSig    sql.NullString
		explorer sql.NullString
		mintedAt sql.NullTime
	)

	err := row.Scan(
		&rec.ID, &rec.MintAddress, &rec.UserWalletAddress, &rec.Name, &rec.Description,
		&rec.ImageURI, &rec.MetadataURI, &txSig, &explorer,
		&rec.Minted, &rec.CreatedAt, &mintedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mintdom.ErrNotFound
		}
		return nil, err
	}

	rec.TransactionSignature = txSig.String
	rec.ExplorerURL = explorer.String
	if mintedAt.Valid {
		t := mintedAt.Time.UTC()
		rec.MintedAt = &t
	}

	return &rec, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
