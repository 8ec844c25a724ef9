// internal/adapters/out/firestore/mint_record_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	mintdom "atelier/internal/domain/mint"
)

const mintCollection = "mints"

// MintRecordRepositoryFS implements mintdom.RecordRepository using Firestore.
type MintRecordRepositoryFS struct {
	Client *firestore.Client
}

var _ mintdom.RecordRepository = (*MintRecordRepositoryFS)(nil)

func NewMintRecordRepositoryFS(client *firestore.Client) *MintRecordRepositoryFS {
	return &MintRecordRepositoryFS{Client: client}
}

func (r *MintRecordRepositoryFS) Create(ctx context.Context, rec mintdom.MintRecord) (mintdom.MintRecord, error) {
	if r == nil || r.Client == nil {
		return mintdom.MintRecord{}, errors.New("firestore client is nil")
	}

	col := r.Client.Collection(mintCollection)

	// ID が空なら自動採番
	var docRef *firestore.DocumentRef
	if rec.ID == "" {
		docRef = col.NewDoc()
		rec.ID = docRef.ID
	} else {
		docRef = col.Doc(rec.ID)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := rec.Validate(); err != nil {
		return mintdom.MintRecord{}, err
	}

	// ドメインのフィールドを落とさないように明示的にマッピングする
	data := map[string]interface{}{
		"mintAddress":       rec.MintAddress,
		"userWalletAddress": rec.UserWalletAddress,
		"name":              rec.Name,
		"description":       rec.Description,
		"imageUri":          rec.ImageURI,
		"metadataUri":       rec.MetadataURI,
		"minted":            rec.Minted,
		"createdAt":         rec.CreatedAt,
	}
	if rec.TransactionSignature != "" {
		data["transactionSignature"] = rec.TransactionSignature
	}
	if rec.ExplorerURL != "" {
		data["explorerUrl"] = rec.ExplorerURL
	}
	if rec.MintedAt != nil && !rec.MintedAt.IsZero() {
		data["mintedAt"] = rec.MintedAt.UTC()
	}

	if _, err := docRef.Set(ctx, data); err != nil {
		return mintdom.MintRecord{}, fmt.Errorf("firestore: create mint record: %w", err)
	}

	return rec, nil
}

func (r *MintRecordRepositoryFS) GetByID(ctx context.Context, id string) (*mintdom.MintRecord, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("firestore client is nil")
	}

	docID := strings.TrimSpace(id)
	if docID == "" {
		return nil, mintdom.ErrInvalidRecordID
	}

	snap, err := r.Client.Collection(mintCollection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, mintdom.ErrNotFound
		}
		return nil, fmt.Errorf("firestore: get mint record: %w", err)
	}

	rec := decodeMintRecord(snap)
	return &rec, nil
}

func (r *MintRecordRepositoryFS) GetByMintAddress(ctx context.Context, mintAddress string) (*mintdom.MintRecord, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("firestore client is nil")
	}

	addr := strings.TrimSpace(mintAddress)
	if addr == "" {
		return nil, mintdom.ErrInvalidMintAddress
	}

	it := r.Client.Collection(mintCollection).
		Where("mintAddress", "==", addr).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return nil, mintdom.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore: query mint record: %w", err)
	}

	rec := decodeMintRecord(snap)
	return &rec, nil
}

func (r *MintRecordRepositoryFS) MarkMinted(ctx context.Context, mintAddress, signature, explorerURL string, at time.Time) (*mintdom.MintRecord, error) {
	rec, err := r.GetByMintAddress(ctx, mintAddress)
	if err != nil {
		return nil, err
	}

	if err := rec.MarkMinted(signature, explorerURL, at); err != nil {
		return nil, err
	}

	updates := []firestore.Update{
		{Path: "minted", Value: true},
		{Path: "transactionSignature", Value: rec.TransactionSignature},
		{Path: "explorerUrl", Value: rec.ExplorerURL},
		{Path: "mintedAt", Value: rec.MintedAt.UTC()},
	}
	if _, err := r.Client.Collection(mintCollection).Doc(rec.ID).Update(ctx, updates); err != nil {
		return nil, fmt.Errorf("firestore: mark minted: %w", err)
	}

	return rec, nil
}

// decodeMintRecord はスキーマの揺れ（古いドキュメントの欠けたフィールド）を
// 許容しつつ map から組み立てる。
func decodeMintRecord(snap *firestore.DocumentSnapshot) mintdom.MintRecord {
	data := snap.Data()

	rec := mintdom.MintRecord{
		ID:                   snap.Ref.ID,
		MintAddress:          asString(data["mintAddress"]),
		UserWalletAddress:    asString(data["userWalletAddress"]),
		Name:                 asString(data["name"]),
		Description:          asString(data["description"]),
		ImageURI:             asString(data["imageUri"]),
		MetadataURI:          asString(data["metadataUri"]),
		TransactionSignature: asString(data["transactionSignature"]),
		ExplorerURL:          asString(data["explorerUrl"]),
	}

	if b, ok := data["minted"].(bool); ok {
		rec.Minted = b
	}
	if t, ok := data["createdAt"].(time.Time); ok {
		rec.CreatedAt = t
	}
	if t, ok := data["mintedAt"].(time.Time); ok && !t.IsZero() {
		rec.MintedAt = &t
	}

	return rec
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
