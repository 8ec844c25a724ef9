// internal/platform/di/container.go
package di

import (
	"context"
	"errors"
	"log"
	"strings"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"

	httpin "atelier/internal/adapters/in/http"
	"atelier/internal/adapters/in/http/middleware"
	"atelier/internal/adapters/out/blobsource"
	dbrepo "atelier/internal/adapters/out/db"
	fsrepo "atelier/internal/adapters/out/firestore"
	"atelier/internal/adapters/out/mail"
	usecase "atelier/internal/application/usecase"
	mintdom "atelier/internal/domain/mint"
	appcfg "atelier/internal/infra/config"
	"atelier/internal/infra/database"
	firestoreinfra "atelier/internal/infra/firestore"
	"atelier/internal/infra/shadowdrive"
	solanainfra "atelier/internal/infra/solana"
)

// Container is shared runtime infrastructure for DI.
//   - owns external clients (Firestore/PG/GCS/FirebaseAuth)
//   - owns the mint pipeline components (signer, uploader, builder, relay)
//   - strict: service signer + storage config（これが無いとパイプラインが成立しない）
//   - best-effort: record store, notifier, firebase auth, gcs（warn + continue）
type Container struct {
	Config *appcfg.Config

	// Clients (owned; Close-managed)
	Firestore *firestoreinfra.ClientWrapper
	Postgres  *database.DB
	GCS       *gcs.Client

	FirebaseAuth *middleware.FirebaseAuthClient

	// Pipeline components
	Signer   *solanainfra.ServiceSigner
	Uploader *shadowdrive.Uploader
	Builder  *solanainfra.TxBuilder
	Relay    *solanainfra.Relay

	// Usecases
	MintUC    *usecase.MintUsecase
	StorageUC *usecase.StorageUsecase
}

// NewContainer wires the whole pipeline from environment config.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := appcfg.Load()
	if cfg == nil {
		return nil, errors.New("di: config is nil")
	}

	c := &Container{Config: cfg}

	// 1) Service signer (strict)
	signer, err := solanainfra.LoadServiceSigner(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Signer = signer
	log.Printf("[di] service signer loaded pubkey=%s", signer.PublicKeyBase58())

	// 2) Storage uploader (strict: account must be provisioned)
	if strings.TrimSpace(cfg.StorageAccount) == "" {
		return nil, errors.New("di: STORAGE_ACCOUNT is empty")
	}
	c.Uploader = shadowdrive.NewUploader(
		cfg.StorageHost,
		cfg.StorageAPIBase,
		cfg.StorageAccount,
		signer,
		cfg.UploadMaxAttempts,
		cfg.UploadBackoffBase,
		cfg.UploadVerifyDelay,
	)

	// 3) Solana builder + relay (strict)
	c.Builder = solanainfra.NewTxBuilder(cfg.SolanaRPCEndpoint, signer)
	c.Relay = solanainfra.NewRelay(cfg.SolanaRPCEndpoint, cfg.SolanaCommitment, cfg.ExplorerCluster)
	c.Relay.ConfirmTimeout = cfg.ConfirmTimeout
	c.Relay.PollInterval = cfg.ConfirmPollInterval

	// 4) Record store (best-effort): PG 指定があれば PG、なければ Firestore
	var records mintdom.RecordRepository
	if dsn := strings.TrimSpace(cfg.PostgresDSN); dsn != "" {
		pg, err := database.NewConnection(dsn)
		if err != nil {
			log.Printf("[di] WARN: postgres init failed: %v (records disabled)", err)
		} else {
			c.Postgres = pg
			records = dbrepo.NewMintRecordRepositoryPG(pg.Client)
		}
	} else if pid := strings.TrimSpace(cfg.FirestoreProjectID); pid != "" {
		fs, err := firestoreinfra.NewClient(ctx, pid, cfg.FirestoreCredentialsFile)
		if err != nil {
			log.Printf("[di] WARN: firestore init failed: %v (records disabled)", err)
		} else {
			c.Firestore = fs
			records = fsrepo.NewMintRecordRepositoryFS(fs.Client)
		}
	} else {
		log.Printf("[di] record store not configured (set POSTGRES_DSN or FIRESTORE_PROJECT_ID)")
	}

	// 5) Notifier (best-effort)
	var notifier mintdom.Notifier
	if strings.TrimSpace(cfg.SendGridAPIKey) != "" {
		notifier = mail.NewMintNotifier(cfg.SendGridAPIKey, cfg.NotifyFromEmail, cfg.NotifyToEmail)
		log.Printf("[di] sendgrid notifier initialized")
	}

	// 6) GCS client (best-effort; gs:// 参照を使わないなら不要)
	if gcsClient, err := gcs.NewClient(ctx); err != nil {
		log.Printf("[di] WARN: gcs init failed: %v (gs:// references disabled)", err)
	} else {
		c.GCS = gcsClient
	}

	// 7) Firebase Auth (best-effort; 未設定なら認証なしで公開)
	if pid := strings.TrimSpace(cfg.FirebaseProjectID); pid != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: pid})
		if err != nil {
			log.Printf("[di] WARN: firebase app init failed: %v", err)
		} else if auth, err := app.Auth(ctx); err != nil {
			log.Printf("[di] WARN: firebase auth init failed: %v", err)
		} else {
			c.FirebaseAuth = auth
			log.Printf("[di] firebase auth initialized project=%s", pid)
		}
	}

	// 8) Usecases
	c.MintUC = usecase.NewMintUsecase(
		c.Uploader,
		c.Builder,
		c.Relay,
		records,
		notifier,
		cfg.TokenSymbol,
		cfg.RoyaltyBasisPoints,
	)
	c.StorageUC = usecase.NewStorageUsecase(c.Uploader, blobsource.NewFetcher(c.GCS))

	return c, nil
}

// RouterDeps exposes the wiring for httpin.NewRouter.
func (c *Container) RouterDeps() httpin.RouterDeps {
	return httpin.RouterDeps{
		MintUC:       c.MintUC,
		StorageUC:    c.StorageUC,
		FirebaseAuth: c.FirebaseAuth,
	}
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Firestore != nil {
		_ = c.Firestore.Close()
	}
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
	if c.GCS != nil {
		_ = c.GCS.Close()
	}
	return nil
}
