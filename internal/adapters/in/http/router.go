package httpin

import (
	"net/http"

	"atelier/internal/adapters/in/http/handlers"
	"atelier/internal/adapters/in/http/middleware"
	usecase "atelier/internal/application/usecase"
)

// RouterDeps collects all usecases (and other dependencies) injected from main.go.
type RouterDeps struct {
	MintUC    *usecase.MintUsecase
	StorageUC *usecase.StorageUsecase

	// 任意: nil なら認証なしでマウントする（ローカル開発用）
	FirebaseAuth *middleware.FirebaseAuthClient
}

// NewRouter sets up HTTP routing for the mint pipeline endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// Health check (always on)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var auth func(http.Handler) http.Handler
	if deps.FirebaseAuth != nil {
		am := &middleware.AuthMiddleware{FirebaseAuth: deps.FirebaseAuth}
		auth = am.Handler
	} else {
		auth = func(next http.Handler) http.Handler { return next }
	}

	// 以降、Usecase が存在するものだけマウントする
	if deps.MintUC != nil {
		mux.Handle("/mint/", auth(handlers.NewMintHandler(deps.MintUC)))
	}

	if deps.StorageUC != nil {
		mux.Handle("/storage/", auth(handlers.NewStorageHandler(deps.StorageUC)))
	}

	return mux
}
