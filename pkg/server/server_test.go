package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/deploy"
	"github.com/clawpad/clawpad/pkg/pool"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/server"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/vanity"
	"github.com/clawpad/clawpad/pkg/venue/pumpportal"
	"github.com/clawpad/clawpad/pkg/wallet"
)

// fakeChain serves both deposit checks and deploy submission.
type fakeChain struct {
	balance float64
	sends   int
}

func (f *fakeChain) Balance(ctx context.Context, address string) (float64, error) {
	return f.balance, nil
}

func (f *fakeChain) SignAndSendTransaction(ctx context.Context, txBytes []byte, signers ...wallet.Signer) (string, error) {
	f.sends++
	return fmt.Sprintf("sig-%d", f.sends), nil
}

type createBuilder struct{}

func (createBuilder) CreateTokenTransaction(ctx context.Context, p pumpportal.CreateParams) ([]byte, error) {
	return []byte("unsigned-create-tx"), nil
}

func newServer(t *testing.T, seedAddrs int) (http.Handler, *store.Store, *fakeChain, *secret.Cipher) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	key, err := secret.GenerateKey()
	require.NoError(t, err)
	cipher, err := secret.NewCipher(key)
	require.NoError(t, err)

	for i := 0; i < seedAddrs; i++ {
		w, err := wallet.Generate()
		require.NoError(t, err)
		sealed, err := cipher.Encrypt(w.Hex())
		require.NoError(t, err)
		_, err = st.AddVanityAddress(context.Background(), w.PublicKey().String(), sealed, 1, 1)
		require.NoError(t, err)
	}

	cfg := config.Default()
	noGen := func(ctx context.Context, suffix string) (*vanity.WorkerResult, error) {
		return nil, errors.New("generation disabled in tests")
	}
	p := pool.NewManagerWithGenerator(cfg.Pool, st, cipher, noGen, zerolog.Nop())
	chain := &fakeChain{}
	orch := deploy.NewOrchestrator(cfg.Deploy, st, cipher, p, createBuilder{}, chain, zerolog.Nop())
	srv := server.New(cfg, st, cipher, p, orch, chain, zerolog.Nop())
	return srv.Router(), st, chain, cipher
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _, _, _ := newServer(t, 0)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSession(t *testing.T) {
	h, st, _, _ := newServer(t, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{
		"blueprint": map[string]any{"name": "Claw", "symbol": "CLAW"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID      uint    `json:"sessionId"`
		DepositAddress string  `json:"depositAddress"`
		MinDeposit     float64 `json:"minDeposit"`
		Status         string  `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.SessionID)
	require.NotEmpty(t, resp.DepositAddress)
	require.Equal(t, "pending", resp.Status)
	require.InDelta(t, 0.025, resp.MinDeposit, 1e-9)

	sess, err := st.GetSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Equal(t, resp.DepositAddress, sess.DepositAddress)
	require.NotEmpty(t, sess.WalletPrivateKeyEncrypted)
}

func TestCreateSessionRequiresNameAndSymbol(t *testing.T) {
	h, _, _, _ := newServer(t, 0)
	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{
		"blueprint": map[string]any{"name": "NoSymbol"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDepositCheckMarksFunded(t *testing.T) {
	h, st, chain, _ := newServer(t, 0)

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{
		"blueprint": map[string]any{"name": "Claw", "symbol": "CLAW"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		SessionID uint `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	chain.balance = 0.01
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/sessions/%d/deposit", created.SessionID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess, err := st.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.Equal(t, "pending", sess.Status)

	chain.balance = 0.05
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/sessions/%d/deposit", created.SessionID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess, err = st.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.Equal(t, "funded", sess.Status)
	require.InDelta(t, 0.05, sess.DepositAmount, 1e-9)
}

func TestDeployEmptyPoolReturns503(t *testing.T) {
	h, st, chain, _ := newServer(t, 0)
	chain.balance = 0.05

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{
		"blueprint": map[string]any{"name": "Claw", "symbol": "CLAW"},
	})
	var created struct {
		SessionID uint `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/sessions/%d/deposit", created.SessionID), nil)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/sessions/%d/deploy", created.SessionID), nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	var resp struct {
		RetryAfter int `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 60, resp.RetryAfter)

	// The session stays funded so the client can retry after generation.
	sess, err := st.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.Equal(t, "funded", sess.Status)
}

func TestDeploySuccessEndToEnd(t *testing.T) {
	h, _, chain, _ := newServer(t, 2)
	chain.balance = 0.05

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]any{
		"blueprint": map[string]any{"name": "Claw", "symbol": "CLAW"},
	})
	var created struct {
		SessionID uint `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/sessions/%d/deposit", created.SessionID), nil)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/sessions/%d/deploy", created.SessionID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		MintAddress string `json:"mintAddress"`
		Symbol      string `json:"symbol"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.MintAddress)
	require.Equal(t, "CLAW", resp.Symbol)

	rec = doJSON(t, h, http.MethodGet, "/api/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens struct {
		Tokens []map[string]any `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.Len(t, tokens.Tokens, 1)
}

func TestPoolStatusEndpoint(t *testing.T) {
	h, _, _, _ := newServer(t, 3)
	rec := doJSON(t, h, http.MethodGet, "/api/pool/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Available    int64  `json:"available"`
		TargetSize   int    `json:"targetSize"`
		Suffix       string `json:"suffix"`
		IsGenerating bool   `json:"isGenerating"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 3, resp.Available)
	require.Equal(t, 100, resp.TargetSize)
	require.Equal(t, "CLAW", resp.Suffix)
	require.False(t, resp.IsGenerating)
}

func TestBurnEndpoints(t *testing.T) {
	h, st, _, _ := newServer(t, 0)

	token := &store.Token{Venue: "pump.fun", MintAddress: "MintXCLAW", Name: "X", Symbol: "X"}
	require.NoError(t, st.CreateToken(context.Background(), token))
	require.NoError(t, st.CreateBurn(context.Background(), &store.Burn{
		TokenID: token.ID, NativeSpent: 0.06, TokensBurned: 1000, TxSignature: "sig",
	}))

	rec := doJSON(t, h, http.MethodGet, "/api/burns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var burns struct {
		Burns []map[string]any `json:"burns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &burns))
	require.Len(t, burns.Burns, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/burns/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalBurns        int64   `json:"totalBurns"`
		TotalTokensBurned float64 `json:"totalTokensBurned"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.EqualValues(t, 1, stats.TotalBurns)
	require.InDelta(t, 1000, stats.TotalTokensBurned, 1e-9)
}

func TestGetUnknownSession(t *testing.T) {
	h, _, _, _ := newServer(t, 0)
	rec := doJSON(t, h, http.MethodGet, "/api/sessions/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
