// Package server exposes the launch API: session lifecycle, deploys, pool
// health, and burn history.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/clawpad/clawpad/pkg/config"
	"github.com/clawpad/clawpad/pkg/deploy"
	"github.com/clawpad/clawpad/pkg/pool"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/types"
	"github.com/clawpad/clawpad/pkg/wallet"
)

// BalanceReader reads a native balance, used for deposit checks.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (float64, error)
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	cfg    config.Config
	store  *store.Store
	cipher *secret.Cipher
	pool   *pool.Manager
	orch   *deploy.Orchestrator
	chain  BalanceReader
	log    zerolog.Logger
}

// New wires the HTTP server.
func New(cfg config.Config, st *store.Store, cipher *secret.Cipher, p *pool.Manager, orch *deploy.Orchestrator, chain BalanceReader, log zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		store:  st,
		cipher: cipher,
		pool:   p,
		orch:   orch,
		chain:  chain,
		log:    log.With().Str("component", "server").Logger(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:id", s.getSession)
		api.POST("/sessions/:id/deposit", s.checkDeposit)
		api.POST("/sessions/:id/deploy", s.deployToken)
		api.GET("/pool/status", s.poolStatus)
		api.GET("/tokens", s.listTokens)
		api.GET("/burns", s.listBurns)
		api.GET("/burns/stats", s.burnStats)
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createSessionRequest struct {
	Blueprint deploy.Blueprint `json:"blueprint" binding:"required"`
}

// createSession generates a fresh deposit wallet for the launch and stores
// its key encrypted. The caller funds the returned address.
func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Blueprint.Name == "" || req.Blueprint.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blueprint name and symbol are required"})
		return
	}

	depositWallet, err := wallet.Generate()
	if err != nil {
		s.fail(c, err)
		return
	}
	encryptedKey, err := s.cipher.Encrypt(depositWallet.Hex())
	if err != nil {
		s.fail(c, err)
		return
	}
	blueprintJSON, err := jsonMarshal(req.Blueprint)
	if err != nil {
		s.fail(c, err)
		return
	}

	sess := &store.Session{
		Blueprint:                 blueprintJSON,
		DepositAddress:            depositWallet.PublicKey().String(),
		WalletPrivateKeyEncrypted: encryptedKey,
	}
	if err := s.store.CreateSession(c.Request.Context(), sess); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"sessionId":      sess.ID,
		"depositAddress": sess.DepositAddress,
		"minDeposit":     s.cfg.Deploy.MinDeposit,
		"status":         sess.Status,
	})
}

func (s *Server) getSession(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	sess, err := s.store.GetSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId":      sess.ID,
		"depositAddress": sess.DepositAddress,
		"depositAmount":  sess.DepositAmount,
		"status":         sess.Status,
		"tokenId":        sess.TokenID,
		"error":          sess.ErrorMessage,
	})
}

// checkDeposit reads the deposit address balance and marks the session
// funded once it covers the minimum.
func (s *Server) checkDeposit(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.fail(c, err)
		return
	}

	balance, err := s.chain.Balance(ctx, sess.DepositAddress)
	if err != nil {
		s.fail(c, err)
		return
	}
	funded := balance >= s.cfg.Deploy.MinDeposit
	if funded && sess.Status == "pending" {
		if err := s.store.UpdateSessionDeposit(ctx, sess.ID, balance, ""); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":    balance,
		"funded":     funded,
		"minDeposit": s.cfg.Deploy.MinDeposit,
	})
}

// deployToken runs the deploy loop for a funded session. An empty pool is
// a temporary condition: the client gets a 503 with a retry hint while
// generation runs in the background.
func (s *Server) deployToken(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	token, err := s.orch.Deploy(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrPoolEmpty):
			c.Header("Retry-After", strconv.Itoa(s.cfg.Deploy.RetryAfterSecs))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":      "no vanity addresses available, generation started",
				"retryAfter": s.cfg.Deploy.RetryAfterSecs,
			})
		case errors.Is(err, types.ErrInsufficientDeposit), errors.Is(err, types.ErrMissingWallet):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case isValidation(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		default:
			s.fail(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tokenId":     token.ID,
		"mintAddress": token.MintAddress,
		"name":        token.Name,
		"symbol":      token.Symbol,
	})
}

func (s *Server) poolStatus(c *gin.Context) {
	status, err := s.pool.Status(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) listTokens(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	tokens, err := s.store.RecentTokens(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, gin.H{
			"tokenId":            t.ID,
			"venue":              t.Venue,
			"mintAddress":        t.MintAddress,
			"name":               t.Name,
			"symbol":             t.Symbol,
			"status":             t.Status,
			"totalFeesCollected": t.TotalFeesCollected,
			"totalBurned":        t.TotalBurned,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

func (s *Server) listBurns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	burns, err := s.store.RecentBurns(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(burns))
	for _, b := range burns {
		out = append(out, gin.H{
			"tokenId":      b.TokenID,
			"nativeSpent":  b.NativeSpent,
			"tokensBurned": b.TokensBurned,
			"txSignature":  b.TxSignature,
			"at":           b.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"burns": out})
}

func (s *Server) burnStats(c *gin.Context) {
	stats, err := s.store.GetBurnStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"totalNativeSpent":  stats.TotalNativeSpent,
		"totalTokensBurned": stats.TotalTokensBurned,
		"totalBurns":        stats.TotalBurns,
	})
}

func (s *Server) paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (s *Server) fail(c *gin.Context, err error) {
	s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func isValidation(err error) bool {
	var vErr types.ValidationError
	return errors.As(err, &vErr)
}

func jsonMarshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
