package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawpad/clawpad/pkg/cycle"
	"github.com/clawpad/clawpad/pkg/deploy"
	"github.com/clawpad/clawpad/pkg/evm"
	"github.com/clawpad/clawpad/pkg/jito"
	"github.com/clawpad/clawpad/pkg/pool"
	"github.com/clawpad/clawpad/pkg/rpc"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/server"
	solchain "github.com/clawpad/clawpad/pkg/solana"
	"github.com/clawpad/clawpad/pkg/store"
	"github.com/clawpad/clawpad/pkg/txbuilder"
	"github.com/clawpad/clawpad/pkg/venue/bags"
	"github.com/clawpad/clawpad/pkg/venue/fourmeme"
	"github.com/clawpad/clawpad/pkg/venue/jupiter"
	"github.com/clawpad/clawpad/pkg/venue/pumpportal"
)

func newServeCmd(opts *globalOpts) *cobra.Command {
	var bagsAPIKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: HTTP API, pool manager, and fee cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.SecretKey == "" {
				return fmt.Errorf("secret_key is required (32 bytes, hex)")
			}
			cipher, err := secret.NewCipher(cfg.SecretKey)
			if err != nil {
				return fmt.Errorf("init cipher: %w", err)
			}

			st, err := store.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			if err := st.Migrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			cfg.Solana.Logger = log
			rpcClient := rpc.NewClient(cfg.Solana)
			builder := txbuilder.NewBuilder(rpcClient, rpcClient.Commitment())
			if cfg.Solana.JitoURL != "" {
				builder = builder.WithJito(jito.NewClient(cfg.Solana.JitoURL))
			}
			chain := solchain.NewClient(rpcClient, builder, log)

			poolMgr := pool.NewManager(cfg.Pool, st, cipher, log)
			pump := pumpportal.NewClient("")
			orch := deploy.NewOrchestrator(cfg.Deploy, st, cipher, poolMgr, pump, chain, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var wg sync.WaitGroup
			runLoop := func(f func(context.Context)) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					f(ctx)
				}()
			}

			runLoop(poolMgr.Run)

			bagsCycle := cycle.NewBagsCycle(cfg.Cycle, st, cipher, chain, bags.NewClient("", bagsAPIKey, chain), jupiter.NewClient(chain), log)
			runLoop(cycle.NewScheduler(bagsCycle, cfg.Cycle.StartDelay, cfg.Cycle.MinInterval, cfg.Cycle.MaxInterval, log).Run)

			pumpCycle := cycle.NewPumpCycle(cfg.Cycle, cfg.Deploy, st, cipher, chain, pump, log)
			runLoop(cycle.NewScheduler(pumpCycle, cfg.Cycle.StartDelay, cfg.Cycle.MinInterval, cfg.Cycle.MaxInterval, log).Run)

			if cfg.BNBRPCURL != "" {
				bnb, err := evm.Dial(ctx, cfg.BNBRPCURL, log)
				if err != nil {
					return fmt.Errorf("dial bnb rpc: %w", err)
				}
				tax, err := fourmeme.NewClient(bnb, log)
				if err != nil {
					return err
				}
				fmCycle := cycle.NewFourMemeCycle(cfg.FourMeme, st, cipher, bnb, tax, log)
				runLoop(cycle.NewScheduler(fmCycle, cfg.Cycle.StartDelay, cfg.FourMeme.MinInterval, cfg.FourMeme.MaxInterval, log).Run)
			}

			srv := server.New(cfg, st, cipher, poolMgr, orch, chain, log)
			httpSrv := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler: srv.Router(),
			}
			serveErr := make(chan error, 1)
			go func() {
				log.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			select {
			case err := <-serveErr:
				stop()
				wg.Wait()
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("http shutdown")
			}
			wg.Wait()
			return nil
		},
	}
	cmd.Flags().StringVar(&bagsAPIKey, "bags-api-key", "", "bags.fm API key")
	return cmd
}
