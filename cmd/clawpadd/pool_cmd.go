package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clawpad/clawpad/pkg/pool"
	"github.com/clawpad/clawpad/pkg/secret"
	"github.com/clawpad/clawpad/pkg/store"
)

func newPoolCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect and manage the vanity address pool",
	}
	cmd.AddCommand(newPoolStatusCmd(opts), newPoolReplenishCmd(opts))
	return cmd
}

func newPoolStatusCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print pool counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			if err := st.Migrate(); err != nil {
				return err
			}
			stats, err := st.VanityPoolStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"suffix=%s available=%d reserved=%d used=%d burned=%d total=%d target=%d\n",
				cfg.Pool.Suffix, stats.Available, stats.Reserved, stats.Used, stats.Burned, stats.Total, cfg.Pool.TargetSize)
			return nil
		},
	}
}

func newPoolReplenishCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "replenish",
		Short: "Replenish the pool to its target size and exit",
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
				return err
			}
			st, err := store.Open(cfg.Database)
			if err != nil {
				return err
			}
			if err := st.Migrate(); err != nil {
				return err
			}
			return pool.NewManager(cfg.Pool, st, cipher, log).Replenish(cmd.Context())
		},
	}
}
