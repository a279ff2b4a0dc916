package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify FILE...",
	Short: "Check that compressed files decompress cleanly",
	Long: `Decompress each file without writing anything.

Container members are also checked against the lengths and BLAKE3
digests recorded in the manifest. Nothing on disk is modified.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	engine, finish, err := setup(cfg)
	if err != nil {
		return err
	}
	defer finish()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var failed int
	for _, path := range args {
		info, n, err := engine.Verify(ctx, path, cfg.Method, cfg.Cores)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK   %s (%s, %s)\n", path, info.Method, humanize.IBytes(uint64(n)))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed verification", failed, len(args))
	}
	return nil
}
