package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chopzip/chopzip"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE...",
	Short: "Show the method and layout of compressed files",
	Long: `Show how a chopzip artifact was produced.

For containers (.lz4.tar, .lzma.tar) the manifest is validated against the
members and every chunk is listed with its sizes and digest.

Examples:
  chopzip inspect big.log.lz4.tar
  chopzip inspect --method xz backup.bin`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	for i, path := range args {
		info, err := chopzip.Inspect(path, cfg.Method)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		printInfo(cmd.OutOrStdout(), info)
	}
	return nil
}

func printInfo(w io.Writer, info *chopzip.Info) {
	form := "single stream"
	if info.Container {
		form = "container"
	}
	fmt.Fprintf(w, "File:     %s\n", info.Path)
	fmt.Fprintf(w, "Method:   %s (%s)\n", info.Method, form)
	fmt.Fprintf(w, "Size:     %s\n", humanize.IBytes(uint64(info.Size)))
	if !info.Container {
		return
	}

	fmt.Fprintf(w, "Original: %s", humanize.IBytes(uint64(info.OriginalSize)))
	if info.Size > 0 {
		fmt.Fprintf(w, " (ratio %.2f)", float64(info.OriginalSize)/float64(info.Size))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Chunks:   %d\n", len(info.Members))
	for _, m := range info.Members {
		fmt.Fprintf(w, "  %4d  %-40s %10s -> %-10s %.16s\n", m.Index, m.Name,
			humanize.IBytes(uint64(m.Length)), humanize.IBytes(uint64(m.Compressed)), m.Digest)
	}
}
