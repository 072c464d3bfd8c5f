package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/quickblock/internal/blocklist"
	"github.com/spf13/cobra"
)

// NewBlockCmd creates the block command.
func NewBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <channel>...",
		Short: "Add channels to the blocklist",
		Long: `Block adds channels to the blocklist.

A channel is given by its @handle or its display name. The "@" is
optional; matching ignores case and surrounding spaces.

Examples:
  quickblock block @SomeCreator
  quickblock block "Some Creator" @another`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBlockCmd,
	}
}

func runBlockCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	out := cmd.OutOrStdout()
	for _, id := range args {
		id = channelArg(id)
		added, err := e.store.Add(id)
		if err != nil {
			return err
		}
		switch {
		case added:
			fmt.Fprintf(out, "Blocked %s\n", id)
		case blocklist.Normalize(id) == "":
			fmt.Fprintf(out, "Skipped empty channel name %q\n", id)
		default:
			fmt.Fprintf(out, "Already blocked: %s\n", id)
		}
	}
	return nil
}

// NewUnblockCmd creates the unblock command.
func NewUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <channel>...",
		Short: "Remove channels from the blocklist",
		Long: `Unblock removes every blocklist entry matching the given channels.

Examples:
  quickblock unblock @SomeCreator`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUnblockCmd,
	}
}

func runUnblockCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	out := cmd.OutOrStdout()
	for _, id := range args {
		id = channelArg(id)
		n, err := e.store.Remove(id)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintf(out, "Not blocked: %s\n", id)
			continue
		}
		fmt.Fprintf(out, "Unblocked %s\n", id)
	}
	return nil
}

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the blocklist",
		Long: `List prints the blocked channels in the order they were added.

With --watch the list is printed again whenever another quickblock
process changes it, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: runListCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Print the list as a JSON array")
	cmd.Flags().BoolP("watch", "w", false, "Keep running and print changes made elsewhere")

	return cmd
}

func runListCmd(cmd *cobra.Command, _ []string) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return err
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	out := cmd.OutOrStdout()
	show := func() error {
		if asJSON {
			return e.store.Export(out)
		}
		printList(out, e.store.List())
		return nil
	}
	if err := show(); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	followChanges(e, func() {
		if err := show(); err != nil {
			e.logger.Warn("failed to print blocklist", "error", err)
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = e.db.Watch(ctx, e.cfg.SyncInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// followChanges applies changes other processes make to the stored list and
// calls onChange after each. Changes are picked up while the database is
// watched.
func followChanges(e *env, onChange func()) {
	e.db.OnRemoteChange(e.store.Key(), func(payload string) {
		if err := e.store.Sync(payload); err != nil {
			return
		}
		onChange()
	})
}

// channelArg turns a command-line channel into the stored form: handles
// are kept without their "@".
func channelArg(arg string) string {
	return strings.TrimPrefix(strings.TrimSpace(arg), "@")
}

func printList(w io.Writer, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "No blocked channels")
		return
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
}

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the blocklist to a JSON file",
		Long: `Export writes the blocklist as a JSON array.

Without --output the file is named youtube-blocklist-YYYY-MM-DD.json after
today's date. Use "-o -" to write to standard output.`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Output file path, or - for stdout")

	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if path == "-" {
		return e.store.Export(cmd.OutOrStdout())
	}
	if path == "" {
		path = blocklist.ExportFileName(time.Now())
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := e.store.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export blocklist: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d channels to %s\n", e.store.Len(), path)
	return nil
}

// NewImportCmd creates the import command.
func NewImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge channels from a JSON file into the blocklist",
		Long: `Import merges a JSON array of channel names into the blocklist.

Channels already on the list are skipped, as are entries that are empty or
not strings. Use "-" to read from standard input.

Examples:
  quickblock import youtube-blocklist-2025-01-02.json`,
		Args: cobra.ExactArgs(1),
		RunE: runImportCmd,
	}
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.store.Import(r)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", result)
	return nil
}
