package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/replay"
	"github.com/spf13/cobra"
)

// NewReplayCmd creates the replay command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <session.yaml>",
		Short: "Replay a scripted browsing session",
		Long: `Replay drives the reconciliation loop through a scripted session on a
virtual clock and reports the final state of the page.

A session names the starting page and blocklist and lists the steps to
take. Debounce and route-settle timings from the configuration apply as
they would on a live page.

Session file example:
  location: https://www.youtube.com/watch?v=abc
  page: watch.html
  blocklist: [SomeCreator]
  steps:
    - action: wait
      duration: 1s
    - action: insert
      target: "#comments"
      html: '<ytd-comment-thread-renderer>...</ytd-comment-thread-renderer>'
    - action: click
      target: "#t2 .yt-quick-block-btn"
    - action: navigate
      url: https://www.youtube.com/@SomeCreator
    - action: sync
      identities: [SomeCreator, another]

Actions: insert, replace, remove, navigate, block, unblock, click, sync, wait.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplayCmd,
	}

	cmd.Flags().String("html", "",
		"Write the final document to this file")
	cmd.Flags().Bool("from-db", false,
		"Start from the stored blocklist in addition to the session's")

	addReportFlags(cmd)

	return cmd
}

func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := readReportFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	htmlPath, err := cmd.Flags().GetString("html")
	if err != nil {
		return err
	}
	fromDB, err := cmd.Flags().GetBool("from-db")
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)

	path := args[0]
	s, err := replay.LoadSession(path)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if fromDB {
		e, err := openStore(cmd, cfg, logger)
		if err != nil {
			return err
		}
		s.Blocklist = append(e.store.List(), s.Blocklist...)
		e.close()
	}

	r := replay.New(
		replay.WithConfig(cfg),
		replay.WithLogger(logger),
		replay.WithBaseDir(filepath.Dir(path)),
	)
	res, runErr := r.Run(cmd.Context(), s)
	if res == nil {
		return runErr
	}
	res.Report.Source = path

	if htmlPath != "" {
		if err := writeDocument(htmlPath, res); err != nil {
			return err
		}
		res.Report.OutputPath = htmlPath
	}
	if err := outputReports(cmd, cfg, []*model.FilterReport{res.Report}); err != nil {
		return err
	}
	return runErr
}

func writeDocument(path string, res *replay.Result) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := res.Document.Render(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}
