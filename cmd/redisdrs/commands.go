package main

import (
	"fmt"
	"time"

	"github.com/eternalApril/redisdrs/internal/transfer"
	"github.com/spf13/cobra"
)

const reportInterval = time.Second

var (
	dumpCmd = &cobra.Command{
		Use:         "dump",
		Short:       "Write the keys of a redis server to a dump file",
		Example:     "redisdrs dump -u redis://localhost:6379/0 -f backup.dump -p 'user:*'",
		Annotations: map[string]string{uriKeyAnnotation: "source.uri"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransfer(cmd, transfer.ModeDump)
		},
	}

	restoreCmd = &cobra.Command{
		Use:         "restore",
		Short:       "Write the keys of a dump file to a redis server",
		Example:     "redisdrs restore -f backup.dump -u redis://localhost:6379/1",
		Annotations: map[string]string{uriKeyAnnotation: "target.uri"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransfer(cmd, transfer.ModeRestore)
		},
	}

	syncCmd = &cobra.Command{
		Use:     "sync",
		Short:   "Copy the keys of one redis server to another",
		Example: "redisdrs sync --source-uri redis://a:6379/0 --target-uri redis://b:6379/0",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransfer(cmd, transfer.ModeSync)
		},
	}
)

func init() {
	dumpCmd.Flags().StringP("uri", "u", "", "uri of the redis server to dump")
	dumpCmd.Flags().StringP("file", "f", "", "dump file to write")

	restoreCmd.Flags().StringP("uri", "u", "", "uri of the redis server to restore into")
	restoreCmd.Flags().StringP("file", "f", "", "dump file to read")

	syncCmd.Flags().String("source-uri", "", "uri of the redis server to copy from")
	syncCmd.Flags().String("target-uri", "", "uri of the redis server to copy to")
}

// buildRequest turns the loaded config into a transfer request for mode
func buildRequest(mode transfer.Mode) (transfer.Request, error) {
	cfg := app.cfg

	path, err := absPath(cfg.Dump.Path)
	if err != nil {
		return transfer.Request{}, fmt.Errorf("dump file: %w", err)
	}

	req := transfer.Request{
		Mode:     mode,
		Pattern:  cfg.Transfer.Pattern,
		BulkSize: cfg.Transfer.BulkSize,
		UseTTL:   cfg.Transfer.UseTTL,
	}

	switch mode {
	case transfer.ModeDump:
		req.Source, req.Sink = cfg.Source.URI, path
	case transfer.ModeRestore:
		req.Source, req.Sink = path, cfg.Target.URI
	case transfer.ModeSync:
		req.Source, req.Sink = cfg.Source.URI, cfg.Target.URI
	}
	return req, nil
}

func runTransfer(cmd *cobra.Command, mode transfer.Mode) error {
	req, err := buildRequest(mode)
	if err != nil {
		return err
	}

	events := app.engine.Run(cmd.Context(), req)

	r := newReporter(cmd.OutOrStdout(), mode.String(), reportInterval)
	_, err = r.Follow(events)
	return err
}
