package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pandodao/anchor-store/core"
	"github.com/pandodao/anchor-store/store/payload"
	"github.com/spf13/cobra"
)

var persistOpt struct {
	id      string
	replace bool
}

var persistCmd = &cobra.Command{
	Use:   "persist FILE...",
	Short: "store each file as a payload",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if persistOpt.id != "" && len(args) > 1 {
			return errors.New("--id can only be used with a single file")
		}

		payloads := make([]*core.Payload, 0, len(args))
		for _, name := range args {
			blob, err := os.ReadFile(name)
			if err != nil {
				return err
			}

			id := persistOpt.id
			if id == "" {
				id = uuid.NewString()
			}

			payloads = append(payloads, &core.Payload{ID: id, Blob: blob})
		}

		persist := registry.Payloads.Persist
		if persistOpt.replace {
			persist = func(ctx context.Context, items []*core.Payload) error {
				return payload.Replace(ctx, registry.Payloads, items)
			}
		}

		if err := persist(cmd.Context(), payloads); err != nil {
			return err
		}

		return printJson(cmd, ids(payloads))
	},
}

var restoreOpt struct {
	dir string
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "fetch every stored payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		blobs, err := registry.Payloads.Restore(cmd.Context())
		if err != nil {
			return err
		}

		if restoreOpt.dir == "" {
			return printJson(cmd, blobs)
		}

		if err := os.MkdirAll(restoreOpt.dir, 0o755); err != nil {
			return err
		}

		for idx, blob := range blobs {
			name := filepath.Join(restoreOpt.dir, fmt.Sprintf("payload-%03d.bin", idx))
			if err := os.WriteFile(name, blob, 0o644); err != nil {
				return err
			}
		}

		cmd.Printf("restored %d payloads to %s\n", len(blobs), restoreOpt.dir)
		return nil
	},
}

func ids(payloads []*core.Payload) []string {
	ids := make([]string, 0, len(payloads))
	for _, p := range payloads {
		ids = append(ids, p.ID)
	}

	return ids
}

func init() {
	rootCmd.AddCommand(persistCmd, restoreCmd)

	persistCmd.Flags().StringVar(&persistOpt.id, "id", "", "payload id (optional, single file only)")
	persistCmd.Flags().BoolVar(&persistOpt.replace, "replace", false, "clear the collection first")
	restoreCmd.Flags().StringVar(&restoreOpt.dir, "dir", "", "write blobs to this directory instead of stdout")
}
