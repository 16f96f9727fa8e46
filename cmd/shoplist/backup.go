package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/backup"
	"github.com/dukerupert/shoplist/internal/database"
)

var (
	passphrase string
	restoreKey string
	restoreOut string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		v, err := database.Version(e.db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d\n", e.cfg.DBPath, v)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted snapshot of the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := resolvePassphrase()
		if err != nil {
			return err
		}

		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		rec, err := e.backupManager().RunNow(cmd.Context(), pass)
		if err != nil {
			return notConfigured(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", rec.S3Key, rec.SizeBytes)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download, decrypt and verify a backup into a new file",
	Long: `Restore writes the backup stored under --key to --out after checking its
integrity. It never touches the live database: stop the server and move the
file into place yourself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := resolvePassphrase()
		if err != nil {
			return err
		}

		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		if err := e.backupManager().Restore(cmd.Context(), restoreKey, pass, restoreOut); err != nil {
			return notConfigured(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", restoreKey, restoreOut)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{backupCmd, restoreCmd} {
		c.Flags().StringVarP(&passphrase, "passphrase", "p", "", "encryption passphrase (default $SHOPLIST_BACKUP_PASSPHRASE)")
	}
	restoreCmd.Flags().StringVarP(&restoreKey, "key", "k", "", "object key of the backup (required)")
	restoreCmd.Flags().StringVarP(&restoreOut, "out", "o", "", "path to write the restored database (required)")
	restoreCmd.MarkFlagRequired("key")
	restoreCmd.MarkFlagRequired("out")
}

func resolvePassphrase() (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if p := os.Getenv("SHOPLIST_BACKUP_PASSPHRASE"); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("a passphrase is required: pass --passphrase or set SHOPLIST_BACKUP_PASSPHRASE")
}

// notConfigured adds a hint to the error returned when S3 settings are absent.
func notConfigured(err error) error {
	if errors.Is(err, backup.ErrNotConfigured) {
		return fmt.Errorf("%w (set SHOPLIST_S3_BUCKET and the S3 credentials)", err)
	}
	return err
}
