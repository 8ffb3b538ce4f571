package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var revokeKeyID string

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke a previously issued certificate",
	Long: `revoke marks the certificate identified by --key-id as revoked. It is
no longer returned by key-id lookup or export, still appears in list
results, and is added to the next CRL.`,
	RunE: runRevoke,
}

func init() {
	revokeCmd.Flags().StringVar(&revokeKeyID, "key-id", "", "key ID of the certificate to revoke (required)")
}

func runRevoke(cmd *cobra.Command, args []string) error {
	if revokeKeyID == "" {
		return fmt.Errorf("revoke: --key-id is required")
	}

	_, repo, _, err := loadManager()
	if err != nil {
		return err
	}

	if err := repo.Revoke(context.Background(), revokeKeyID); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	fmt.Printf("revoked: %s\n", revokeKeyID)
	return nil
}
