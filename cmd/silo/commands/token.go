package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelsilo/silo/pkg/models"
)

var tokenLabel string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
	Long: `Manage API bearer tokens.

Tokens authenticate non-browser clients (huggingface_hub, curl, CI).
The secret is printed once at creation time; only its digest is stored.

Examples:
  silo token create alice --label ci
  silo token list alice
  silo token revoke <token-id>`,
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a new API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenCreate,
}

var tokenListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "List a user's API tokens",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenList,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke an API token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

func init() {
	tokenCreateCmd.Flags().StringVar(&tokenLabel, "label", "", "Token label")

	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	secret, digest, err := models.NewTokenSecret()
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}

	id, err := st.CreateToken(ctx, &models.Token{
		UserID:       user.ID,
		Label:        tokenLabel,
		SecretDigest: digest,
	})
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	fmt.Printf("Token created (id: %s)\n\n", id)
	fmt.Printf("  %s\n\n", secret)
	fmt.Println("Save this token now. It will not be shown again.")
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	user, err := st.GetUser(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	tokens, err := st.ListTokens(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	if len(tokens) == 0 {
		fmt.Println("No tokens found")
		return nil
	}

	fmt.Printf("%-36s %-20s %-8s %s\n", "ID", "LABEL", "REVOKED", "CREATED")
	for _, t := range tokens {
		revoked := "-"
		if t.Revoked {
			revoked = "yes"
		}
		fmt.Printf("%-36s %-20s %-8s %s\n", t.ID, t.Label, revoked, t.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.RevokeToken(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	fmt.Println("Token revoked")
	return nil
}
