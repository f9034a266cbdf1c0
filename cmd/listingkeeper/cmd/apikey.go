package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/listingkeeper/internal/core/auth"
	"github.com/solatis/listingkeeper/internal/core/config"
	"github.com/solatis/listingkeeper/internal/core/db"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Issue and revoke API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key for a user",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api_key_id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, queries, err := openMigrated(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewKeyStore(queries).RevokeAPIKey(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)

	apikeyCreateCmd.Flags().String("user", "", "user the key authenticates as")
	apikeyCreateCmd.Flags().String("name", "", "label for the key")
	apikeyCreateCmd.Flags().String("secret-id", "", "HMAC secret to bind the key to (required when several are configured)")
	apikeyCreateCmd.MarkFlagRequired("user")
}

// selectSecret picks the HMAC secret a new key is bound to.
func selectSecret(secrets map[string][]byte, secretID string) (string, []byte, error) {
	if secretID != "" {
		secret, ok := secrets[strings.ToLower(secretID)]
		if !ok {
			return "", nil, fmt.Errorf("secret %s is not configured", secretID)
		}
		return strings.ToLower(secretID), secret, nil
	}

	switch len(secrets) {
	case 0:
		return "", nil, fmt.Errorf("no HMAC secrets configured (set LK_HMAC_SECRET environment variable)")
	case 1:
		for id, secret := range secrets {
			return id, secret, nil
		}
	}

	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return "", nil, fmt.Errorf("several HMAC secrets configured, choose one with --secret-id (%s)", strings.Join(ids, ", "))
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	secretFlag, _ := cmd.Flags().GetString("secret-id")

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	secretID, secret, err := selectSecret(secrets, secretFlag)
	if err != nil {
		return err
	}

	key, hash, err := auth.GenerateAPIKey(secretID, secret)
	if err != nil {
		return err
	}

	database, queries, err := openMigrated(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	id, err := db.NewKeyStore(queries).CreateAPIKey(cmd.Context(), userID, name, secretID, hash)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "created api key %s for %s; the key is shown only once\n", id, userID)
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
