package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/solatis/condfields/internal/core/auth"
	"github.com/solatis/condfields/internal/core/config"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage admin API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an admin API key; the key is printed once",
	RunE:  runKeysCreate,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an admin API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd)
	keysCreateCmd.Flags().String("name", "", "key name")
	keysCreateCmd.Flags().String("secret-id", "", "secret to sign the key with (default: the only configured secret)")
	_ = keysCreateCmd.MarkFlagRequired("name")
}

// signingSecret picks the requested secret, or the single configured one.
func signingSecret(secrets map[string][]byte, secretID string) (string, []byte, error) {
	if len(secrets) == 0 {
		return "", nil, fmt.Errorf("no admin secrets configured (set CF_ADMIN_SECRET)")
	}
	if secretID != "" {
		secret, ok := secrets[secretID]
		if !ok {
			return "", nil, fmt.Errorf("secret %s is not configured", secretID)
		}
		return secretID, secret, nil
	}
	if len(secrets) > 1 {
		ids := make([]string, 0, len(secrets))
		for id := range secrets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return "", nil, fmt.Errorf("several secrets configured, choose one with --secret-id: %v", ids)
	}
	for id, secret := range secrets {
		return id, secret, nil
	}
	return "", nil, nil
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	secrets, err := config.AdminSecrets()
	if err != nil {
		return fmt.Errorf("failed to load admin secrets: %w", err)
	}
	requested, _ := cmd.Flags().GetString("secret-id")
	secretID, secret, err := signingSecret(secrets, requested)
	if err != nil {
		return err
	}

	database, store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	name, _ := cmd.Flags().GetString("name")
	issued, err := auth.IssueKey(commandContext(cmd), store.Queries(), name, secretID, secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "key id: %s\nkey:    %s\n", issued.ID, issued.Key)
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	database, store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := auth.RevokeKey(commandContext(cmd), store.Queries(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
	return nil
}
