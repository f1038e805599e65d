package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitebudget/sitebudget/internal/auth"
)

var (
	flagUsername string
	flagRole     string
	flagPassword string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage user accounts",
}

var accountAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Create an account",
	Example: "  sitebudget account add --username store --role Store --password s3cret-pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		account, err := auth.NewService(store.Accounts()).CreateAccount(cmd.Context(), auth.NewAccount{
			Username: flagUsername,
			Password: flagPassword,
			Role:     flagRole,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created account %d: %s (%s)\n", account.ID, account.Username, account.Role)
		return nil
	},
}

func init() {
	accountAddCmd.Flags().StringVar(&flagUsername, "username", "", "Login name")
	accountAddCmd.Flags().StringVar(&flagRole, "role", "", "Department role: Store, Purchase, Execution, Accounts or Billing")
	accountAddCmd.Flags().StringVar(&flagPassword, "password", "", "Initial password (8 to 72 bytes)")
	_ = accountAddCmd.MarkFlagRequired("username")
	_ = accountAddCmd.MarkFlagRequired("role")
	_ = accountAddCmd.MarkFlagRequired("password")
	accountCmd.AddCommand(accountAddCmd)
}
