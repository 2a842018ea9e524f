package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pitchside/pitchside/internal/auth"
	"github.com/pitchside/pitchside/internal/blob"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create and list the admin accounts that sign in to the dashboard.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		username string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the first super-admin account",
		Example: `  pitchside admin create --email admin@example.com --password secret
  pitchside admin create --email admin@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(email, password, username)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&username, "username", "", "Display name (default: email local part)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminCreate(email, password, username string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	users, blobs, err := openUserService()
	if err != nil {
		return err
	}
	defer blobs.Close()

	user, err := users.CreateBootstrapUser(context.Background(), email, username, password)
	if err != nil {
		return err
	}

	fmt.Printf("Created super-admin %q (%s)\n", user.Email, user.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList()
		},
	}
	return cmd
}

func runAdminList() error {
	users, blobs, err := openUserService()
	if err != nil {
		return err
	}
	defer blobs.Close()

	all, err := users.All(context.Background())
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("No admin accounts. Run: pitchside admin create")
		return nil
	}
	fmt.Printf("%-28s %-14s %-10s %s\n", "EMAIL", "ROLE", "STATUS", "ID")
	for _, u := range all {
		fmt.Printf("%-28s %-14s %-10s %s\n", u.Email, u.Role, u.Status, u.ID)
	}
	return nil
}

// openUserService wires the auth stack over the configured blob store for
// CLI use. The caller closes the returned store.
func openUserService() (*auth.UserService, blob.Store, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs, err := blob.Open(viper.GetString("store.driver"), viper.GetString("store.dsn"))
	if err != nil {
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	secret := auth.DeriveSecret(viper.GetString("auth.token_secret"), logger)
	tokens := auth.NewTokenCodec(secret, viper.GetBool("auth.allow_legacy_tokens"), logger)
	users := auth.NewUserService(blobs, auth.NewLoginLimiter(blobs), tokens, logger)
	return users, blobs, nil
}
