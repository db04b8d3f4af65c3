package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelsilo/silo/pkg/config"
	"github.com/modelsilo/silo/pkg/models"
	"github.com/modelsilo/silo/pkg/store"
)

var (
	userEmail     string
	userSiteAdmin bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long: `Manage hub users.

Creating a user also creates the matching namespace, so repositories
can immediately be pushed under <username>/<repo>.

Examples:
  silo user create alice
  silo user create ops --site-admin
  silo user list`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a new user (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	userCreateCmd.Flags().BoolVar(&userSiteAdmin, "site-admin", false, "Grant site admin privileges")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	return store.New(&cfg.Database)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username := args[0]

	password, err := promptPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	user := &models.User{
		Username:     username,
		Email:        userEmail,
		PasswordHash: hash,
		Enabled:      true,
		SiteAdmin:    userSiteAdmin,
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User %q created (namespace %s/)\n", username, username)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("%-24s %-32s %-8s %s\n", "USERNAME", "EMAIL", "ADMIN", "CREATED")
	for _, u := range users {
		admin := "-"
		if u.SiteAdmin {
			admin = "yes"
		}
		fmt.Printf("%-24s %-32s %-8s %s\n", u.Username, u.Email, admin, u.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
