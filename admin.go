package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ekaya-inc/t2sql-engine/pkg/database"
	"github.com/ekaya-inc/t2sql-engine/pkg/repositories"
	"github.com/ekaya-inc/t2sql-engine/pkg/services"
)

var (
	adminEmail    string
	adminFullName string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a superuser account",
	Long: `Create an active superuser. The password is read from the terminal
and never accepted as a flag.`,
	Args: cobra.NoArgs,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Email address for the account")
	createAdminCmd.Flags().StringVar(&adminFullName, "full-name", "", "Display name for the account")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reader := bufio.NewReader(os.Stdin)
	if adminEmail == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		adminEmail = strings.TrimSpace(line)
	}

	password, err := promptPassword()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := connectDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	scope, err := db.WithoutOwner(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer scope.Close()
	ctx = database.SetOwnerScope(ctx, scope)

	users := services.NewUserService(repositories.NewUserRepository(), logger)
	user, err := users.CreateAdmin(ctx, adminEmail, password, adminFullName)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	logger.Info("Admin created", zap.String("user_id", user.ID.String()))
	fmt.Printf("Created superuser %s (%s)\n", user.Email, user.ID)
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password) != string(confirm) {
		return "", errors.New("passwords do not match")
	}
	return string(password), nil
}
