package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sitesage/sitesage/internal/app"
	"github.com/sitesage/sitesage/internal/config"
	"github.com/sitesage/sitesage/internal/tenant"
)

var (
	flagTenantName     string
	flagTenantDomain   string
	flagTenantGreeting string
	flagTenantLanguage string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTenantCreate()
	},
}

func init() {
	tenantCreateCmd.Flags().StringVar(&flagTenantName, "name", "", "tenant display name (required)")
	tenantCreateCmd.Flags().StringVar(&flagTenantDomain, "domain", "", "website root URL, e.g. https://acme.test (required)")
	tenantCreateCmd.Flags().StringVar(&flagTenantGreeting, "greeting", "", "chat widget greeting")
	tenantCreateCmd.Flags().StringVar(&flagTenantLanguage, "language", "", "preferred answer language")
	_ = tenantCreateCmd.MarkFlagRequired("name")
	_ = tenantCreateCmd.MarkFlagRequired("domain")

	tenantCmd.AddCommand(tenantCreateCmd)
	rootCmd.AddCommand(tenantCmd)
}

func runTenantCreate() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	tn, err := a.Tenants.Create(ctx, flagTenantName, flagTenantDomain, tenant.Settings{
		Greeting: flagTenantGreeting,
		Language: flagTenantLanguage,
	})
	if err != nil {
		return fmt.Errorf("creating tenant: %w", err)
	}

	fmt.Printf("Tenant created\n")
	fmt.Printf("  id:      %s\n", tn.ID)
	fmt.Printf("  domain:  %s\n", tn.Domain)
	fmt.Printf("  api key: %s\n", tn.APIKey)
	return nil
}
