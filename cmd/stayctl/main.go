// main.go - Admin control tool for StayBoost
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"stayboost/internal"
	"stayboost/internal/branding"
	"stayboost/internal/config"
	"stayboost/internal/http/middleware"
	"stayboost/internal/seeder"
	"stayboost/internal/targeting"
	"stayboost/internal/templates"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&PruneCommand{},
	&TokenCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection().WithContext(ctx)

	counts := []struct {
		label string
		model any
	}{
		{"Targeting rules", &targeting.TargetingRule{}},
		{"Executions", &targeting.TargetingExecution{}},
		{"Segments", &targeting.CustomerSegment{}},
		{"Templates", &templates.Template{}},
		{"Usage rows", &templates.TemplateUsageStats{}},
		{"Ratings", &templates.TemplateRating{}},
		{"Brandings", &branding.ShopBranding{}},
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	for _, c := range counts {
		var n int64
		if err := db.Model(c.model).Count(&n).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		log.Printf("- %s: %d", c.label, n)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// PruneCommand deletes old audit executions immediately.
type PruneCommand struct{}

func (c *PruneCommand) Name() string        { return "prune" }
func (c *PruneCommand) Description() string { return "Deletes audit executions past the retention period" }

func (c *PruneCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot prune")
	}
	found, err := app.Scheduler.RunNow(ctx, "execution_retention")
	if !found {
		return fmt.Errorf("execution retention job is not registered")
	}
	return err
}

// TokenCommand prints an admin session token for a shop, for calling the
// admin API with curl during development.
type TokenCommand struct{}

func (c *TokenCommand) Name() string        { return "token" }
func (c *TokenCommand) Description() string { return "Prints an admin API session token for a shop" }

func (c *TokenCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	shop := fs.String("shop", "", "shop domain the token is issued for")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *shop == "" {
		return fmt.Errorf("--shop is required")
	}

	secret := config.GetConfig().ShopifyAPISecret
	if secret == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return fmt.Errorf("SHOPIFY_API_SECRET is not set")
		}
		fmt.Print("Shopify API secret: ")
		secretBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		secret = strings.TrimSpace(string(secretBytes))
	}

	token, err := middleware.IssueSessionToken(strings.ToLower(*shop), secret, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with sample data
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample data" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	visitors := fs.Int("visitors", 500, "number of storefront visits to evaluate per shop")
	shop := fs.String("shop", "", "specific shop to seed (seeds all defaults if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *visitors)
	if *shop != "" {
		return se.SeedShop(ctx, *shop)
	}
	return se.Run(ctx)
}

func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: stayctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
