package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tutela-wallet/tutela/internal/config"
	"github.com/tutela-wallet/tutela/internal/http_api"
	"github.com/tutela-wallet/tutela/internal/repository"
	"github.com/tutela-wallet/tutela/internal/tutela"
	"github.com/tutela-wallet/tutela/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "tutela",
		Usage: "Tutela is an account delegation and conditional spending service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.StringFlag{Name: "owner-address", Aliases: []string{"o"}, Usage: "Administrative owner account"},
			&cli.Uint64Flag{Name: "chain-scope", Aliases: []string{"c"}, Usage: "Signature scope identifier"},
			&cli.StringFlag{Name: "nats-url", Aliases: []string{"n"}, Usage: "NATS server URL"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("owner-address") {
		cfg.OwnerAddress = c.String("owner-address")
	}
	if c.IsSet("chain-scope") {
		cfg.ChainScope = c.Uint64("chain-scope")
	}
	if c.IsSet("nats-url") {
		cfg.NATSUrl = c.String("nats-url")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Create application instance
	app, err := tutela.New(cfg, db, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %v", err)
	}
	defer app.Close()

	// Initialize API server
	apiServer := http_api.NewHTTPServer(app, cfg.APIPort, log.Named("http"))

	go apiServer.Start()
	go app.Start()

	// Wait for termination and shut down cleanly
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down HTTP server: ", err)
	}
	return nil
}
