// Command cdc-pump runs the replication pump: it connects to an upstream
// MariaDB-flavor binary-log stream and applies mutations to a downstream
// MySQL-protocol store, resuming from a persisted checkpoint across
// restarts.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amvasilyev/cdc-pump/internal/applier"
	"github.com/amvasilyev/cdc-pump/internal/binlogsrc"
	"github.com/amvasilyev/cdc-pump/internal/checkpoint"
	"github.com/amvasilyev/cdc-pump/internal/config"
	"github.com/amvasilyev/cdc-pump/internal/dispatch"
	"github.com/amvasilyev/cdc-pump/internal/tid"
	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON configuration file (default: stdin)")
	printSpec := flag.Bool("spec", false, "print the configuration JSON schema and exit")
	flag.Parse()

	if *printSpec {
		schema, err := json.MarshalIndent(config.JSONSchema(), "", "  ")
		if err != nil {
			logrus.WithError(err).Fatal("failed to render config schema")
		}
		fmt.Println(string(schema))
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	if err := run(cfg); err != nil {
		logrus.WithError(err).Fatal("pump exited with error")
	}
}

func loadConfig(path string) (*config.Config, error) {
	var r *os.File
	if path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening config file %q: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var cfg config.Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func run(cfg *config.Config) error {
	downstream, err := sql.Open("mysql", downstreamDSN(cfg))
	if err != nil {
		return fmt.Errorf("opening downstream connection: %w", err)
	}
	defer downstream.Close()

	var configured tid.TID
	if cfg.Advanced.StartTID != "" {
		configured, err = tid.Parse(cfg.Advanced.StartTID)
		if err != nil {
			return fmt.Errorf("parsing advanced.start_tid: %w", err)
		}
	}

	client := binlogsrc.New(binlogsrc.Config{
		Host:     cfg.Login.Host,
		Port:     cfg.Login.Port,
		User:     cfg.Login.User,
		Password: cfg.Login.Password,
		ServerID: cfg.Advanced.ServerID,
	})

	driver, err := dispatch.New(dispatch.Config{
		Client:         client,
		Executor:       applier.NewStatementExecutor(downstream),
		Opener:         &applier.TableOpener{DB: downstream},
		Store:          checkpoint.New(cfg.Advanced.CheckpointPath),
		ConfiguredTID:  configured,
		AcceptedTables: cfg.Advanced.AcceptedTables,
	})
	if err != nil {
		return fmt.Errorf("constructing driver: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	driver.Start(ctx)

	select {
	case <-ctx.Done():
		logrus.Info("shutdown signal received")
		driver.Stop()
		driver.Wait()
		return nil
	case <-driver.Done():
		return fmt.Errorf("pump stopped with a fatal error; see logs above")
	}
}

func downstreamDSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/", cfg.Login.User, cfg.Login.Password, cfg.Login.Host, cfg.Login.Port)
}
