// Package servecmder provides the serve command running the memory API
// server, the reconciliation loop, and the MCP surface.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/api/mcp"
	"github.com/papercomputeco/recall/pkg/audit"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/kafka"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/service"
	"github.com/papercomputeco/recall/pkg/store"
	"github.com/papercomputeco/recall/pkg/store/file"
	"github.com/papercomputeco/recall/pkg/store/inmemory"
	"github.com/papercomputeco/recall/pkg/store/sqlite"
)

type ServeCommander struct {
	listen          string
	storageProvider string
	storagePath     string
	sqlitePath      string
	autosaveSecs    uint
	eventsCap       uint
	streamProvider  string
	brokers         string
	topic           string

	autosaveEnabled bool
	debug           bool
	logger          *zap.Logger
}

const serveLongDesc string = `Run the recall memory service.

Serves the memory API over HTTP, mounts the MCP tools at /mcp, and runs the
background reconciliation loop that flushes unsaved changes and repairs the
snapshot after external writes.`

const serveShortDesc string = "Run the recall memory service"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			return cmder.resolve(v, cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStoragePath, &cmder.storagePath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagAutosaveSecs, &cmder.autosaveSecs)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagEventsCap, &cmder.eventsCap)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStreamProvider, &cmder.streamProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStreamBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStreamTopic, &cmder.topic)

	return cmd
}

// resolve settles the effective configuration through viper's precedence
// chain: flag > env > config file > default.
func (c *ServeCommander) resolve(v *viper.Viper, cmd *cobra.Command) error {
	config.BindRegisteredFlags(v, cmd, config.ServeFlags, []string{
		config.FlagListen,
		config.FlagStorageProvider,
		config.FlagStoragePath,
		config.FlagSQLite,
		config.FlagAutosaveSecs,
		config.FlagEventsCap,
		config.FlagStreamProvider,
		config.FlagStreamBrokers,
		config.FlagStreamTopic,
	})

	c.listen = v.GetString("api.listen")
	c.storageProvider = v.GetString("storage.provider")
	c.storagePath = v.GetString("storage.path")
	c.sqlitePath = v.GetString("storage.sqlite_path")
	c.autosaveEnabled = v.GetBool("autosave.enabled")
	c.autosaveSecs = v.GetUint("autosave.interval_seconds")
	c.eventsCap = v.GetUint("events.cap")
	c.streamProvider = v.GetString("stream.provider")
	c.brokers = v.GetString("stream.brokers")
	c.topic = v.GetString("stream.topic")

	return nil
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	storageDir, err := c.resolveStorageDir()
	if err != nil {
		return err
	}

	driver, err := c.newStoreDriver(storageDir)
	if err != nil {
		return err
	}
	defer driver.Close()

	auditLogger, err := audit.NewLogger(storageDir, c.logger)
	if err != nil {
		return fmt.Errorf("creating audit logger: %w", err)
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc, err := service.New(context.Background(), service.Config{
		Store:     driver,
		Audit:     auditLogger,
		Publisher: publisher,
		EventCap:  int(c.eventsCap),
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	var reconciler *service.Reconciler
	if c.autosaveEnabled {
		interval := time.Duration(c.autosaveSecs) * time.Second
		reconciler = service.NewReconciler(svc, interval, c.logger)

		// Only the file store has a snapshot path worth watching.
		if fileDriver, ok := driver.(*file.Driver); ok {
			if err := reconciler.WatchSnapshot(fileDriver.Path()); err != nil {
				c.logger.Warn("snapshot watch unavailable", zap.Error(err))
			}
		}

		reconciler.Start()
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Service: svc,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr: c.listen,
	}, svc, mcpServer.Handler(), c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	if err := apiServer.Shutdown(); err != nil {
		c.logger.Error("API server shutdown failed", zap.Error(err))
	}

	if reconciler != nil {
		if err := reconciler.Stop(5 * time.Second); err != nil {
			c.logger.Error("reconciler shutdown failed", zap.Error(err))
		}
	}

	// Final flush so a clean shutdown never loses committed mutations.
	if _, err := svc.FlushIfDirty(context.Background()); err != nil {
		c.logger.Error("final flush failed", zap.Error(err))
	}

	return nil
}

// resolveStorageDir picks the directory holding the snapshot, backups, and
// audit log: the configured path, or the resolved .recall/ directory.
func (c *ServeCommander) resolveStorageDir() (string, error) {
	if c.storagePath != "" {
		return c.storagePath, nil
	}

	dir, err := dotdir.NewManager().Target("")
	if err != nil {
		return "", fmt.Errorf("resolving storage directory: %w", err)
	}

	return dir, nil
}

func (c *ServeCommander) newStoreDriver(storageDir string) (store.Driver, error) {
	switch c.storageProvider {
	case "file", "":
		driver, err := file.NewDriver(storageDir, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating file store: %w", err)
		}
		c.logger.Info("using file storage", zap.String("dir", storageDir))
		return driver, nil

	case "sqlite":
		driver, err := sqlite.NewDriver(c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", c.sqlitePath))
		return driver, nil

	case "inmemory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage provider %q (want file, sqlite, or inmemory)", c.storageProvider)
	}
}

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	switch c.streamProvider {
	case "nop", "":
		return nop.NewPublisher(), nil

	case "kafka":
		publisher, err := kafka.NewPublisher(strings.Split(c.brokers, ","), c.topic)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing mutation events to kafka",
			zap.String("brokers", c.brokers),
			zap.String("topic", c.topic),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown stream provider %q (want nop or kafka)", c.streamProvider)
	}
}
