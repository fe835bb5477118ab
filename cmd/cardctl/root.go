package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/card-registry/internal/adapter"
	"github.com/feral-file/card-registry/internal/auth"
	"github.com/feral-file/card-registry/internal/config"
	"github.com/feral-file/card-registry/internal/host"
	"github.com/feral-file/card-registry/internal/logger"
	"github.com/feral-file/card-registry/internal/messaging"
	"github.com/feral-file/card-registry/internal/providers/jetstream"
	"github.com/feral-file/card-registry/internal/store"
)

// GlobalFlags are shared by every subcommand
type GlobalFlags struct {
	ConfigFile string
	EnvPath    string
	PrivateKey string
	Nonce      uint64
}

// cli holds the state of one cardctl run
type cli struct {
	flags GlobalFlags
	out   io.Writer

	cfg       *config.CLIConfig
	json      adapter.JSON
	codec     *auth.Codec
	store     store.Store
	publisher messaging.Publisher
	host      *host.Host
}

// execute runs cardctl with args and releases every resource it opened
func execute(ctx context.Context, args []string) error {
	c := &cli{out: os.Stdout, json: adapter.NewJSON()}
	defer c.close()

	root := c.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cardctl",
		Short: "Operate a card registry directly against its store",
		Long: `cardctl runs the registry host in-process over the configured store.

State-changing commands are simulated first to learn which addresses must
authorize them, then signed with --key and committed.

The default "memory" storage driver does not persist between runs; configure
storage.driver=badger or postgres to keep state.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadCLIConfig(c.flags.ConfigFile, c.flags.EnvPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c.cfg = cfg

			if err := logger.Initialize(logger.Config{
				Debug:           cfg.Debug,
				SentryDSN:       cfg.SentryDSN,
				BreadcrumbLevel: zapcore.InfoLevel,
				Tags: map[string]string{
					"service":  "cardctl",
					"contract": cfg.Contract.ID,
				},
			}); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			if c.flags.PrivateKey == "" {
				c.flags.PrivateKey = cfg.PrivateKey
			}
			c.out = cmd.OutOrStdout()
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.flags.ConfigFile, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&c.flags.EnvPath, "env", "config/", "Path to environment files")
	root.PersistentFlags().StringVar(&c.flags.PrivateKey, "key", "", "Hex private key used to sign (default $CARD_REGISTRY_PRIVATE_KEY)")
	root.PersistentFlags().Uint64Var(&c.flags.Nonce, "nonce", 0, "Authorization nonce (default last used + 1)")

	root.AddCommand(c.keygenCommand())
	root.AddCommand(c.initializeCommand())
	root.AddCommand(c.adminMintCommand())
	root.AddCommand(c.publicMintCommand())
	root.AddCommand(c.transferCommand())
	root.AddCommand(c.ownerOfCommand())
	root.AddCommand(c.tokenURICommand())
	root.AddCommand(c.totalSupplyCommand())
	root.AddCommand(c.nonceCommand())

	return root
}

// open connects the store and publisher and builds the host
func (c *cli) open(ctx context.Context) (*host.Host, error) {
	if c.host != nil {
		return c.host, nil
	}

	if c.cfg.Storage.Driver == store.DriverMemory {
		logger.WarnCtx(ctx, "Using in-memory storage, state is discarded on exit")
	}

	st, err := store.Open(config.StoreConfig(c.cfg.Storage, c.cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.store = st

	if c.cfg.NATS.URL != "" {
		c.publisher, err = jetstream.NewPublisher(c.cfg.NATS.Publisher(), adapter.NewNatsJetStream(), c.json)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
	} else {
		c.publisher = messaging.NewNoopPublisher()
	}

	c.codec = auth.NewCodec(c.json, adapter.NewJCS())
	c.host = host.New(host.Config{Contract: c.cfg.Contract.ID}, c.store, c.codec, c.json, adapter.NewClock(), c.publisher)

	logger.DebugCtx(ctx, "Opened registry host",
		zap.String("contract", c.cfg.Contract.ID),
		zap.String("driver", c.cfg.Storage.Driver))
	return c.host, nil
}

func (c *cli) close() {
	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			logger.Error(err, zap.String("message", "Failed to close store"))
		}
	}
	logger.Flush(time.Second)
}

// signer loads the configured signing key
func (c *cli) signer() (*auth.Signer, error) {
	if c.flags.PrivateKey == "" {
		return nil, errors.New("a signing key is required, pass --key or set CARD_REGISTRY_PRIVATE_KEY")
	}
	return auth.NewSigner(c.flags.PrivateKey)
}

// print writes v as indented JSON
func (c *cli) print(v any) error {
	data, err := c.json.Marshal(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = c.out.Write(buf.Bytes())
	return err
}
