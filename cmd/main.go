package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"temporal-sa/crypto-provider/algcache"
	"temporal-sa/crypto-provider/codec"
	"temporal-sa/crypto-provider/config"
	"temporal-sa/crypto-provider/crypto"
	"temporal-sa/crypto-provider/engine"
	"temporal-sa/crypto-provider/metrics"
	"temporal-sa/crypto-provider/transport"
)

const (
	algFlag     = "alg"
	hmacKeyFlag = "hmac-key"
	inFlag      = "in"
	outFlag     = "out"
)

func main() {
	app := &cli.App{
		Name:  "cryptoprov",
		Usage: "Crypto provider",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    config.ConfigPathFlag,
				Usage:   "config file",
				Aliases: []string{"c"},
				Value:   config.DefaultConfigPath,
			},
			&cli.StringFlag{
				Name:  config.LogLevelFlag,
				Usage: "log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "selftest",
				Usage:  "run the known answer tests against the engine",
				Action: selfTestAction,
			},
			{
				Name:      "digest",
				Usage:     "hash a file, or stdin, and print the hex digest",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: algFlag, Value: engine.AlgSHA256, Usage: "hash algorithm"},
					&cli.StringFlag{Name: hmacKeyFlag, Usage: "hex encoded key; computes an HMAC when set"},
				},
				Action: digestAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the payload codec over HTTP until interrupted",
				Action: serveAction,
			},
			{
				Name:   "encrypt",
				Usage:  "seal a file into an encrypted payload",
				Flags:  ioFlags(),
				Action: encryptAction,
			},
			{
				Name:   "decrypt",
				Usage:  "open an encrypted payload",
				Flags:  ioFlags(),
				Action: decryptAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func ioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: inFlag, Usage: "input file, stdin when empty"},
		&cli.StringFlag{Name: outFlag, Usage: "output file, stdout when empty"},
	}
}

// run builds the application graph, calls fn with the requested
// dependencies and runs the lifecycle. With wait set it blocks until the
// process is signalled.
func run(c *cli.Context, fn interface{}, wait bool) error {
	app := fx.New(
		fx.Supply(c),
		fx.Provide(newLogger),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		config.Module,
		algcache.Module,
		metrics.Module,
		codec.Module,
		transport.Module,
		fx.Invoke(fn),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	startCtx, cancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	if wait {
		<-app.Done()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	return app.Stop(stopCtx)
}

func newLogger(configProvider config.ConfigProvider) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(configProvider.GetProviderConfig().Log.Level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func selfTestAction(c *cli.Context) error {
	var runErr error
	err := run(c, func(cache *algcache.Cache, handler *metrics.MetricsHandler, logger *zap.Logger) {
		var results []crypto.SelfTestResult
		results, runErr = crypto.RunSelfTest(cache, handler, logger)
		for _, r := range results {
			status := "ok"
			if r.Err != nil {
				status = "FAIL: " + r.Err.Error()
			}
			fmt.Fprintf(c.App.Writer, "%-16s %10s  %s\n", r.Name, r.Duration, status)
		}
	}, false)
	if err != nil {
		return err
	}
	return runErr
}

func serveAction(c *cli.Context) error {
	return run(c, func(t transport.TransportProvider, logger *zap.Logger) {
		logger.Info("serving payload codec", zap.String("addr", t.Addr()))
	}, true)
}

func digestAction(c *cli.Context) error {
	data, err := readInput(c.Args().First())
	if err != nil {
		return err
	}

	var key []byte
	if raw := c.String(hmacKeyFlag); raw != "" {
		if key, err = hex.DecodeString(raw); err != nil {
			return fmt.Errorf("hmac key is not hex: %w", err)
		}
		defer crypto.Zero(key)
	}

	var digest []byte
	err = run(c, func(cache *algcache.Cache) error {
		alg := strings.ToUpper(c.String(algFlag))
		var err error
		if key != nil {
			digest, err = crypto.HMACData(cache, alg, key, data)
		} else {
			digest, err = crypto.HashData(cache, alg, data)
		}
		return err
	}, false)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, hex.EncodeToString(digest))
	return err
}

func encryptAction(c *cli.Context) error {
	data, err := readInput(c.String(inFlag))
	if err != nil {
		return err
	}

	var out []byte
	err = run(c, func(payloadCodec converter.PayloadCodec) error {
		encoded, err := payloadCodec.Encode([]*commonpb.Payload{{
			Metadata: map[string][]byte{converter.MetadataEncoding: []byte(converter.MetadataEncodingBinary)},
			Data:     data,
		}})
		if err != nil {
			return err
		}
		out, err = encoded[0].Marshal()
		return err
	}, false)
	if err != nil {
		return err
	}
	return writeOutput(c, out)
}

func decryptAction(c *cli.Context) error {
	data, err := readInput(c.String(inFlag))
	if err != nil {
		return err
	}

	payload := &commonpb.Payload{}
	if err := payload.Unmarshal(data); err != nil {
		return fmt.Errorf("input is not a payload: %w", err)
	}

	var out []byte
	err = run(c, func(payloadCodec converter.PayloadCodec) error {
		decoded, err := payloadCodec.Decode([]*commonpb.Payload{payload})
		if err != nil {
			return err
		}
		out = decoded[0].Data
		return nil
	}, false)
	if err != nil {
		return err
	}
	return writeOutput(c, out)
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(c *cli.Context, data []byte) error {
	path := c.String(outFlag)
	if path == "" || path == "-" {
		_, err := c.App.Writer.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
