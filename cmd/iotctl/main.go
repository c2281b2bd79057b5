// Command iotctl calls the IoT services from the command line, using the same
// credential discovery as the SDK.
//
//	iotctl token                     print a bearer token
//	iotctl get <destination> <path>  send a GET and print the response body
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	iot "github.com/leonardo-iot/iot-sdk-go"
	"github.com/leonardo-iot/iot-sdk-go/internal/config"
	"github.com/leonardo-iot/iot-sdk-go/internal/observe"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type cliConfig struct {
	// Tenant selects a tenant from the tenants file.
	Tenant      string   `env:"IOTCTL_TENANT"`
	TenantsFile string   `env:"IOTCTL_TENANTS_FILE"`
	JWT         string   `env:"IOTCTL_JWT"`
	Scopes      []string `env:"IOTCTL_SCOPES"`
}

var errUsage = errors.New("usage: iotctl token | iotctl get <destination> <path>")

func main() {
	configureLogging()

	logBuildInfo()

	if err := run(context.Background(), os.Args[1:], nil, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("iotctl failed")
	}
}

func run(ctx context.Context, args []string, lookup envconfig.Lookuper, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	var cli cliConfig
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cli,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(ctx); err != nil {
			log.Warn().Err(err).Msg("telemetry: shutdown failed")
		}
	}()

	client, err := newClient(ctx, cli, cfg)
	if err != nil {
		return err
	}

	switch args[0] {
	case "token":
		return printToken(ctx, client, cli, out)
	case "get":
		if len(args) != 3 {
			return errUsage
		}
		return get(ctx, client, cli, args[1], args[2], out)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

// newClient builds the client of the selected tenant, or the client of the
// bound service when no tenants file is given.
func newClient(ctx context.Context, cli cliConfig, cfg config.Config) (*iot.Client, error) {
	opts := []iot.Option{
		iot.WithHTTPClient(iot.NewHTTPClient(cfg.HTTP, cfg.Observe)),
		iot.WithKeySetTTL(time.Duration(cfg.Cache.KeySetTTLSeconds) * time.Second),
		iot.WithTenantTTL(time.Duration(cfg.Cache.TenantTTLSeconds) * time.Second),
		iot.WithUserAgent("iotctl/" + iot.Version),
	}

	if cli.TenantsFile == "" {
		return iot.New(ctx, opts...)
	}

	tenants, err := iot.LoadTenants(cli.TenantsFile, opts...)
	if err != nil {
		return nil, err
	}

	name := cli.Tenant
	if name == "" {
		names := tenants.Names()
		if len(names) != 1 {
			return nil, fmt.Errorf("IOTCTL_TENANT must name one of: %s", strings.Join(names, ", "))
		}
		name = names[0]
	}

	return tenants.Client(ctx, name)
}

func printToken(ctx context.Context, client *iot.Client, cli cliConfig, out io.Writer) error {
	var (
		token string
		err   error
	)
	if cli.JWT != "" {
		token, err = client.ExchangeToken(ctx, cli.JWT)
	} else {
		token, err = client.AccessToken(ctx, cli.Scopes...)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}

func get(ctx context.Context, client *iot.Client, cli cliConfig, destination, path string, out io.Writer) error {
	base, err := client.Destination(destination)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	resp, err := client.Request(ctx, iot.RequestConfig{
		URL:    base + path,
		JWT:    cli.JWT,
		Scopes: cli.Scopes,
	})
	if err != nil {
		return err
	}

	_, err = out.Write(resp.Body)
	return err
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// stdout carries command output, so logs go to stderr
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Debug()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}
