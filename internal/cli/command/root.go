package command

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpool/internal/cli/connection"
	"github.com/yndnr/tokpool/internal/cli/output"
	"github.com/yndnr/tokpool/internal/infra/buildinfo"
	"github.com/yndnr/tokpool/internal/infra/tlsroots"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
)

// DefaultServer is the tokpool-server address used when --server is not given.
const DefaultServer = "127.0.0.1:3000"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tokpool-cli",
		Usage:   "Exchange credential lists for tokens and manage a tokpool-server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RunCommand(),
			ScheduleCommand(),
			TokensCommand(),
			SystemCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "tokpool-server address (e.g., 127.0.0.1:3000)",
			EnvVars: []string{"TOKPOOL_SERVER"},
			Value:   DefaultServer,
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Aliases: []string{"t"},
			Usage:   "Admin token for /admin/v1 endpoints",
			EnvVars: []string{"TOKPOOL_ADMIN_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "Extra PEM CA bundle trusted for HTTPS connections",
			EnvVars: []string{"TOKPOOL_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"TOKPOOL_LOG_LEVEL"},
			Value:   "info",
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format: text, json",
			EnvVars: []string{"TOKPOOL_LOG_FORMAT"},
			Value:   "text",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	// Server connection
	Server     string
	AdminToken string
	CAFile     string

	// Output format
	Output string // table, json, yaml
	Wide   bool

	// Logging
	LogLevel  string
	LogFormat string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:     c.String("server"),
		AdminToken: c.String("admin-token"),
		CAFile:     c.String("ca-file"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		LogLevel:   c.String("log-level"),
		LogFormat:  c.String("log-format"),
	}
}

// clientOptions returns connection options honoring --ca-file.
func clientOptions(caFile string) ([]connection.Option, error) {
	if caFile == "" {
		return nil, nil
	}
	pool, err := tlsroots.NewPool(caFile)
	if err != nil {
		return nil, fmt.Errorf("load CA file: %w", err)
	}
	return []connection.Option{connection.WithTLSConfig(pool.ClientConfig())}, nil
}

// EnsureConnected returns an HTTP client for the configured server.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	flags := ParseGlobalFlags(c)

	opts, err := clientOptions(flags.CAFile)
	if err != nil {
		return nil, err
	}
	return connection.NewHTTPClient(flags.Server, flags.AdminToken, opts...), nil
}

// newLogger builds the command logger writing to the app's error stream.
func newLogger(c *cli.Context) (*slog.Logger, error) {
	flags := ParseGlobalFlags(c)

	l, err := logger.New(logger.Config{
		Level:  flags.LogLevel,
		Format: flags.LogFormat,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return nil, err
	}
	return logger.Slog(l), nil
}

// printResult writes data to the app's output stream in the selected format.
func printResult(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)

	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
