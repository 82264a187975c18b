package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpool/internal/cli/connection"
	"github.com/yndnr/tokpool/internal/cli/output"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status and health",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show server status summary",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server health",
				Action: systemHealth,
			},
		},
	}
}

// statusView renders GET /admin/v1/status/summary.
type statusView struct {
	Status     string `json:"status" yaml:"status"`
	Version    string `json:"version" yaml:"version"`
	Commit     string `json:"commit" yaml:"commit"`
	GoVersion  string `json:"go_version" yaml:"go_version"`
	TokenCount int    `json:"token_count" yaml:"token_count"`
	Time       string `json:"time" yaml:"time"`
}

// Table implements output.Tabular.
func (v *statusView) Table(wide bool) *output.Table {
	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("Status", v.Status)
	t.AddRow("Version", v.Version)
	t.AddRow("Tokens", strconv.Itoa(v.TokenCount))
	if wide {
		t.AddRow("Commit", v.Commit)
		t.AddRow("Go", v.GoVersion)
		t.AddRow("Server time", v.Time)
	}
	return t
}

func systemStatus(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/status/summary")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result statusView
	if err := connection.ParseEnvelope(resp, &result); err != nil {
		return err
	}
	return printResult(c, &result)
}

// healthView renders GET /health.
type healthView struct {
	Server string `json:"server" yaml:"server"`
	Status string `json:"status" yaml:"status"`
	Time   string `json:"time,omitempty" yaml:"time,omitempty"`
}

// Table implements output.Tabular.
func (v *healthView) Table(bool) *output.Table {
	t := output.NewTable("SERVER", "STATUS")
	t.AddRow(v.Server, v.Status)
	return t
}

func systemHealth(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	// Health needs no admin token.
	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}

	result := healthView{Server: client.BaseURL()}
	if err := connection.ParseEnvelope(resp, &result); err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}
	return printResult(c, &result)
}
