package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpool/internal/cli/connection"
	"github.com/yndnr/tokpool/internal/cli/output"
	"github.com/yndnr/tokpool/internal/core/domain"
)

// TokensCommand returns the tokens subcommand group.
func TokensCommand() *cli.Command {
	return &cli.Command{
		Name:    "tokens",
		Aliases: []string{"tok"},
		Usage:   "Inspect and maintain the server token store",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List live tokens",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reveal",
						Usage: "Print full token values instead of masked ones",
					},
				},
				Action: tokensList,
			},
			{
				Name:   "gc",
				Usage:  "Remove expired tokens now",
				Action: tokensGC,
			},
		},
	}
}

// tokenView is one row of tokens list.
type tokenView struct {
	Token     string    `json:"token" yaml:"token"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

// tokenListView renders GET /tokens.
type tokenListView struct {
	Count  int         `json:"count" yaml:"count"`
	Tokens []tokenView `json:"tokens" yaml:"tokens"`

	now time.Time
}

func newTokenListView(snap *domain.TokenStoreSnapshot, reveal bool, now time.Time) *tokenListView {
	v := &tokenListView{
		Count:  snap.Count,
		Tokens: make([]tokenView, 0, len(snap.Records)),
		now:    now,
	}
	for _, rec := range snap.Records {
		tok := rec.Token.Redacted()
		if reveal {
			tok = rec.Token.String()
		}
		v.Tokens = append(v.Tokens, tokenView{
			Token:     tok,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
		})
	}
	return v
}

// Table implements output.Tabular.
func (v *tokenListView) Table(wide bool) *output.Table {
	headers := []string{"TOKEN", "EXPIRES IN"}
	if wide {
		headers = append(headers, "CREATED", "EXPIRES")
	}
	t := output.NewTable(headers...)
	for _, tok := range v.Tokens {
		row := []string{tok.Token, tok.ExpiresAt.Sub(v.now).Truncate(time.Second).String()}
		if wide {
			row = append(row, tok.CreatedAt.Format(time.RFC3339), tok.ExpiresAt.Format(time.RFC3339))
		}
		t.AddRow(row...)
	}
	return t
}

func tokensList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/tokens")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var snap domain.TokenStoreSnapshot
	if err := connection.ParseResponse(resp, &snap); err != nil {
		return err
	}
	return printResult(c, newTokenListView(&snap, c.Bool("reveal"), time.Now()))
}

// gcView renders POST /admin/v1/gc/trigger.
type gcView struct {
	CleanedCount int    `json:"cleaned_count" yaml:"cleaned_count"`
	TriggeredAt  string `json:"triggered_at" yaml:"triggered_at"`
}

// Table implements output.Tabular.
func (v *gcView) Table(bool) *output.Table {
	t := output.NewTable("CLEANED", "TRIGGERED AT")
	t.AddRow(strconv.Itoa(v.CleanedCount), v.TriggeredAt)
	return t
}

func tokensGC(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/admin/v1/gc/trigger", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result gcView
	if err := connection.ParseEnvelope(resp, &result); err != nil {
		return err
	}
	return printResult(c, &result)
}
