// Package cli implements crmctl, the command line client of the CRM API.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/salescrm/crm-api/internal/cli/formatter"
	"github.com/salescrm/crm-api/internal/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	envAPIURL = "CRM_API_URL"
	envToken  = "CRM_TOKEN"

	defaultAPIURL = "http://localhost:8080/api/v1"
)

// App holds what commands need beyond their flags
type App struct {
	Logger *zap.Logger
	// IsInteractive reports whether stdout is a terminal able to run the board
	IsInteractive func() bool
	// RunBoard runs the interactive board program; nil uses runProgram
	RunBoard func(ctx context.Context, m tea.Model) error
}

func runProgram(ctx context.Context, m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// options are the persistent flags shared by every command
type options struct {
	apiURL  string
	token   string
	output  string
	timeout time.Duration
	verbose bool
}

func (o *options) format() (formatter.Format, error) {
	return formatter.ParseFormat(o.output)
}

func (o *options) client(app *App) (*client.APIClient, error) {
	if o.apiURL == "" {
		return nil, fmt.Errorf("API URL is empty; set --api-url or %s", envAPIURL)
	}
	logger := app.Logger
	if logger == nil || !o.verbose {
		logger = zap.NewNop()
	}
	return client.NewAPIClient(client.Config{
		BaseURL: o.apiURL,
		Token:   o.token,
		Timeout: o.timeout,
	}, logger), nil
}

func (o *options) requireToken() error {
	if o.token == "" {
		return fmt.Errorf("not logged in; run `crmctl login` and export %s", envToken)
	}
	return nil
}

// NewRootCmd creates the top-level "crmctl" command with every subcommand registered
func NewRootCmd(app *App) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Command line client for the sales CRM",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Reject a bad -o before any command talks to the API
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.format()
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", envOr(envAPIURL, defaultAPIURL), "API root URL (env "+envAPIURL+")")
	flags.StringVar(&opts.token, "token", os.Getenv(envToken), "session token (env "+envToken+")")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table, json or yaml")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		newLoginCmd(app, opts),
		newOpportunitiesCmd(app, opts),
		newBoardCmd(app, opts),
		newKPIsCmd(app, opts),
	)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func write(cmd *cobra.Command, opts *options, v interface{}, table func() string) error {
	format, err := opts.format()
	if err != nil {
		return err
	}
	return formatter.Write(cmd.OutOrStdout(), format, v, table)
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
