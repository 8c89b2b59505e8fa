package cli

import (
	"errors"
	"strings"

	"github.com/salescrm/crm-api/internal/cli/formatter"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App, opts *options) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a session token",
		Long: "Sign in with email and password. The printed token is read from " +
			envToken + " by the other commands.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			api, err := opts.client(app)
			if err != nil {
				return err
			}

			resp, err := api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			return write(cmd, opts, resp, func() string { return loginSummary(resp) })
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")

	return cmd
}

func loginSummary(resp *domain.AuthResponse) string {
	var b strings.Builder
	printf(&b, "Logged in as %s (%s) on %s\n",
		formatter.StyleBold.Render(resp.User.Name),
		resp.User.Role,
		resp.Tenant.Name,
	)
	printf(&b, "Token expires %s\n\n", resp.ExpiresAt.Format("2006-01-02 15:04 MST"))
	printf(&b, "export %s=%s\n", envToken, resp.Token)
	return b.String()
}
