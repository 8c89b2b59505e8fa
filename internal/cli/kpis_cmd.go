package cli

import (
	"fmt"
	"strings"

	"github.com/salescrm/crm-api/internal/cli/formatter"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/spf13/cobra"
)

func newKPIsCmd(app *App, opts *options) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Show the dashboard KPIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := domain.KPIPeriod(strings.ToLower(strings.TrimSpace(period)))
			if p != "" && !p.IsValid() {
				return fmt.Errorf("unknown period %q (want month, quarter or year)", period)
			}
			if err := opts.requireToken(); err != nil {
				return err
			}
			api, err := opts.client(app)
			if err != nil {
				return err
			}

			kpis, err := api.KPIs(cmd.Context(), p)
			if err != nil {
				return err
			}
			return write(cmd, opts, domain.KPIsResponse{KPIs: *kpis}, func() string {
				return formatter.KPITable(p, *kpis)
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", "month", "KPI window: month, quarter or year")
	return cmd
}
