package cli

import (
	"github.com/salescrm/crm-api/internal/cli/formatter"
	"github.com/salescrm/crm-api/internal/client"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/spf13/cobra"
)

// boardColumn is the structured output of one stage of the board
type boardColumn struct {
	Stage         domain.OpportunityStage `json:"stage"`
	Label         string                  `json:"label"`
	Count         int                     `json:"count"`
	Total         float64                 `json:"total"`
	Opportunities []domain.OpportunityDTO `json:"opportunities"`
}

func newBoardCmd(app *App, opts *options) *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the pipeline as a Kanban board",
		Long: "Show the pipeline as a Kanban board. On a terminal the board is interactive;\n" +
			"otherwise, or with -o json|yaml, it is printed once.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filters.filters()
			if err != nil {
				return err
			}
			format, err := opts.format()
			if err != nil {
				return err
			}
			store, err := newStore(app, opts)
			if err != nil {
				return err
			}

			interactive := app.IsInteractive != nil && app.IsInteractive()
			if !interactive || format != formatter.FormatTable {
				if err := store.Fetch(cmd.Context(), f); err != nil {
					return err
				}
				return write(cmd, opts, boardColumns(store), func() string {
					return formatter.BoardSummary(store.GroupedByStage(), store.TotalsByStage())
				})
			}

			// Coalesce notifications: one pending signal is enough to re-render
			changes := make(chan struct{}, 1)
			unsubscribe := store.Subscribe(func(client.State) {
				select {
				case changes <- struct{}{}:
				default:
				}
			})
			defer unsubscribe()

			run := app.RunBoard
			if run == nil {
				run = runProgram
			}
			return run(cmd.Context(), newBoardModel(cmd.Context(), store, f, changes))
		},
	}

	filters.register(cmd)
	return cmd
}

func boardColumns(store *client.OpportunityStore) []boardColumn {
	grouped := store.GroupedByStage()
	totals := store.TotalsByStage()

	out := make([]boardColumn, 0, len(grouped))
	for _, stage := range domain.AllStages() {
		out = append(out, boardColumn{
			Stage:         stage,
			Label:         stage.Label(),
			Count:         len(grouped[stage]),
			Total:         totals[stage],
			Opportunities: grouped[stage],
		})
	}
	return out
}
