package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/cli/formatter"
	"github.com/salescrm/crm-api/internal/client"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/spf13/cobra"
)

func newOpportunitiesCmd(app *App, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"opps", "opp"},
		Short:   "Manage pipeline opportunities",
	}

	cmd.AddCommand(
		newOpportunityListCmd(app, opts),
		newOpportunityCreateCmd(app, opts),
		newOpportunityMoveCmd(app, opts),
		newOpportunityDeleteCmd(app, opts),
	)

	return cmd
}

// filterFlags holds the listing filters shared by list and board
type filterFlags struct {
	seller   string
	customer string
	stage    string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.seller, "seller", "", "only opportunities of this seller ID")
	cmd.Flags().StringVar(&f.customer, "customer", "", "only opportunities of this customer ID")
	cmd.Flags().StringVar(&f.stage, "stage", "", "only opportunities in this stage")
}

func (f *filterFlags) filters() (client.Filters, error) {
	var out client.Filters
	if f.seller != "" {
		id, err := uuid.Parse(f.seller)
		if err != nil {
			return out, fmt.Errorf("invalid --seller %q", f.seller)
		}
		out.SellerID = &id
	}
	if f.customer != "" {
		id, err := uuid.Parse(f.customer)
		if err != nil {
			return out, fmt.Errorf("invalid --customer %q", f.customer)
		}
		out.CustomerID = &id
	}
	if f.stage != "" {
		stage, err := parseStage(f.stage)
		if err != nil {
			return out, err
		}
		out.Stage = stage
	}
	return out, nil
}

func newOpportunityListCmd(app *App, opts *options) *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List opportunities, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filters.filters()
			if err != nil {
				return err
			}
			store, err := newStore(app, opts)
			if err != nil {
				return err
			}
			if err := store.Fetch(cmd.Context(), f); err != nil {
				return err
			}

			ops := store.Opportunities()
			return write(cmd, opts, ops, func() string { return formatter.OpportunityTable(ops) })
		},
	}

	filters.register(cmd)
	return cmd
}

func newOpportunityCreateCmd(app *App, opts *options) *cobra.Command {
	var (
		customer, seller, stage, notes string
		products                       []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an opportunity",
		Example: "  crmctl opportunities create --customer 6c1e... \\\n" +
			"    --product 9f2a...:2:150 --product 41bd...:1:99.90 --stage proposal",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildCreateRequest(customer, seller, stage, notes, products)
			if err != nil {
				return err
			}
			store, err := newStore(app, opts)
			if err != nil {
				return err
			}

			created, err := store.Create(cmd.Context(), *req)
			if err != nil {
				return err
			}
			return write(cmd, opts, created, func() string {
				return formatter.StyleGreen.Render("Created") + "\n" + formatter.OpportunityDetail(*created)
			})
		},
	}

	cmd.Flags().StringVar(&customer, "customer", "", "customer ID (required)")
	cmd.Flags().StringVar(&seller, "seller", "", "seller ID")
	cmd.Flags().StringVar(&stage, "stage", "", "initial stage (default first_contact)")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	cmd.Flags().StringArrayVar(&products, "product", nil, "product line as PRODUCT_ID:QUANTITY:UNIT_PRICE (repeatable)")

	return cmd
}

func buildCreateRequest(customer, seller, stage, notes string, products []string) (*domain.CreateOpportunityRequest, error) {
	if customer == "" {
		return nil, errors.New("--customer is required")
	}
	customerID, err := uuid.Parse(customer)
	if err != nil {
		return nil, fmt.Errorf("invalid --customer %q", customer)
	}

	req := &domain.CreateOpportunityRequest{CustomerID: customerID}
	if seller != "" {
		id, err := uuid.Parse(seller)
		if err != nil {
			return nil, fmt.Errorf("invalid --seller %q", seller)
		}
		req.SellerID = &id
	}
	if stage != "" {
		s, err := parseStage(stage)
		if err != nil {
			return nil, err
		}
		req.Stage = &s
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		req.Notes = &notes
	}
	for _, raw := range products {
		item, err := parseProductLine(raw)
		if err != nil {
			return nil, err
		}
		req.Products = append(req.Products, item)
	}
	return req, nil
}

// parseProductLine reads PRODUCT_ID:QUANTITY:UNIT_PRICE; quantity may be left empty for 1
func parseProductLine(raw string) (domain.OpportunityItemInput, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return domain.OpportunityItemInput{}, fmt.Errorf("invalid --product %q: want PRODUCT_ID:QUANTITY:UNIT_PRICE", raw)
	}

	productID, err := uuid.Parse(strings.TrimSpace(parts[0]))
	if err != nil {
		return domain.OpportunityItemInput{}, fmt.Errorf("invalid product ID in %q", raw)
	}
	item := domain.OpportunityItemInput{ProductID: productID}

	if q := strings.TrimSpace(parts[1]); q != "" {
		quantity, err := strconv.Atoi(q)
		if err != nil || quantity < 1 {
			return domain.OpportunityItemInput{}, fmt.Errorf("invalid quantity in %q: must be a positive integer", raw)
		}
		item.Quantity = &quantity
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || price < 0 {
		return domain.OpportunityItemInput{}, fmt.Errorf("invalid unit price in %q", raw)
	}
	item.UnitPrice = &price

	return item, nil
}

func newOpportunityMoveCmd(app *App, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "move ID STAGE",
		Short: "Move an opportunity to another stage",
		Long: "Move an opportunity to another stage. ID may be a unique prefix.\n\nStages: " +
			stageNames(),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := parseStage(args[1])
			if err != nil {
				return err
			}
			store, id, err := loadAndResolve(cmd.Context(), app, opts, args[0])
			if err != nil {
				return err
			}

			moved, err := store.Move(cmd.Context(), id, stage)
			if err != nil {
				return err
			}
			return write(cmd, opts, moved, func() string {
				return fmt.Sprintf("Moved %s to %s\n",
					formatter.ShortID(moved.ID.String()),
					formatter.StageStyle(moved.Stage).Render(moved.Stage.Label()))
			})
		},
	}
}

func newOpportunityDeleteCmd(app *App, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete an opportunity with its lines and history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, id, err := loadAndResolve(cmd.Context(), app, opts, args[0])
			if err != nil {
				return err
			}
			if err := store.Remove(cmd.Context(), id); err != nil {
				return err
			}

			result := domain.SuccessResponse{Success: true}
			return write(cmd, opts, result, func() string {
				return fmt.Sprintf("Deleted %s\n", formatter.ShortID(id.String()))
			})
		},
	}
}

func newStore(app *App, opts *options) (*client.OpportunityStore, error) {
	if err := opts.requireToken(); err != nil {
		return nil, err
	}
	api, err := opts.client(app)
	if err != nil {
		return nil, err
	}
	return client.NewOpportunityStore(api, app.Logger), nil
}

// loadAndResolve fetches the pipeline and resolves input to one opportunity ID
func loadAndResolve(ctx context.Context, app *App, opts *options, input string) (*client.OpportunityStore, uuid.UUID, error) {
	store, err := newStore(app, opts)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if err := store.Fetch(ctx, client.Filters{}); err != nil {
		return nil, uuid.Nil, err
	}
	id, err := resolveOpportunityID(store.Opportunities(), input)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return store, id, nil
}

// resolveOpportunityID matches a full ID or a unique case-insensitive prefix
func resolveOpportunityID(ops []domain.OpportunityDTO, input string) (uuid.UUID, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return uuid.Nil, errors.New("opportunity ID is required")
	}

	if id, err := uuid.Parse(input); err == nil {
		for _, op := range ops {
			if op.ID == id {
				return id, nil
			}
		}
		return uuid.Nil, fmt.Errorf("opportunity not found: %q", input)
	}

	var matches []uuid.UUID
	for _, op := range ops {
		if strings.HasPrefix(op.ID.String(), input) {
			matches = append(matches, op.ID)
		}
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("opportunity not found: %q", input)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("opportunity ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}

func parseStage(raw string) (domain.OpportunityStage, error) {
	stage, ok := domain.ParseStage(strings.ToLower(strings.TrimSpace(raw)))
	if !ok {
		return "", fmt.Errorf("unknown stage %q (want one of %s)", raw, stageNames())
	}
	return stage, nil
}

func stageNames() string {
	stages := domain.AllStages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
