package formatter

import (
	"fmt"
	"strings"

	"github.com/salescrm/crm-api/internal/domain"
)

// OpportunityTable renders opportunities one per row
func OpportunityTable(ops []domain.OpportunityDTO) string {
	if len(ops) == 0 {
		return StyleDim.Render("No opportunities.") + "\n"
	}
	headers := []string{"ID", "CUSTOMER", "SELLER", "STAGE", "VALUE", "CREATED"}
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, []string{
			ShortID(op.ID.String()),
			Truncate(customerName(op), 28),
			Truncate(sellerName(op), 20),
			StageStyle(op.Stage).Render(op.Stage.Label()),
			Money(op.TotalValue),
			op.CreatedAt.Format("2006-01-02"),
		})
	}
	return RenderTable(headers, rows)
}

// OpportunityDetail renders a single opportunity with its product lines
func OpportunityDetail(op domain.OpportunityDTO) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", StyleBold.Render("Opportunity"), op.ID)
	fmt.Fprintf(&b, "  Customer: %s\n", customerName(op))
	fmt.Fprintf(&b, "  Seller:   %s\n", sellerName(op))
	fmt.Fprintf(&b, "  Stage:    %s\n", StageStyle(op.Stage).Render(op.Stage.Label()))
	fmt.Fprintf(&b, "  Total:    %s\n", Money(op.TotalValue))
	if op.ClosedAt != nil {
		fmt.Fprintf(&b, "  Closed:   %s\n", op.ClosedAt.Format("2006-01-02 15:04"))
	}
	if op.Notes != nil && *op.Notes != "" {
		fmt.Fprintf(&b, "  Notes:    %s\n", *op.Notes)
	}
	if len(op.Products) > 0 {
		rows := make([][]string, 0, len(op.Products))
		for _, item := range op.Products {
			name := ShortID(item.ProductID.String())
			if item.Product != nil {
				name = item.Product.Name
			}
			rows = append(rows, []string{
				name,
				fmt.Sprintf("%d", item.Quantity),
				Money(item.UnitPrice),
				Money(float64(item.Quantity) * item.UnitPrice),
			})
		}
		b.WriteString("\n")
		b.WriteString(RenderTable([]string{"PRODUCT", "QTY", "UNIT", "SUBTOTAL"}, rows))
	}
	return b.String()
}

// KPITable renders the dashboard cards
func KPITable(period domain.KPIPeriod, kpis domain.DashboardKPIs) string {
	if period == "" {
		period = domain.PeriodMonth
	}
	rows := [][]string{
		{"Total sales", Money(kpis.TotalSales.Value), fmt.Sprintf("%d", kpis.TotalSales.Count)},
		{"Average ticket", Money(kpis.AverageTicket), ""},
		{"In negotiation", Money(kpis.InNegotiation.Value), fmt.Sprintf("%d", kpis.InNegotiation.Count)},
		{"Lost", Money(kpis.Lost.Value), fmt.Sprintf("%d", kpis.Lost.Count)},
		{"Conversion rate", Percent(kpis.ConversionRate), ""},
		{"Drop-off rate", Percent(kpis.DropOffRate), ""},
	}
	return StyleDim.Render("Period: "+string(period)) + "\n" +
		RenderTable([]string{"KPI", "VALUE", "COUNT"}, rows)
}

// BoardSummary is the static rendering of the pipeline board: one section per
// stage in pipeline order, with its total and cards
func BoardSummary(grouped map[domain.OpportunityStage][]domain.OpportunityDTO, totals map[domain.OpportunityStage]float64) string {
	var b strings.Builder
	for i, stage := range domain.AllStages() {
		if i > 0 {
			b.WriteString("\n")
		}
		ops := grouped[stage]
		fmt.Fprintf(&b, "%s  %s\n",
			StageStyle(stage).Bold(true).Render(fmt.Sprintf("%s (%d)", stage.Label(), len(ops))),
			StyleDim.Render(Money(totals[stage])),
		)
		if len(ops) == 0 {
			b.WriteString(StyleDim.Render("  empty") + "\n")
			continue
		}
		for _, op := range ops {
			fmt.Fprintf(&b, "  %s  %-28s %12s\n",
				StyleDim.Render(ShortID(op.ID.String())),
				Truncate(customerName(op), 28),
				Money(op.TotalValue),
			)
		}
	}
	return b.String()
}

func customerName(op domain.OpportunityDTO) string {
	if op.Customer != nil && op.Customer.Name != "" {
		return op.Customer.Name
	}
	return ShortID(op.CustomerID.String())
}

func sellerName(op domain.OpportunityDTO) string {
	if op.Seller != nil && op.Seller.Name != "" {
		return op.Seller.Name
	}
	if op.SellerID != nil {
		return ShortID(op.SellerID.String())
	}
	return "-"
}
