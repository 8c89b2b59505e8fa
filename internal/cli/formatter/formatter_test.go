package formatter_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/cli/formatter"
	"github.com/salescrm/crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    formatter.Format
		wantErr bool
	}{
		{"", formatter.FormatTable, false},
		{"table", formatter.FormatTable, false},
		{"JSON", formatter.FormatJSON, false},
		{" yaml ", formatter.FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := formatter.ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.00", formatter.Money(0))
	assert.Equal(t, "999.90", formatter.Money(999.9))
	assert.Equal(t, "1,000.00", formatter.Money(1000))
	assert.Equal(t, "1,234,567.89", formatter.Money(1234567.891))
	assert.Equal(t, "-12,500.00", formatter.Money(-12500))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", formatter.Truncate("short", 10))
	assert.Equal(t, "Negoc…", formatter.Truncate("Negociação", 6))
	assert.Equal(t, "…", formatter.Truncate("abc", 1))
	assert.Equal(t, "abc", formatter.Truncate("abc", 0))
}

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := formatter.RenderTable(
		[]string{"A", "B"},
		[][]string{{"long value", "x"}, {"v", "y"}},
	)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "A"))
	assert.Contains(t, lines[1], "──────────")
	assert.Equal(t, strings.Index(lines[2], "x"), strings.Index(lines[3], "y"))
	assert.Empty(t, formatter.RenderTable(nil, nil))
}

func TestWrite_Formats(t *testing.T) {
	payload := domain.ValueCount{Value: 150.5, Count: 2}

	var js bytes.Buffer
	require.NoError(t, formatter.Write(&js, formatter.FormatJSON, payload, nil))
	assert.JSONEq(t, `{"value":150.5,"count":2}`, js.String())

	var ym bytes.Buffer
	require.NoError(t, formatter.Write(&ym, formatter.FormatYAML, payload, nil))
	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &decoded))
	assert.Equal(t, 150.5, decoded["value"])
	assert.Equal(t, 2, decoded["count"])

	var tbl bytes.Buffer
	require.NoError(t, formatter.Write(&tbl, formatter.FormatTable, payload, func() string { return "table\n" }))
	assert.Equal(t, "table\n", tbl.String())
}

func TestWrite_YAMLUsesJSONFieldNames(t *testing.T) {
	op := domain.OpportunityDTO{ID: uuid.New(), Stage: domain.StageProposal, TotalValue: 10}

	var buf bytes.Buffer
	require.NoError(t, formatter.Write(&buf, formatter.FormatYAML, []domain.OpportunityDTO{op}, nil))
	assert.Contains(t, buf.String(), "totalValue: 10")
	assert.Contains(t, buf.String(), "stage: proposal")
}

func sampleOpportunity(stage domain.OpportunityStage, customer string, value float64) domain.OpportunityDTO {
	return domain.OpportunityDTO{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Stage:      stage,
		TotalValue: value,
		CreatedAt:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Customer:   &domain.OpportunityCustomerDTO{Name: customer},
	}
}

func TestOpportunityTable(t *testing.T) {
	assert.Contains(t, formatter.OpportunityTable(nil), "No opportunities.")

	op := sampleOpportunity(domain.StageNegotiation, "Acme", 1500)
	out := formatter.OpportunityTable([]domain.OpportunityDTO{op})
	assert.Contains(t, out, op.ID.String()[:8])
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Negociação")
	assert.Contains(t, out, "1,500.00")
	assert.Contains(t, out, "2026-03-14")
}

func TestOpportunityDetail(t *testing.T) {
	op := sampleOpportunity(domain.StageClosedWon, "Acme", 200)
	notes := "paid upfront"
	op.Notes = &notes
	closed := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	op.ClosedAt = &closed
	op.Products = []domain.OpportunityItemDTO{{
		ProductID: uuid.New(),
		Quantity:  2,
		UnitPrice: 100,
		Product:   &domain.OpportunityProductDTO{Name: "Widget"},
	}}

	out := formatter.OpportunityDetail(op)
	assert.Contains(t, out, "Venda Finalizada")
	assert.Contains(t, out, "2026-04-01 09:30")
	assert.Contains(t, out, "paid upfront")
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "200.00")
}

func TestKPITable(t *testing.T) {
	out := formatter.KPITable("", domain.DashboardKPIs{
		TotalSales:     domain.ValueCount{Value: 3000, Count: 2},
		AverageTicket:  1500,
		ConversionRate: 40,
		DropOffRate:    33.333,
	})
	assert.Contains(t, out, "Period: month")
	assert.Contains(t, out, "3,000.00")
	assert.Contains(t, out, "1,500.00")
	assert.Contains(t, out, "40.0%")
	assert.Contains(t, out, "33.3%")
}

func TestBoardSummary_StagesInPipelineOrder(t *testing.T) {
	won := sampleOpportunity(domain.StageClosedWon, "Globex", 700)
	grouped := map[domain.OpportunityStage][]domain.OpportunityDTO{
		domain.StageClosedWon: {won},
	}
	totals := map[domain.OpportunityStage]float64{domain.StageClosedWon: 700}

	out := formatter.BoardSummary(grouped, totals)

	last := -1
	for _, stage := range domain.AllStages() {
		idx := strings.Index(out, stage.Label())
		require.GreaterOrEqual(t, idx, 0, stage)
		assert.Greater(t, idx, last)
		last = idx
	}
	assert.Contains(t, out, "Venda Finalizada (1)")
	assert.Contains(t, out, "Globex")
	assert.Contains(t, out, "700.00")
	assert.Contains(t, out, "empty")
}
