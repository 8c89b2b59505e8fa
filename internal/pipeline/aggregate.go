// Package pipeline computes dashboard metrics over lists of opportunities.
// Every function is pure: it never mutates its input and returns zero-valued
// results for empty input.
package pipeline

import (
	"sort"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
)

// FilterByStages returns the opportunities whose stage is in stages, preserving order
func FilterByStages(ops []domain.OpportunityDTO, stages ...domain.OpportunityStage) []domain.OpportunityDTO {
	wanted := make(map[domain.OpportunityStage]struct{}, len(stages))
	for _, s := range stages {
		wanted[s] = struct{}{}
	}

	out := make([]domain.OpportunityDTO, 0)
	for _, op := range ops {
		if _, ok := wanted[op.Stage]; ok {
			out = append(out, op)
		}
	}
	return out
}

// Sum returns the total value and count of ops
func Sum(ops []domain.OpportunityDTO) domain.ValueCount {
	var vc domain.ValueCount
	for _, op := range ops {
		vc.Value += op.TotalValue
		vc.Count++
	}
	return vc
}

// TotalSales sums the value of won opportunities
func TotalSales(ops []domain.OpportunityDTO) float64 {
	return Sum(FilterByStages(ops, domain.StageClosedWon)).Value
}

// AverageTicket is the mean value of a won opportunity, 0 when nothing was won
func AverageTicket(ops []domain.OpportunityDTO) float64 {
	won := Sum(FilterByStages(ops, domain.StageClosedWon))
	if won.Count == 0 {
		return 0
	}
	return won.Value / float64(won.Count)
}

// ConversionRate returns won/total as a percentage, 0 when total is 0
func ConversionRate(won, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(won) / float64(total) * 100
}

// DropOffRate returns lost/closedTotal as a percentage, 0 when closedTotal is 0
func DropOffRate(lost, closedTotal int) float64 {
	if closedTotal == 0 {
		return 0
	}
	return float64(lost) / float64(closedTotal) * 100
}

// ComputeKPIs builds the dashboard cards from ops
func ComputeKPIs(ops []domain.OpportunityDTO) domain.DashboardKPIs {
	won := Sum(FilterByStages(ops, domain.StageClosedWon))
	lost := Sum(FilterByStages(ops, domain.StageClosedLost))
	open := Sum(FilterByStages(ops, domain.InNegotiationStages()...))

	kpis := domain.DashboardKPIs{
		TotalSales:     won,
		InNegotiation:  open,
		Lost:           lost,
		ConversionRate: ConversionRate(won.Count, len(ops)),
		DropOffRate:    DropOffRate(lost.Count, won.Count+lost.Count),
	}
	if won.Count > 0 {
		kpis.AverageTicket = won.Value / float64(won.Count)
	}
	return kpis
}

// ValueByStage returns one entry per stage in canonical order, including empty stages
func ValueByStage(ops []domain.OpportunityDTO) []domain.StageValue {
	totals := make(map[domain.OpportunityStage]domain.ValueCount, 6)
	for _, op := range ops {
		vc := totals[op.Stage]
		vc.Value += op.TotalValue
		vc.Count++
		totals[op.Stage] = vc
	}

	stages := domain.AllStages()
	out := make([]domain.StageValue, len(stages))
	for i, s := range stages {
		out[i] = domain.StageValue{
			Stage: s,
			Label: s.Label(),
			Value: totals[s].Value,
			Count: totals[s].Count,
		}
	}
	return out
}

// TotalsByStage maps every stage to the summed value of its opportunities.
// The map always has six keys.
func TotalsByStage(ops []domain.OpportunityDTO) map[domain.OpportunityStage]float64 {
	out := make(map[domain.OpportunityStage]float64, 6)
	for _, sv := range ValueByStage(ops) {
		out[sv.Stage] = sv.Value
	}
	return out
}

// GroupByStage buckets ops by stage. Every stage key is present with a non-nil slice.
func GroupByStage(ops []domain.OpportunityDTO) map[domain.OpportunityStage][]domain.OpportunityDTO {
	out := make(map[domain.OpportunityStage][]domain.OpportunityDTO, 6)
	for _, s := range domain.AllStages() {
		out[s] = make([]domain.OpportunityDTO, 0)
	}
	for _, op := range ops {
		if _, ok := out[op.Stage]; ok {
			out[op.Stage] = append(out[op.Stage], op)
		}
	}
	return out
}

// SellerGrouping is the result of GroupBySeller
type SellerGrouping struct {
	Sellers []domain.SellerSales
	// Unattributed holds won opportunities with no seller
	Unattributed domain.ValueCount
}

// GroupBySeller aggregates won opportunities per seller, highest value first
func GroupBySeller(ops []domain.OpportunityDTO) SellerGrouping {
	var result SellerGrouping
	index := make(map[uuid.UUID]int)

	for _, op := range FilterByStages(ops, domain.StageClosedWon) {
		sellerID, name, ok := sellerOf(op)
		if !ok {
			result.Unattributed.Value += op.TotalValue
			result.Unattributed.Count++
			continue
		}
		i, seen := index[sellerID]
		if !seen {
			i = len(result.Sellers)
			index[sellerID] = i
			result.Sellers = append(result.Sellers, domain.SellerSales{SellerID: sellerID, SellerName: name})
		}
		result.Sellers[i].Value += op.TotalValue
		result.Sellers[i].Count++
	}

	if result.Sellers == nil {
		result.Sellers = []domain.SellerSales{}
	}
	sort.SliceStable(result.Sellers, func(a, b int) bool {
		return result.Sellers[a].Value > result.Sellers[b].Value
	})
	return result
}

func sellerOf(op domain.OpportunityDTO) (uuid.UUID, string, bool) {
	if op.Seller != nil {
		return op.Seller.ID, op.Seller.Name, true
	}
	if op.SellerID != nil {
		return *op.SellerID, "", true
	}
	return uuid.Nil, "", false
}

// GroupByProduct aggregates the line items of won opportunities per product, highest value first
func GroupByProduct(ops []domain.OpportunityDTO) []domain.ProductSales {
	out := make([]domain.ProductSales, 0)
	index := make(map[uuid.UUID]int)

	for _, op := range FilterByStages(ops, domain.StageClosedWon) {
		for _, item := range op.Products {
			productID := item.ProductID
			name := ""
			if item.Product != nil {
				productID = item.Product.ID
				name = item.Product.Name
			}
			if productID == uuid.Nil {
				continue
			}
			i, seen := index[productID]
			if !seen {
				i = len(out)
				index[productID] = i
				out = append(out, domain.ProductSales{ProductID: productID, ProductName: name})
			}
			out[i].Value += item.UnitPrice * float64(item.Quantity)
			out[i].Quantity += item.Quantity
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Value > out[b].Value
	})
	return out
}
