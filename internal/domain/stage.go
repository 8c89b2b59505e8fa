package domain

// OpportunityStage represents a step of the sales pipeline
type OpportunityStage string

const (
	StageFirstContact    OpportunityStage = "first_contact"
	StageProposal        OpportunityStage = "proposal"
	StageNegotiation     OpportunityStage = "negotiation"
	StageAwaitingPayment OpportunityStage = "awaiting_payment"
	StageClosedWon       OpportunityStage = "closed_won"
	StageClosedLost      OpportunityStage = "closed_lost"
)

// stageOrder is the canonical left-to-right order of the pipeline board
var stageOrder = []OpportunityStage{
	StageFirstContact,
	StageProposal,
	StageNegotiation,
	StageAwaitingPayment,
	StageClosedWon,
	StageClosedLost,
}

var stageLabels = map[OpportunityStage]string{
	StageFirstContact:    "1º Contato",
	StageProposal:        "Elaboração de Proposta",
	StageNegotiation:     "Negociação",
	StageAwaitingPayment: "Aguardando Pagamento",
	StageClosedWon:       "Venda Finalizada",
	StageClosedLost:      "Desistiu",
}

// AllStages returns every pipeline stage in canonical order.
// The returned slice is a copy and may be modified by the caller.
func AllStages() []OpportunityStage {
	out := make([]OpportunityStage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// InNegotiationStages returns the non-terminal stages in canonical order
func InNegotiationStages() []OpportunityStage {
	out := make([]OpportunityStage, 0, len(stageOrder)-2)
	for _, s := range stageOrder {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// ParseStage converts a raw string into a stage, reporting whether it is known
func ParseStage(s string) (OpportunityStage, bool) {
	stage := OpportunityStage(s)
	return stage, stage.IsValid()
}

// IsValid reports whether the stage is one of the six pipeline stages
func (s OpportunityStage) IsValid() bool {
	_, ok := stageLabels[s]
	return ok
}

// IsTerminal reports whether the stage closes the opportunity (won or lost)
func (s OpportunityStage) IsTerminal() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Label returns the human readable name shown on the board
func (s OpportunityStage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// Index returns the position of the stage in the pipeline, or -1 if unknown
func (s OpportunityStage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage, or the stage itself when already last
func (s OpportunityStage) Next() OpportunityStage {
	i := s.Index()
	if i < 0 || i >= len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// Previous returns the preceding stage, or the stage itself when already first
func (s OpportunityStage) Previous() OpportunityStage {
	i := s.Index()
	if i <= 0 {
		return s
	}
	return stageOrder[i-1]
}
