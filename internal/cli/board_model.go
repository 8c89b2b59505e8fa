package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/cli/formatter"
	"github.com/salescrm/crm-api/internal/client"
	"github.com/salescrm/crm-api/internal/domain"
)

const (
	minColumnWidth = 18
	cardHeight     = 3
)

type boardKeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	Advance key.Binding
	Back    key.Binding
	Won     key.Binding
	Lost    key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultBoardKeys() boardKeyMap {
	return boardKeyMap{
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Advance: key.NewBinding(key.WithKeys(">", "shift+right", "L"), key.WithHelp(">", "next stage")),
		Back:    key.NewBinding(key.WithKeys("<", "shift+left", "H"), key.WithHelp("<", "prev stage")),
		Won:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "mark won")),
		Lost:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "mark lost")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k boardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Advance, k.Back, k.Help, k.Quit}
}

func (k boardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Advance, k.Back, k.Won, k.Lost},
		{k.Refresh, k.Help, k.Quit},
	}
}

// storeChangedMsg signals that the store notified a state change
type storeChangedMsg struct{}

// opDoneMsg reports the end of a fetch or move started by the board
type opDoneMsg struct {
	done string
	err  error
}

// boardModel is the interactive Kanban board. The store is the source of truth;
// the model only keeps the cursor and the status line.
type boardModel struct {
	ctx     context.Context
	store   *client.OpportunityStore
	filters client.Filters
	changes <-chan struct{}

	keys    boardKeyMap
	help    help.Model
	spinner spinner.Model

	col, row      int
	follow        uuid.UUID
	width, height int
	status        string
	statusErr     bool
	quitting      bool
}

func newBoardModel(ctx context.Context, store *client.OpportunityStore, filters client.Filters, changes <-chan struct{}) boardModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = formatter.StyleYellow

	return boardModel{
		ctx:     ctx,
		store:   store,
		filters: filters,
		changes: changes,
		keys:    defaultBoardKeys(),
		help:    help.New(),
		spinner: sp,
	}
}

func (m boardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), waitForChange(m.changes))
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func (m boardModel) fetch() tea.Cmd {
	store, ctx, filters := m.store, m.ctx, m.filters
	return func() tea.Msg {
		return opDoneMsg{err: store.Fetch(ctx, filters)}
	}
}

func (m boardModel) move(id uuid.UUID, stage domain.OpportunityStage) tea.Cmd {
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		if _, err := store.Move(ctx, id, stage); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{done: fmt.Sprintf("Moved %s to %s", formatter.ShortID(id.String()), stage.Label())}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case storeChangedMsg:
		m.clamp()
		return m, waitForChange(m.changes)

	case opDoneMsg:
		if msg.err != nil {
			m.status, m.statusErr = client.ErrorMessage(msg.err), true
		} else {
			m.status, m.statusErr = msg.done, false
		}
		m.clamp()
		m.follow = uuid.Nil
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m boardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	stages := domain.AllStages()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}
		m.clamp()

	case key.Matches(msg, m.keys.Right):
		if m.col < len(stages)-1 {
			m.col++
		}
		m.clamp()

	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}

	case key.Matches(msg, m.keys.Down):
		m.row++
		m.clamp()

	case key.Matches(msg, m.keys.Refresh):
		m.status, m.statusErr = "", false
		return m, m.fetch()

	case key.Matches(msg, m.keys.Advance):
		return m.moveSelected(func(s domain.OpportunityStage) domain.OpportunityStage { return s.Next() })

	case key.Matches(msg, m.keys.Back):
		return m.moveSelected(func(s domain.OpportunityStage) domain.OpportunityStage { return s.Previous() })

	case key.Matches(msg, m.keys.Won):
		return m.moveSelected(func(domain.OpportunityStage) domain.OpportunityStage { return domain.StageClosedWon })

	case key.Matches(msg, m.keys.Lost):
		return m.moveSelected(func(domain.OpportunityStage) domain.OpportunityStage { return domain.StageClosedLost })
	}
	return m, nil
}

// moveSelected moves the card under the cursor and keeps the cursor on it
func (m boardModel) moveSelected(target func(domain.OpportunityStage) domain.OpportunityStage) (tea.Model, tea.Cmd) {
	op, ok := m.selected()
	if !ok {
		return m, nil
	}
	stage := target(op.Stage)
	if stage == op.Stage {
		return m, nil
	}
	m.follow = op.ID
	m.status, m.statusErr = "", false
	return m, m.move(op.ID, stage)
}

func (m boardModel) selected() (domain.OpportunityDTO, bool) {
	cards := m.store.GroupedByStage()[domain.AllStages()[m.col]]
	if m.row < 0 || m.row >= len(cards) {
		return domain.OpportunityDTO{}, false
	}
	return cards[m.row], true
}

// clamp keeps the cursor inside the current column, jumping to the followed card when set
func (m *boardModel) clamp() {
	grouped := m.store.GroupedByStage()
	stages := domain.AllStages()

	if m.follow != uuid.Nil {
		for c, stage := range stages {
			for r, op := range grouped[stage] {
				if op.ID == m.follow {
					m.col, m.row = c, r
					return
				}
			}
		}
	}

	n := len(grouped[stages[m.col]])
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m boardModel) View() string {
	if m.quitting {
		return ""
	}

	stages := domain.AllStages()
	grouped := m.store.GroupedByStage()
	totals := m.store.TotalsByStage()

	colWidth := minColumnWidth
	if w := m.width/len(stages) - 1; w > colWidth {
		colWidth = w
	}
	maxCards := 8
	if m.height > 0 {
		if n := (m.height - 8) / cardHeight; n > 0 {
			maxCards = n
		}
	}

	columns := make([]string, len(stages))
	for c, stage := range stages {
		columns[c] = m.renderColumn(stage, grouped[stage], totals[stage], c == m.col, colWidth, maxCards)
	}

	var b strings.Builder
	b.WriteString(formatter.StyleHeader.Render("Sales pipeline"))
	if m.store.Loading() {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, columns...))
	b.WriteString("\n\n")

	switch {
	case m.status != "" && m.statusErr:
		b.WriteString(formatter.StyleRed.Render("✗ " + m.status))
	case m.status != "":
		b.WriteString(formatter.StyleGreen.Render("✓ " + m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m boardModel) renderColumn(stage domain.OpportunityStage, cards []domain.OpportunityDTO, total float64, active bool, width, maxCards int) string {
	inner := width - 2

	header := formatter.StageStyle(stage).Bold(true).
		Render(formatter.Truncate(fmt.Sprintf("%s (%d)", stage.Label(), len(cards)), inner))
	lines := []string{header, formatter.StyleDim.Render(formatter.Money(total)), ""}

	// scroll so the cursor stays visible
	start := 0
	if active && m.row >= maxCards {
		start = m.row - maxCards + 1
	}
	for i := start; i < len(cards) && i < start+maxCards; i++ {
		op := cards[i]
		card := formatter.Truncate(customerName(op), inner-3) + "\n" + formatter.Money(op.TotalValue)
		style := lipgloss.NewStyle().Width(inner - 2).PaddingLeft(1)
		if active && i == m.row {
			style = style.Reverse(true)
		}
		lines = append(lines, style.Render(card))
	}
	if hidden := len(cards) - start - maxCards; hidden > 0 {
		lines = append(lines, formatter.StyleDim.Render(fmt.Sprintf("+%d more", hidden)))
	}

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(formatter.ColorDim).
		Width(inner)
	if active {
		border = border.BorderForeground(formatter.ColorHeader)
	}
	return border.Render(strings.Join(lines, "\n"))
}

func customerName(op domain.OpportunityDTO) string {
	if op.Customer != nil && op.Customer.Name != "" {
		return op.Customer.Name
	}
	return formatter.ShortID(op.CustomerID.String())
}
