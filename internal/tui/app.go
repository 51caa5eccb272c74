package tui

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/config"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/routing"
	"github.com/joacominatel/dataprism-demo/internal/tui/chartview"
	"github.com/joacominatel/dataprism-demo/internal/tui/editor"
	"github.com/joacominatel/dataprism-demo/internal/tui/explorer"
	"github.com/joacominatel/dataprism-demo/internal/tui/home"
	"github.com/joacominatel/dataprism-demo/internal/tui/results"
	"github.com/joacominatel/dataprism-demo/internal/tui/statusbar"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

const metricsInterval = 2 * time.Second

// Pane identifies a focusable area within a two-pane page.
type Pane int

const (
	PanePrimary Pane = iota
	PaneSecondary
)

// AppMode tracks the current UI state.
type AppMode int

const (
	ModeLoading AppMode = iota // engine warming up
	ModeMain
	ModeFailed
)

// BootFunc brings up the engine and loads the initial tables.
type BootFunc func(ctx context.Context) (*app.Service, error)

type (
	engineReadyMsg struct {
		service *app.Service
		err     error
	}
	tablesLoadedMsg struct {
		catalog *app.Catalog
		err     error
	}
	columnsLoadedMsg struct {
		table   string
		columns []engine.ColumnInfo
		err     error
	}
	queryExecutedMsg struct {
		page   routing.Route
		query  string
		result *engine.QueryResult
		err    error
	}
	metricsMsg struct {
		snapshot engine.MetricsSnapshot
		err      error
	}
	metricsTickMsg struct{}
)

// bootState is shared by every copy of the model so the engine can be
// released after the program exits, even when its ready message was dropped.
type bootState struct {
	started atomic.Bool
	done    chan struct{}
	service *app.Service
}

// Model is the top-level bubbletea model orchestrating all pages.
type Model struct {
	ctx       context.Context
	boot      BootFunc
	booting   *bootState
	service   *app.Service
	cfg       *config.Config
	spinner   spinner.Model
	home      home.Model
	explorer  explorer.Model
	preview   results.Model
	editor    editor.Model
	results   results.Model
	chart     chartview.Model
	statusbar statusbar.Model

	page       routing.Route
	activePane Pane
	mode       AppMode
	width      int
	height     int
	err        error
	showHelp   bool
}

// NewModel creates the top-level model. boot runs once from Init under ctx,
// which should be the program's context.
func NewModel(ctx context.Context, cfg *config.Config, boot BootFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorPrimary)

	page, ok := routing.Parse(cfg.Preferences.DefaultPage)
	if !ok {
		page = routing.Home
	}

	m := Model{
		ctx:       ctx,
		boot:      boot,
		booting:   &bootState{done: make(chan struct{})},
		cfg:       cfg,
		spinner:   sp,
		home:      home.New(cfg.CDN.Assets()),
		explorer:  explorer.New(),
		preview:   results.New("Preview"),
		editor:    editor.New(),
		results:   results.New("Results"),
		chart:     chartview.New(cfg.Preferences.ChartType),
		statusbar: statusbar.New(),
		mode:      ModeLoading,
	}
	m.explorer.SetLoading(true)
	m.setPage(page)
	return m
}

// Page returns the current page.
func (m Model) Page() routing.Route {
	return m.page
}

// Init starts the spinner and the engine boot.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.bootCmd())
}

func (m Model) bootCmd() tea.Cmd {
	ctx, boot, state := m.ctx, m.boot, m.booting
	return func() tea.Msg {
		if !state.started.CompareAndSwap(false, true) {
			return nil
		}
		defer close(state.done)

		svc, err := boot(ctx)
		state.service = svc
		if err == nil && ctx.Err() != nil {
			return engineReadyMsg{err: ctx.Err()}
		}
		return engineReadyMsg{service: svc, err: err}
	}
}

// Close releases the booted engine once the program has stopped. A boot
// still in flight is awaited; cancel the model's context first.
func (m Model) Close() error {
	state := m.booting
	if !state.started.Load() {
		return nil
	}
	<-state.done
	if state.service == nil {
		return nil
	}
	return state.service.Close()
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if table, ok := explorer.IsRequestColumnsMsg(msg); ok {
		return m, m.loadColumnsCmd(table)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if m.mode != ModeLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engineReadyMsg:
		if msg.err != nil {
			m.mode = ModeFailed
			m.err = msg.err
			return m, nil
		}
		m.service = msg.service
		m.mode = ModeMain
		sel := m.service.Selection()
		m.home.SetSelection(sel)
		m.statusbar.SetEngine(m.service.EngineName(), sel.Fallback)
		m.editor.SetEngine(m.service.EngineName())
		if sel.Fallback {
			m.statusbar.SetMessage("Real engine unavailable, using mock engine")
		}
		m.layout()
		return m, tea.Batch(m.loadTablesCmd(), m.metricsCmd(), metricsTick())

	case tablesLoadedMsg:
		if msg.err != nil {
			m.explorer.SetLoading(false)
			m.statusbar.SetMessage("Failed to load tables: " + msg.err.Error())
			return m, nil
		}
		names := make([]string, len(msg.catalog.Tables))
		for i, t := range msg.catalog.Tables {
			names[i] = t.Name
		}
		m.explorer.SetCatalog(msg.catalog)
		m.editor.SetCatalog(msg.catalog)
		m.home.SetTables(names)
		return m, nil

	case columnsLoadedMsg:
		if msg.err != nil {
			m.statusbar.SetMessage("Failed to load columns: " + msg.err.Error())
			return m, nil
		}
		m.explorer.SetColumns(msg.table, msg.columns)
		m.editor.SetColumns(msg.table, msg.columns)
		return m, nil

	case queryExecutedMsg:
		target := &m.results
		if msg.page == routing.DataExplorer {
			target = &m.preview
		}
		if msg.err != nil {
			target.SetError(msg.err)
		} else {
			target.SetResult(msg.query, msg.result)
		}
		m.statusbar.SetMessage("")
		m.editor.SetHistory(m.historyQueries())
		return m, m.metricsCmd()

	case metricsMsg:
		if msg.err == nil {
			m.home.SetMetrics(msg.snapshot)
		}
		return m, nil

	case metricsTickMsg:
		return m, tea.Batch(m.metricsCmd(), metricsTick())

	case explorer.QuickQueryMsg:
		m.preview.SetLoading(true)
		m.statusbar.SetMessage("Executing query...")
		return m, m.executeQueryCmd(routing.DataExplorer, msg.Query)

	case editor.ExecuteQueryMsg:
		m.results.SetLoading(true)
		m.statusbar.SetMessage("Executing query...")
		return m, m.executeQueryCmd(routing.QueryLab, msg.Query)

	case results.SetEditorQueryMsg:
		m.editor.SetQuery(msg.Query)
		m.setPage(routing.QueryLab)
		m.setFocus(PanePrimary)
		return m, nil

	case results.StatusNotifyMsg:
		m.statusbar.SetMessage(msg.Message)
		return m, nil

	case results.VisualizeMsg:
		m.chart.SetData(msg.Result.Data, msg.Columns)
		m.setPage(routing.Visualization)
		return m, nil

	case chartview.ExportedMsg:
		if msg.Err != nil {
			m.statusbar.SetMessage("Export failed: " + msg.Err.Error())
		} else {
			m.statusbar.SetMessage("Exported chart to " + msg.Path)
		}
		return m, nil
	}

	if m.mode == ModeMain {
		return m.updateComponents(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.mode != ModeMain {
		if key == "q" || key == "esc" {
			return m, tea.Quit
		}
		return m, nil
	}

	editing := m.page == routing.QueryLab && m.activePane == PanePrimary

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if key == "?" && !editing {
		m.showHelp = true
		return m, nil
	}

	switch key {
	case "f1", "f2", "f3", "f4":
		m.setPage(routing.Routes[int(key[1]-'1')])
		return m, nil
	case "ctrl+right":
		m.setPage(m.page.Next())
		return m, nil
	case "ctrl+left":
		m.setPage(m.page.Prev())
		return m, nil
	case "q":
		if !editing {
			return m, tea.Quit
		}
	case "r":
		if !editing {
			m.statusbar.SetMessage("Refreshing...")
			return m, tea.Batch(m.loadTablesCmd(), m.metricsCmd())
		}
	case "tab", "shift+tab":
		if editing && key == "tab" && m.editor.Complete() {
			return m, nil
		}
		if hasTwoPanes(m.page) {
			m.setFocus(1 - m.activePane)
			return m, nil
		}
	}

	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.page {
	case routing.DataExplorer:
		if m.activePane == PanePrimary {
			m.explorer, cmd = m.explorer.Update(msg)
		} else {
			m.preview, cmd = m.preview.Update(msg)
		}
	case routing.QueryLab:
		if m.activePane == PanePrimary {
			m.editor, cmd = m.editor.Update(msg)
		} else {
			m.results, cmd = m.results.Update(msg)
		}
	case routing.Visualization:
		m.chart, cmd = m.chart.Update(msg)
	}
	return m, cmd
}

func hasTwoPanes(r routing.Route) bool {
	return r == routing.DataExplorer || r == routing.QueryLab
}

func (m *Model) setPage(r routing.Route) {
	m.page = r
	m.statusbar.SetPage(r.Title())
	m.setFocus(PanePrimary)
}

func (m *Model) setFocus(p Pane) {
	m.activePane = p
	m.explorer.SetFocused(m.page == routing.DataExplorer && p == PanePrimary)
	m.preview.SetFocused(m.page == routing.DataExplorer && p == PaneSecondary)
	m.editor.SetFocused(m.page == routing.QueryLab && p == PanePrimary)
	m.results.SetFocused(m.page == routing.QueryLab && p == PaneSecondary)
	m.chart.SetFocused(m.page == routing.Visualization)
}

func (m Model) historyQueries() []string {
	if m.service == nil {
		return nil
	}
	h := m.service.History()
	out := make([]string, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out = append(out, h[i].Query)
	}
	return out
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	avail := m.height - 2 // tabs + status bar
	sideWidth := min(max(m.width/4, 22), 35)
	rightWidth := m.width - sideWidth - 1

	editorHeight := max(avail*40/100, 5)

	m.home.SetSize(m.width, avail)
	m.explorer.SetSize(sideWidth, avail)
	m.preview.SetSize(rightWidth, avail)
	m.editor.SetSize(m.width, editorHeight)
	m.results.SetSize(m.width, avail-editorHeight-1)
	m.chart.SetSize(m.width, avail)
	m.statusbar.SetWidth(m.width)
}

// Async commands

func (m Model) loadTablesCmd() tea.Cmd {
	service, parent := m.service, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()
		cat, err := service.LoadCatalog(ctx)
		return tablesLoadedMsg{catalog: cat, err: err}
	}
}

func (m Model) loadColumnsCmd(table string) tea.Cmd {
	service, parent := m.service, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 10*time.Second)
		defer cancel()
		columns, err := service.LoadColumns(ctx, table)
		return columnsLoadedMsg{table: table, columns: columns, err: err}
	}
}

func (m Model) executeQueryCmd(page routing.Route, query string) tea.Cmd {
	service, parent := m.service, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 30*time.Second)
		defer cancel()
		result, err := service.ExecuteQuery(ctx, query)
		return queryExecutedMsg{page: page, query: query, result: result, err: err}
	}
}

func (m Model) metricsCmd() tea.Cmd {
	service, parent := m.service, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		s, err := service.Metrics(ctx)
		return metricsMsg{snapshot: s, err: err}
	}
}

func metricsTick() tea.Cmd {
	return tea.Tick(metricsInterval, func(time.Time) tea.Msg {
		return metricsTickMsg{}
	})
}
