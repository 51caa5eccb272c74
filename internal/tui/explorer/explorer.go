package explorer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeEngine NodeKind = iota
	NodeTable
	NodeColumn
)

// TreeNode represents a single node in the table tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Children []*TreeNode
	Expanded bool
	Loaded   bool // whether children have been fetched

	Table    string // parent table name (for columns)
	DataType string // column data type
	Nullable string
}

// flatItem is a visible item in the flattened tree view.
type flatItem struct {
	node  *TreeNode
	depth int
}

// QuickQueryMsg asks the app to run a generated query against the selected table.
type QuickQueryMsg struct {
	Query string
}

// requestColumnsMsg is sent when a table is expanded and needs column data.
type requestColumnsMsg struct {
	Table string
}

// IsRequestColumnsMsg reports whether msg asks for a table's columns.
func IsRequestColumnsMsg(msg tea.Msg) (table string, ok bool) {
	if m, ok := msg.(requestColumnsMsg); ok {
		return m.Table, true
	}
	return "", false
}

// Model is the explorer (table tree) component.
type Model struct {
	tree    *TreeNode
	items   []flatItem
	cursor  int
	width   int
	height  int
	focused bool
	loading bool
}

// New creates a new explorer model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetCatalog populates the explorer. Columns already present in the catalog
// are attached; tables without them load lazily on expand.
func (m *Model) SetCatalog(cat *app.Catalog) {
	root := &TreeNode{
		Kind:     NodeEngine,
		Name:     cat.Engine,
		Expanded: true,
		Loaded:   true,
	}
	for _, t := range cat.Tables {
		node := &TreeNode{Kind: NodeTable, Name: t.Name}
		if t.Columns != nil {
			setColumns(node, t.Columns)
		}
		root.Children = append(root.Children, node)
	}

	m.tree = root
	m.flatten()
	m.loading = false
}

// SetColumns attaches column nodes to a table node.
func (m *Model) SetColumns(table string, columns []engine.ColumnInfo) {
	if node := m.findTable(table); node != nil {
		setColumns(node, columns)
		m.flatten()
	}
}

func setColumns(node *TreeNode, columns []engine.ColumnInfo) {
	node.Children = nil
	for _, col := range columns {
		node.Children = append(node.Children, &TreeNode{
			Kind:     NodeColumn,
			Name:     col.ColumnName,
			Table:    node.Name,
			DataType: col.DataType,
			Nullable: col.IsNullable,
		})
	}
	node.Loaded = true
}

func (m *Model) findTable(table string) *TreeNode {
	if m.tree == nil {
		return nil
	}
	for _, t := range m.tree.Children {
		if t.Name == table {
			return t
		}
	}
	return nil
}

// TableCount returns the number of tables in the tree.
func (m Model) TableCount() int {
	if m.tree == nil {
		return 0
	}
	return len(m.tree.Children)
}

// SelectedTable returns the table under the cursor, or the parent table of a column.
func (m Model) SelectedTable() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return "", false
	}
	node := m.items[m.cursor].node
	switch node.Kind {
	case NodeTable:
		return node.Name, true
	case NodeColumn:
		return node.Table, true
	}
	return "", false
}

func (m *Model) flatten() {
	m.items = nil
	if m.tree != nil {
		m.flattenNode(m.tree, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child, depth+1)
		}
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the explorer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter", "right", "l":
			return m, m.toggleExpand()
		case "left", "h":
			m.collapse()
		case "s":
			return m, m.quickQuery("SELECT * FROM %s")
		case "d":
			return m, m.quickQuery("DESCRIBE %s")
		}
	}

	return m, nil
}

func (m *Model) quickQuery(format string) tea.Cmd {
	table, ok := m.SelectedTable()
	if !ok {
		return nil
	}
	query := fmt.Sprintf(format, table)
	return func() tea.Msg {
		return QuickQueryMsg{Query: query}
	}
}

func (m *Model) toggleExpand() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	node := m.items[m.cursor].node

	if node.Kind == NodeColumn {
		return nil
	}

	if node.Expanded {
		node.Expanded = false
		m.flatten()
		return nil
	}

	node.Expanded = true
	m.flatten()

	if node.Kind == NodeTable && !node.Loaded {
		table := node.Name
		return func() tea.Msg {
			return requestColumnsMsg{Table: table}
		}
	}
	return nil
}

func (m *Model) collapse() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	node := m.items[m.cursor].node
	if node.Expanded {
		node.Expanded = false
		m.flatten()
	}
}

// View renders the explorer.
func (m Model) View() string {
	title := theme.StylePaneTitle.Render("Tables")

	if m.loading {
		return title + "\n" + theme.StyleMuted.Render("  Loading...")
	}
	if m.tree == nil {
		return title + "\n" + theme.StyleMuted.Render("  Engine not ready")
	}
	if len(m.tree.Children) == 0 {
		return title + "\n" + theme.StyleMuted.Render("  No tables loaded")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	visibleHeight := max(1, m.height-2)
	scrollOffset := 0
	if m.cursor >= visibleHeight {
		scrollOffset = m.cursor - visibleHeight + 1
	}

	for i := scrollOffset; i < len(m.items) && i < scrollOffset+visibleHeight; i++ {
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
		if i < scrollOffset+visibleHeight-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	icon := "  "
	if node.Kind != NodeColumn {
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
	}

	name := node.Name
	if node.Kind == NodeColumn && node.DataType != "" {
		name = node.Name + " " + theme.StyleMuted.Render(node.DataType)
	}

	line := indent + icon + name
	if m.width > 4 && lipgloss.Width(line) > m.width-2 {
		runes := []rune(indent + icon + node.Name)
		if len(runes) > m.width-4 {
			runes = runes[:m.width-4]
		}
		line = string(runes) + ".."
	}

	if selected {
		return theme.StyleSelected.Render(line)
	}
	return line
}
