package editor

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/dataprism-demo/internal/app"
	"github.com/joacominatel/dataprism-demo/internal/tui/theme"
)

type suggestion int

const (
	suggestKeyword suggestion = iota
	suggestTable
	suggestColumn
)

// keywords offered when no table or column position applies. The first
// three lead the statements the demo engine dispatches on.
var keywords = []string{
	"SHOW TABLES", "DESCRIBE", "SELECT", "FROM", "WHERE", "GROUP BY",
	"ORDER BY", "HAVING", "LIMIT", "JOIN", "ON", "AND", "OR", "AS",
	"COUNT", "SUM", "AVG", "MIN", "MAX", "DISTINCT", "ASC", "DESC",
}

// tablePositions are the words after which a table name is expected.
var tablePositions = map[string]bool{
	"FROM": true, "JOIN": true, "INTO": true, "UPDATE": true,
	"TABLE": true, "DESCRIBE": true,
}

// columnPositions are the words after which a column name is expected.
var columnPositions = map[string]bool{
	"SELECT": true, "WHERE": true, "BY": true, "AND": true, "OR": true,
	"ON": true, "HAVING": true, "SET": true, "DISTINCT": true,
}

// menu is an open completion: the candidates replace text[start:].
type menu struct {
	start int
	items []string
	index int
}

func (mn *menu) view() string {
	if mn == nil || len(mn.items) < 2 {
		return ""
	}
	from := max(0, min(mn.index-menuWindow/2, len(mn.items)-menuWindow))
	to := min(len(mn.items), from+menuWindow)

	active := lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true)
	parts := make([]string, 0, to-from+2)
	if from > 0 {
		parts = append(parts, theme.StyleMuted.Render("…"))
	}
	for i := from; i < to; i++ {
		if i == mn.index {
			parts = append(parts, active.Render(mn.items[i]))
		} else {
			parts = append(parts, theme.StyleMuted.Render(mn.items[i]))
		}
	}
	if to < len(mn.items) {
		parts = append(parts, theme.StyleMuted.Render("…"))
	}
	return theme.StyleMuted.Render("Tab ") + strings.Join(parts, "  ")
}

// Complete opens or advances the completion menu for the word ending the
// text. It reports whether anything was completed.
func (m *Model) Complete() bool {
	text := m.input.Value()
	if m.menu != nil {
		m.menu.index = (m.menu.index + 1) % len(m.menu.items)
		m.input.SetValue(text[:m.menu.start] + m.menu.items[m.menu.index])
		return true
	}

	start, word := lastWord(text)
	items := m.candidates(text[:start], word)
	if len(items) == 0 {
		return false
	}
	m.menu = &menu{start: start, items: items}
	m.input.SetValue(text[:start] + items[0])
	if len(items) == 1 {
		m.menu = nil
	}
	return true
}

// candidates lists completions for word given the text before it.
func (m Model) candidates(before, word string) []string {
	if qual, part, ok := strings.Cut(word, "."); ok {
		t := m.lookup(qual)
		if t == nil {
			return nil
		}
		var out []string
		for _, c := range t.Columns {
			if hasPrefixFold(c.ColumnName, part) {
				out = append(out, qual+"."+c.ColumnName)
			}
		}
		return out
	}

	var pool []string
	switch position(before) {
	case suggestTable:
		for _, t := range m.tables {
			pool = append(pool, t.Name)
		}
	case suggestColumn:
		tables := m.referencedTables(before + word)
		if len(tables) == 0 {
			tables = m.tables
		}
		for _, t := range tables {
			for _, c := range t.Columns {
				if !slices.Contains(pool, c.ColumnName) {
					pool = append(pool, c.ColumnName)
				}
			}
		}
	default:
		if word == "" {
			return nil
		}
		pool = keywords
	}

	var out []string
	for _, p := range pool {
		if hasPrefixFold(p, word) && !strings.EqualFold(p, word) {
			out = append(out, p)
		}
	}
	return out
}

// position classifies the slot the next word fills from the token before it.
func position(before string) suggestion {
	trimmed := strings.TrimRight(before, " \t\r\n")
	if trimmed == "" {
		return suggestKeyword
	}
	if last := trimmed[len(trimmed)-1]; last == ',' || last == '(' {
		return suggestColumn
	}
	_, prev := lastWord(trimmed)
	prev = strings.ToUpper(prev)
	switch {
	case tablePositions[prev]:
		return suggestTable
	case columnPositions[prev]:
		return suggestColumn
	}
	return suggestKeyword
}

// referencedTables returns the catalog tables the text names after FROM,
// JOIN or DESCRIBE, in order of appearance.
func (m Model) referencedTables(text string) []app.TableNode {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r > 0x7f || !isIdent(byte(r))
	})
	var out []app.TableNode
	for i := 1; i < len(tokens); i++ {
		if !tablePositions[strings.ToUpper(tokens[i-1])] {
			continue
		}
		t := m.lookup(tokens[i])
		if t == nil || slices.ContainsFunc(out, func(n app.TableNode) bool { return n.Name == t.Name }) {
			continue
		}
		out = append(out, *t)
	}
	return out
}

// lookup finds a table by name, ignoring case.
func (m Model) lookup(name string) *app.TableNode {
	for i := range m.tables {
		if strings.EqualFold(m.tables[i].Name, name) {
			return &m.tables[i]
		}
	}
	return nil
}

// lastWord returns the identifier (dots allowed) ending text and where it starts.
func lastWord(text string) (int, string) {
	i := len(text)
	for i > 0 && (isIdent(text[i-1]) || text[i-1] == '.') {
		i--
	}
	return i, text[i:]
}

func isIdent(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
