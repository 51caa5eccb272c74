package results

import "github.com/joacominatel/dataprism-demo/internal/engine"

// SetEditorQueryMsg tells the app to put a query in the editor pane
type SetEditorQueryMsg struct {
	Query string
}

// StatusNotifyMsg tells the app to show a message in the status bar
type StatusNotifyMsg struct {
	Message string
}

// VisualizeMsg hands the current result to the visualization page
type VisualizeMsg struct {
	Result  *engine.QueryResult
	Columns []string
}
