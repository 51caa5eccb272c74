package web

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/joacominatel/dataprism-demo/internal/chart"
	"github.com/joacominatel/dataprism-demo/internal/engine"
	"github.com/joacominatel/dataprism-demo/internal/export"
	"github.com/joacominatel/dataprism-demo/internal/routing"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const (
	previewRows  = 20
	chartWidth   = 720
	chartHeight  = 400
	historyLimit = 10
)

const pageCSS = `
body{margin:0;font-family:system-ui,sans-serif;color:#1f2937;background:#f9fafb}
.shell{display:flex;min-height:100vh}
.sidebar{width:220px;background:#111827;color:#e5e7eb;padding:1rem}
.sidebar a{display:block;color:#d1d5db;text-decoration:none;padding:.4rem .6rem;border-radius:4px}
.sidebar a.active{background:#4F46E5;color:#fff}
.main{flex:1;padding:1.5rem 2rem}
.badge{display:inline-block;padding:.1rem .5rem;border-radius:999px;background:#10B981;color:#fff;font-size:.8rem}
.badge.warn{background:#F59E0B}
.card{background:#fff;border:1px solid #e5e7eb;border-radius:6px;padding:1rem;margin-bottom:1rem}
table{border-collapse:collapse;width:100%;font-size:.9rem}
th,td{border-bottom:1px solid #e5e7eb;padding:.35rem .5rem;text-align:left}
.muted{color:#6b7280}
.error{color:#EF4444}
textarea{width:100%;font-family:monospace}
`

func renderHTML(w http.ResponseWriter, status int, node Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

// splitBase separates the mount prefix from the page path. Without a
// configured basename a path is served from the root when it names a route.
// Otherwise it must be a sub-path mount: the mount's home as a directory
// (`/my-repo/`) or a known route under one leading segment.
func (s *Server) splitBase(path string) (base, rest string, ok bool) {
	if base = s.basename(); base != "" {
		if path != base && !strings.HasPrefix(path, base+"/") {
			return "", "", false
		}
		return base, strings.TrimPrefix(path, base), true
	}

	if _, ok := routing.Parse(path); ok {
		return "", path, true
	}
	if resolved := routing.ResolveBasename(path, routing.KnownRoutes); resolved != "/" {
		if path == resolved+"/" {
			return resolved, "/", true
		}
		return "", "", false
	}

	seg, tail, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	rest = "/" + tail
	if route, ok := routing.Parse(rest); ok && route != routing.Home {
		return "/" + seg, rest, true
	}
	return "", "", false
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	base, rest, ok := s.splitBase(r.URL.Path)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	route, ok := routing.Parse(rest)
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	ctx := r.Context()
	q := r.URL.Query()
	var body Node
	switch route {
	case routing.DataExplorer:
		body = s.explorerBody(ctx, base, q.Get("table"))
	case routing.QueryLab:
		body = s.queryLabBody(ctx, q.Get("sql"))
	case routing.Visualization:
		body = s.visualizationBody(ctx, q)
	default:
		body = s.homeBody(ctx, base)
	}
	renderHTML(w, http.StatusOK, s.appPage(route.Title(), route, base, body))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	base, _, ok := s.splitBase(r.URL.Path)
	if !ok {
		base = s.basename()
	}
	renderHTML(w, http.StatusNotFound, s.appPage("Not Found", "", base,
		Div(Class("card"),
			P(Textf("Nothing lives at %s.", r.URL.Path)),
			A(Href(routing.Join(base, routing.Home)), Text("Back to Home")),
		),
	))
}

func (s *Server) appPage(title string, active routing.Route, base string, body ...Node) Node {
	nav := make([]Node, 0, len(routing.Routes))
	for _, rt := range routing.Routes {
		className := "nav-link"
		if rt == active {
			className += " active"
		}
		nav = append(nav, A(Href(routing.Join(base, rt)), Class(className), Text(rt.Title())))
	}

	sel := s.svc.Selection()
	badge := Span(Class("badge"), Text(sel.Driver))
	if sel.Fallback {
		badge = Span(Class("badge warn"), Title(sel.Reason), Text(sel.Driver+" (fallback)"))
	}

	return Doctype(HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			Meta(Name("dataprism-manifest"), Content(s.assets.Manifest)),
			TitleEl(Text(title+" | DataPrism Demo Analytics")),
			Link(Rel("icon"), Href("data:,")),
			StyleEl(Raw(pageCSS)),
		),
		Body(
			Div(Class("shell"),
				Aside(Class("sidebar"),
					Strong(Text("DataPrism")),
					P(Class("muted"), badge),
					Nav(Group(nav)),
				),
				Main(Class("main"),
					H1(Text(title)),
					Group(body),
				),
			),
		),
	))
}

func (s *Server) homeBody(ctx context.Context, base string) Node {
	sel := s.svc.Selection()
	engineInfo := []Node{P(Textf("Engine: %s", s.svc.EngineName()))}
	if sel.Fallback {
		engineInfo = append(engineInfo, P(Class("error"), Textf("Fell back to the mock engine: %s", sel.Reason)))
	}
	if sel.Manifest != nil {
		engineInfo = append(engineInfo, P(Class("muted"), Textf("CDN bundle %s", sel.Manifest.Version)))
	}

	metrics := Div(Class("card"), P(Class("muted"), Text("Metrics unavailable")))
	if m, err := s.svc.Metrics(ctx); err == nil {
		metrics = Div(Class("card"),
			H2(Text("Metrics")),
			Table(TBody(
				statRow("Queries executed", strconv.Itoa(m.QueriesExecuted)),
				statRow("Average query time", fmt.Sprintf("%.1f ms", m.AverageQueryTime)),
				statRow("Cache hit rate", fmt.Sprintf("%.0f%%", m.CacheHitRate*100)),
				statRow("Memory usage", strconv.FormatInt(m.MemoryUsage, 10)+" bytes"),
				statRow("Tables loaded", strconv.Itoa(m.TablesLoaded)),
			)),
		)
	}

	tables, _ := s.svc.AllTableNames(ctx)
	tableItems := make([]Node, 0, len(tables))
	for _, t := range tables {
		tableItems = append(tableItems, Li(A(Href(routing.Join(base, routing.DataExplorer)+"?table="+url.QueryEscape(t)), Text(t))))
	}

	return Group{
		Div(Class("card"), H2(Text("Engine")), Group(engineInfo)),
		metrics,
		Div(Class("card"),
			H2(Text("Tables")),
			If(len(tables) == 0, P(Class("muted"), Text("No tables loaded"))),
			Ul(Group(tableItems)),
		),
		Div(Class("card"),
			H2(Text("CDN assets")),
			Ul(
				Li(Text("core bundle "), Code(Text(s.assets.CoreBundle))),
				Li(Text("runtime assets "), Code(Text(s.assets.AssetsDir))),
				Li(Text("workers "), Code(Text(s.assets.WorkersDir))),
			),
		),
	}
}

func statRow(label, value string) Node {
	return Tr(Th(Text(label)), Td(Text(value)))
}

func (s *Server) explorerBody(ctx context.Context, base, table string) Node {
	tables, err := s.svc.AllTableNames(ctx)
	if err != nil {
		return P(Class("error"), Text(err.Error()))
	}

	links := make([]Node, 0, len(tables))
	for _, t := range tables {
		className := ""
		if t == table {
			className = "active"
		}
		links = append(links, Li(A(Class(className), Href(routing.Join(base, routing.DataExplorer)+"?table="+url.QueryEscape(t)), Text(t))))
	}
	list := Div(Class("card"), H2(Text("Tables")),
		If(len(tables) == 0, P(Class("muted"), Text("No tables loaded"))),
		Ul(Group(links)),
	)
	if table == "" {
		return list
	}

	cols, err := s.svc.LoadColumns(ctx, table)
	if err != nil {
		return Group{list, Div(Class("card"), P(Class("error"), Text(err.Error())))}
	}
	colRows := make([]Node, 0, len(cols))
	for _, c := range cols {
		colRows = append(colRows, Tr(Td(Text(c.ColumnName)), Td(Text(c.DataType)), Td(Text(c.IsNullable))))
	}

	preview := P(Class("muted"), Text("Preview unavailable"))
	if res, err := s.svc.ExecuteQuery(ctx, "SELECT * FROM "+table+" LIMIT "+strconv.Itoa(previewRows)); err == nil {
		preview = resultTable(res)
	}

	return Group{
		list,
		Div(Class("card"),
			H2(Text(table)),
			Table(
				THead(Tr(Th(Text("Column")), Th(Text("Type")), Th(Text("Nullable")))),
				TBody(Group(colRows)),
			),
		),
		Div(Class("card"), H2(Text("Preview")), preview),
	}
}

func (s *Server) queryLabBody(ctx context.Context, sql string) Node {
	form := Form(Method("get"),
		Textarea(Name("sql"), Rows("6"), Text(sql)),
		P(Button(Type("submit"), Text("Run query"))),
	)

	var result Node
	if strings.TrimSpace(sql) != "" {
		res, err := s.svc.ExecuteQuery(ctx, sql)
		if err != nil {
			result = P(Class("error"), Text(err.Error()))
		} else {
			result = Group{
				P(Class("muted"), Textf("%d row(s) | %.1f ms", res.RowCount, res.ExecutionTime)),
				resultTable(res),
			}
		}
	}

	history := s.svc.History()
	if len(history) > historyLimit {
		history = history[:historyLimit]
	}
	items := make([]Node, 0, len(history))
	for _, h := range history {
		status := fmt.Sprintf("%d rows", h.RowCount)
		if h.Error != "" {
			status = "failed"
		}
		items = append(items, Li(Code(Text(h.Query)), Span(Class("muted"), Text(" "+status))))
	}

	body := Group{Div(Class("card"), form)}
	if result != nil {
		body = append(body, Div(Class("card"), result))
	}
	return append(body, Div(Class("card"),
		H2(Text("History")),
		If(len(items) == 0, P(Class("muted"), Text("No queries yet"))),
		Ul(Group(items)),
	))
}

// visualizationBody charts a query result. Missing axes are suggested from
// the data; the chart type defaults to the configured preference.
func (s *Server) visualizationBody(ctx context.Context, q url.Values) Node {
	sql := q.Get("sql")
	if sql == "" {
		tables, err := s.svc.AllTableNames(ctx)
		if err != nil || len(tables) == 0 {
			return Div(Class("card"), P(Class("muted"), Text("Load a table to build a chart")))
		}
		sql = "SELECT * FROM " + tables[0]
	}

	res, err := s.svc.ExecuteQuery(ctx, sql)
	if err != nil {
		return Div(Class("card"), P(Class("error"), Text(err.Error())))
	}

	cfg := chart.Config{
		Type:        chart.Type(q.Get("type")),
		Data:        res.Data,
		XAxis:       q.Get("x"),
		YAxis:       q.Get("y"),
		GroupBy:     q.Get("group"),
		Aggregation: chart.Aggregation(q.Get("agg")),
	}
	if cfg.Type == "" {
		cfg.Type = chart.Type(s.chart)
		if !cfg.Type.Valid() {
			cfg.Type = chart.Bar
		}
	}
	if cfg.XAxis == "" || cfg.YAxis == "" {
		x, y := chart.SuggestAxes(res.Data, resultColumns(res))
		if cfg.XAxis == "" {
			cfg.XAxis = x
		}
		if cfg.YAxis == "" {
			cfg.YAxis = y
		}
	}

	form := Form(Method("get"),
		Textarea(Name("sql"), Rows("3"), Text(sql)),
		P(
			Label(Text("Type "), selectInput("type", string(cfg.Type), typeNames())),
			Label(Text(" X "), selectInput("x", cfg.XAxis, resultColumns(res))),
			Label(Text(" Y "), selectInput("y", cfg.YAxis, resultColumns(res))),
			Label(Text(" Group by "), selectInput("group", cfg.GroupBy, append([]string{""}, resultColumns(res)...))),
			Label(Text(" Aggregation "), selectInput("agg", string(cfg.Aggregation), append([]string{""}, aggregationNames()...))),
			Text(" "),
			Button(Type("submit"), Text("Plot")),
		),
	)

	built, err := chart.Build(cfg)
	if err != nil {
		return Group{Div(Class("card"), form), Div(Class("card"), P(Class("error"), Text(err.Error())))}
	}
	img, err := export.Chart(ctx, cfg, export.FormatPNG, chartWidth, chartHeight)
	if err != nil {
		return Group{Div(Class("card"), form), Div(Class("card"), P(Class("error"), Text(err.Error())))}
	}

	return Group{
		Div(Class("card"), form),
		Div(Class("card"),
			H2(Text(built.Title)),
			Img(
				Src("data:image/png;base64,"+base64.StdEncoding.EncodeToString(img)),
				Alt(built.Title),
				Width(strconv.Itoa(chartWidth)),
				Height(strconv.Itoa(chartHeight)),
			),
			seriesTable(built),
		),
	}
}

func selectInput(name, selected string, options []string) Node {
	opts := make([]Node, 0, len(options))
	for _, o := range options {
		label := o
		if label == "" {
			label = "none"
		}
		opts = append(opts, Option(Value(o), If(o == selected, Selected()), Text(label)))
	}
	return Select(Name(name), Group(opts))
}

func typeNames() []string {
	out := make([]string, len(chart.Types))
	for i, t := range chart.Types {
		out[i] = string(t)
	}
	return out
}

func aggregationNames() []string {
	out := make([]string, len(chart.Aggregations))
	for i, a := range chart.Aggregations {
		out[i] = string(a)
	}
	return out
}

func seriesTable(c *chart.Chart) Node {
	head := []Node{Th(Text(c.XLabel))}
	for _, s := range c.Series {
		head = append(head, Th(Text(s.Name)))
	}
	rows := make([]Node, 0, len(c.Labels))
	for i, label := range c.Labels {
		cells := []Node{Td(Text(label))}
		for _, s := range c.Series {
			cells = append(cells, Td(Text(strconv.FormatFloat(s.Values[i], 'f', -1, 64))))
		}
		rows = append(rows, Tr(Group(cells)))
	}
	return Table(THead(Tr(Group(head))), TBody(Group(rows)))
}

func resultColumns(res *engine.QueryResult) []string {
	if len(res.Columns) > 0 {
		return res.Columns
	}
	return engine.ResultColumns(res.Data)
}

func resultTable(res *engine.QueryResult) Node {
	cols := resultColumns(res)
	if len(res.Data) == 0 {
		return P(Class("muted"), Text("Query returned no rows"))
	}
	head := make([]Node, 0, len(cols))
	for _, c := range cols {
		head = append(head, Th(Text(c)))
	}
	rows := make([]Node, 0, len(res.Data))
	for _, row := range res.Data {
		cells := make([]Node, 0, len(cols))
		for _, c := range cols {
			if row[c] == nil {
				cells = append(cells, Td(Class("muted"), Text("NULL")))
				continue
			}
			cells = append(cells, Td(Text(row.String(c))))
		}
		rows = append(rows, Tr(Group(cells)))
	}
	return Table(THead(Tr(Group(head))), TBody(Group(rows)))
}
