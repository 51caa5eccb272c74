// Package routing holds the dashboard route table and resolves the basename
// the application is mounted under on static hosts.
package routing

import "strings"

// Route identifies a dashboard page.
type Route string

const (
	Home          Route = "/"
	DataExplorer  Route = "/data-explorer"
	QueryLab      Route = "/query-lab"
	Visualization Route = "/visualization"
)

// Routes lists every page in navigation order.
var Routes = []Route{Home, DataExplorer, QueryLab, Visualization}

// KnownRoutes are the first path segments of the non-root pages.
var KnownRoutes = []string{"data-explorer", "query-lab", "visualization"}

// Title returns the page heading for a route.
func (r Route) Title() string {
	switch r {
	case Home:
		return "Home"
	case DataExplorer:
		return "Data Explorer"
	case QueryLab:
		return "Query Lab"
	case Visualization:
		return "Visualization"
	default:
		return "Not Found"
	}
}

// Segment returns the route without its leading slash.
func (r Route) Segment() string {
	return strings.TrimPrefix(string(r), "/")
}

// Parse maps a path to a route. Unknown paths return false.
func Parse(path string) (Route, bool) {
	p := "/" + strings.Trim(path, "/")
	for _, r := range Routes {
		if string(r) == p {
			return r, true
		}
	}
	return "", false
}

// Next returns the route after r in navigation order, wrapping around.
func (r Route) Next() Route {
	for i, candidate := range Routes {
		if candidate == r {
			return Routes[(i+1)%len(Routes)]
		}
	}
	return Home
}

// Prev returns the route before r in navigation order, wrapping around.
func (r Route) Prev() Route {
	for i, candidate := range Routes {
		if candidate == r {
			return Routes[(i-1+len(Routes))%len(Routes)]
		}
	}
	return Home
}

// ResolveBasename decides whether the app is served from the domain root or
// from a repository sub-path. A known route anywhere in the path means the
// app lives at the root; otherwise the first segment is the sub-path.
func ResolveBasename(path string, knownRoutes []string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return "/"
	}

	known := make(map[string]bool, len(knownRoutes))
	for _, r := range knownRoutes {
		known[strings.Trim(r, "/")] = true
	}

	for _, s := range segments {
		if known[s] {
			return "/"
		}
	}
	return "/" + segments[0]
}

// Join prefixes a route with a basename.
func Join(basename string, r Route) string {
	base := strings.TrimRight(basename, "/")
	if r == Home {
		return base + "/"
	}
	return base + string(r)
}

func splitPath(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
