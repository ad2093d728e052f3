// ABOUTME: Area detection for request logging.
// ABOUTME: Groups request paths into the surfaces of the server for filtering and error rates.

package logging

import "strings"

// AreaFromPath determines which surface handles a given path.
func AreaFromPath(path string) string {
	switch {
	case path == "/ws":
		return "ws"
	case strings.HasPrefix(path, "/api/projects/") &&
		(strings.HasSuffix(path, "/schedule.xlsx") || strings.HasSuffix(path, "/summary")):
		return "export"
	case strings.HasPrefix(path, "/api/admin/"):
		return "admin"
	case path == "/api" || strings.HasPrefix(path, "/api/"):
		return "api"
	case path == "/" || strings.HasPrefix(path, "/ui/"):
		return "ui"
	default:
		return "unknown"
	}
}
