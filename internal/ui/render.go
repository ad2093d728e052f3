// ABOUTME: HTML rendering for editable schedule sheets and the page shell.
// ABOUTME: Emits htmx-driven markup with Tailwind classes from sheet snapshots.

package ui

import (
	"fmt"
	"html"
	"strings"

	"github.com/2389/sitewalk/internal/equipment"
	"github.com/2389/sitewalk/internal/selection"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

// SheetID is the DOM id of the swappable sheet fragment.
const SheetID = "sheet"

// SheetPath is the URL of a project's schedule of one kind.
func SheetPath(projectID int64, slug string) string {
	return fmt.Sprintf("/ui/projects/%d/%s", projectID, slug)
}

func cellPath(base, rowKey, columnID, action string) string {
	return fmt.Sprintf("%s/cells/%s/%s/%s", base, rowKey, columnID, action)
}

// hx targets every request at the sheet fragment.
func hx(method, url string) string {
	return fmt.Sprintf(`hx-%s="%s" hx-target="#%s" hx-swap="outerHTML"`, method, html.EscapeString(url), SheetID)
}

// RenderSheet renders a snapshot as the sheet fragment.
func RenderSheet(snap *equipment.Snapshot) string {
	base := SheetPath(snap.ProjectID, snap.Kind.Slug)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<div id="%s" data-key="%s" data-base="%s" class="space-y-4">`,
		SheetID, html.EscapeString(snap.Kind.ListKey(snap.ProjectID)), html.EscapeString(base)))

	for _, n := range snap.Notices {
		sb.WriteString(fmt.Sprintf(`<div class="rounded bg-red-50 border border-red-200 px-4 py-2 text-sm text-red-800" role="alert">Could not save: %s</div>`,
			html.EscapeString(n)))
	}

	sb.WriteString(`<div class="flex items-center justify-between gap-4">`)
	sb.WriteString(fmt.Sprintf(`<input type="search" name="term" value="%s" placeholder="Search %s" %s hx-trigger="input changed delay:300ms, search" class="rounded border border-gray-300 px-3 py-2 text-sm w-72">`,
		html.EscapeString(snap.Term), html.EscapeString(strings.ToLower(snap.Kind.Title)), hx("post", base+"/search")))
	sb.WriteString(fmt.Sprintf(`<button %s class="px-4 py-2 bg-purple-600 text-white rounded hover:bg-purple-700 text-sm">Add %s</button>`,
		hx("post", base+"/rows"), html.EscapeString(strings.ToLower(snap.Kind.Singular))))
	sb.WriteString(`</div>`)

	sb.WriteString(`<table class="min-w-full divide-y divide-gray-200">`)
	sb.WriteString(`<thead class="bg-gray-50"><tr>`)
	for _, col := range snap.Columns {
		sb.WriteString(renderHeader(base, col))
	}
	sb.WriteString(`<th class="px-3 py-3"></th>`)
	sb.WriteString(`</tr></thead>`)

	sb.WriteString(`<tbody class="bg-white divide-y divide-gray-200">`)
	if len(snap.Rows) == 0 {
		sb.WriteString(fmt.Sprintf(`<tr><td colspan="%d" class="px-3 py-6 text-center text-sm text-gray-500">No %s yet.</td></tr>`,
			len(snap.Columns)+1, html.EscapeString(strings.ToLower(snap.Kind.Title))))
	}
	for _, row := range snap.Rows {
		sb.WriteString(fmt.Sprintf(`<tr data-row="%s">`, html.EscapeString(row.Key)))
		for _, cell := range row.Cells {
			sb.WriteString(renderCell(base, row.Key, cell))
		}
		sb.WriteString(fmt.Sprintf(`<td class="px-3 py-2 text-right"><button %s hx-confirm="Delete this row?" class="text-red-600 hover:text-red-800 text-sm">Delete</button></td>`,
			hx("delete", base+"/rows/"+row.Key)))
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody></table>`)

	sb.WriteString(`</div>`)
	return sb.String()
}

func renderHeader(base string, col equipment.ColumnView) string {
	class := "px-3 py-3 text-left text-xs font-medium text-gray-500 uppercase"
	if col.ClassName != "" {
		class += " " + col.ClassName
	}
	label := html.EscapeString(col.Header)
	if !col.Sortable {
		return fmt.Sprintf(`<th class="%s">%s</th>`, html.EscapeString(class), label)
	}

	arrow := ""
	switch col.Sort {
	case table.SortAscending:
		arrow = ` <span aria-hidden="true">&#9650;</span>`
	case table.SortDescending:
		arrow = ` <span aria-hidden="true">&#9660;</span>`
	}
	return fmt.Sprintf(`<th class="%s" aria-sort="%s"><button %s hx-vals='{"column":"%s"}' class="uppercase hover:text-gray-900">%s%s</button></th>`,
		html.EscapeString(class), col.Sort, hx("post", base+"/sort"), html.EscapeString(col.ID), label, arrow)
}

func renderCell(base, rowKey string, c equipment.CellView) string {
	if c.IsAction {
		return fmt.Sprintf(`<td class="px-3 py-2 text-xs text-gray-500 whitespace-nowrap">%s</td>`, html.EscapeString(c.Action))
	}
	if c.Mode == table.Editing {
		return renderEditor(base, rowKey, c)
	}

	display := html.EscapeString(c.Display)
	if c.Editor == table.EditorNone {
		return fmt.Sprintf(`<td class="px-3 py-2 text-sm text-gray-500">%s</td>`, display)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<td class="group px-3 py-2 text-sm text-gray-900 cursor-pointer" %s hx-trigger="click">`,
		hx("post", cellPath(base, rowKey, c.ColumnID, "edit"))))
	sb.WriteString(display)
	if c.Affordance {
		sb.WriteString(` <span class="invisible group-hover:visible text-gray-400" aria-label="Edit">&#9998;</span>`)
	}
	sb.WriteString(`</td>`)
	return sb.String()
}

func renderEditor(base, rowKey string, c equipment.CellView) string {
	var sb strings.Builder
	sb.WriteString(`<td class="px-3 py-2 text-sm">`)

	cancel := fmt.Sprintf(`hx-post="%s" hx-trigger="keyup[key=='Escape']" hx-target="#%s" hx-swap="outerHTML"`,
		html.EscapeString(cellPath(base, rowKey, c.ColumnID, "cancel")), SheetID)

	switch c.Editor {
	case table.EditorSelect:
		sb.WriteString(fmt.Sprintf(`<select name="value" autofocus aria-label="%s" %s hx-trigger="change" class="rounded border border-purple-400 px-2 py-1">`,
			html.EscapeString(c.ColumnID), hx("post", cellPath(base, rowKey, c.ColumnID, "choose"))))
		if c.Input == "" {
			sb.WriteString(`<option value="" selected disabled>Select...</option>`)
		}
		for _, opt := range c.Options {
			selected := ""
			if opt.Value == c.Input {
				selected = " selected"
			}
			sb.WriteString(fmt.Sprintf(`<option value="%s"%s>%s</option>`,
				html.EscapeString(opt.Value), selected, html.EscapeString(opt.Label)))
		}
		sb.WriteString(`</select>`)
		sb.WriteString(fmt.Sprintf(`<button %s class="ml-2 text-xs text-gray-500">Cancel</button>`,
			hx("post", cellPath(base, rowKey, c.ColumnID, "cancel"))))

	default:
		inputMode := "text"
		if c.Editor == table.EditorNumber {
			inputMode = "decimal"
		}
		sb.WriteString(fmt.Sprintf(`<div %s>`, cancel))
		sb.WriteString(fmt.Sprintf(`<form %s hx-vals='{"trigger":"confirm"}'>`,
			hx("post", cellPath(base, rowKey, c.ColumnID, "commit"))))
		sb.WriteString(fmt.Sprintf(`<input type="text" inputmode="%s" name="value" value="%s" autofocus %s hx-trigger="blur" hx-vals='{"trigger":"blur"}' class="rounded border border-purple-400 px-2 py-1 w-full">`,
			inputMode, html.EscapeString(c.Input), hx("post", cellPath(base, rowKey, c.ColumnID, "commit"))))
		sb.WriteString(`</form></div>`)
	}

	if c.Error != "" {
		sb.WriteString(fmt.Sprintf(`<p class="mt-1 text-xs text-red-600" role="alert">%s</p>`, html.EscapeString(c.Error)))
	}
	sb.WriteString(`</td>`)
	return sb.String()
}

// Page is the shell around a sheet.
type Page struct {
	Title     string
	User      string
	ProjectID int64
	Kinds     []*equipment.Kind
	Active    string
	Selection *selection.State
	Body      string
}

// RenderPage renders a complete HTML document.
func RenderPage(p Page) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	sb.WriteString(fmt.Sprintf(`<title>%s</title>`, html.EscapeString(p.Title)))
	sb.WriteString(`<script src="https://cdn.tailwindcss.com"></script>`)
	sb.WriteString(`<script src="https://unpkg.com/htmx.org@1.9.12"></script>`)
	sb.WriteString(`</head><body class="bg-gray-100 min-h-screen">`)

	sb.WriteString(`<div class="flex">`)
	sb.WriteString(renderNav(p))
	sb.WriteString(`<main class="flex-1 p-8 space-y-6">`)
	sb.WriteString(fmt.Sprintf(`<h1 class="text-2xl font-semibold text-gray-900">%s</h1>`, html.EscapeString(p.Title)))

	sb.WriteString(`<nav class="flex gap-2 border-b border-gray-200">`)
	for _, k := range p.Kinds {
		class := "px-4 py-2 text-sm text-gray-600 hover:text-gray-900"
		if k.Slug == p.Active {
			class = "px-4 py-2 text-sm font-medium text-purple-700 border-b-2 border-purple-600"
		}
		sb.WriteString(fmt.Sprintf(`<a href="%s" class="%s">%s</a>`,
			html.EscapeString(SheetPath(p.ProjectID, k.Slug)), class, html.EscapeString(k.Title)))
	}
	sb.WriteString(fmt.Sprintf(`<a href="/api/projects/%d/schedule.xlsx" class="ml-auto px-4 py-2 text-sm text-gray-600 hover:text-gray-900">Download schedule</a>`, p.ProjectID))
	sb.WriteString(`</nav>`)

	sb.WriteString(p.Body)
	sb.WriteString(`</main></div>`)
	sb.WriteString(liveScript)
	sb.WriteString(`</body></html>`)
	return sb.String()
}

func renderNav(p Page) string {
	var sb strings.Builder
	sb.WriteString(`<aside class="w-64 bg-white border-r border-gray-200 min-h-screen p-4 space-y-6">`)
	sb.WriteString(fmt.Sprintf(`<div class="text-sm text-gray-500">Signed in as <span class="font-medium text-gray-900">%s</span></div>`,
		html.EscapeString(p.User)))
	if p.Selection != nil {
		sb.WriteString(renderProjectList("Pinned", p.Selection.Pinned, p.ProjectID))
		sb.WriteString(renderProjectList("Recent", p.Selection.Recent, p.ProjectID))
	}
	sb.WriteString(`</aside>`)
	return sb.String()
}

func renderProjectList(title string, projects []*store.Project, current int64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<div><h2 class="text-xs font-medium text-gray-500 uppercase mb-2">%s</h2><ul class="space-y-1">`,
		html.EscapeString(title)))
	if len(projects) == 0 {
		sb.WriteString(`<li class="text-sm text-gray-400">None</li>`)
	}
	for _, p := range projects {
		class := "text-sm text-gray-700 hover:text-purple-700"
		if p.ID == current {
			class = "text-sm font-medium text-purple-700"
		}
		sb.WriteString(fmt.Sprintf(`<li><a href="%s" class="%s">%s</a></li>`,
			html.EscapeString(SheetPath(p.ID, defaultKind)), class, html.EscapeString(p.Name)))
	}
	sb.WriteString(`</ul></div>`)
	return sb.String()
}

// defaultKind is the schedule a project link opens on.
const defaultKind = "access-points"

// liveScript re-fetches the sheet when the server reports its collection
// changed. A sheet with a focused editor is left alone until the edit ends.
const liveScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  function connect(delay) {
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      var sheet = document.getElementById("sheet");
      if (msg.type !== "invalidate" || !sheet) return;
      var key = sheet.dataset.key;
      if (key !== msg.key && key.indexOf(msg.key + "/") !== 0) return;
      if (sheet.contains(document.activeElement) && document.activeElement.name === "value") return;
      htmx.ajax("GET", sheet.dataset.base + "/table", {target: "#sheet", swap: "outerHTML"});
    };
    ws.onclose = function () { setTimeout(function () { connect(Math.min(delay * 2, 30000)); }, delay); };
  }
  connect(1000);
})();
</script>`
