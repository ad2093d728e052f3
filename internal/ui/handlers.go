// ABOUTME: htmx handlers for the editable schedule pages.
// ABOUTME: Every interaction drives the user's sheet and returns the re-rendered sheet fragment.

package ui

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/auth"
	"github.com/2389/sitewalk/internal/equipment"
	apierrors "github.com/2389/sitewalk/internal/errors"
	"github.com/2389/sitewalk/internal/selection"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/table"
)

type Handlers struct {
	store     *store.Store
	registry  *equipment.Registry
	workspace *equipment.Workspace
	selection *selection.Service
	logger    zerolog.Logger
}

func NewHandlers(st *store.Store, reg *equipment.Registry, ws *equipment.Workspace, sel *selection.Service, logger zerolog.Logger) *Handlers {
	return &Handlers{store: st, registry: reg, workspace: ws, selection: sel, logger: logger}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Route("/ui/projects/{projectID}/{kind}", func(r chi.Router) {
		r.Get("/", h.page)
		r.Get("/table", h.fragment)
		r.Post("/sort", h.sort)
		r.Post("/search", h.search)
		r.Post("/rows", h.addRow)
		r.Delete("/rows/{row}", h.deleteRow)
		r.Post("/cells/{row}/{column}/edit", h.edit)
		r.Post("/cells/{row}/{column}/commit", h.commit)
		r.Post("/cells/{row}/{column}/choose", h.choose)
		r.Post("/cells/{row}/{column}/cancel", h.cancel)
	})
}

// home redirects to the current project, or to the project API when none is
// selected yet.
func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	state, err := h.selection.State(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	if state.Current == nil {
		http.Redirect(w, r, "/api/projects", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, SheetPath(state.Current.ID, defaultKind), http.StatusSeeOther)
}

// page renders the full document and makes the project current.
func (h *Handlers) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromContext(ctx)
	sheet, ok := h.sheet(w, r)
	if !ok {
		return
	}
	project, err := h.store.GetProject(ctx, sheet.ProjectID())
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.selection.Select(ctx, user, project.ID); err != nil {
		h.fail(w, err)
		return
	}
	state, err := h.selection.State(ctx, user)
	if err != nil {
		h.fail(w, err)
		return
	}
	snap, err := sheet.Snapshot(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, RenderPage(Page{
		Title:     fmt.Sprintf("%s · %s", project.Name, sheet.Kind().Title),
		User:      user,
		ProjectID: project.ID,
		Kinds:     h.registry.All(),
		Active:    sheet.Kind().Slug,
		Selection: state,
		Body:      RenderSheet(snap),
	}))
}

func (h *Handlers) fragment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error { return nil })
}

func (h *Handlers) sort(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		return s.Sort(r.Context(), r.FormValue("column"))
	})
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		return s.Search(r.Context(), r.FormValue("term"))
	})
}

func (h *Handlers) addRow(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		key, err := s.AddRow(r.Context())
		if err != nil {
			return err
		}
		// Open the new row's first editable cell.
		for _, col := range s.Kind().Columns() {
			if col.Editor != table.EditorNone.String() {
				return s.Begin(r.Context(), key, col.ID)
			}
		}
		return nil
	})
}

func (h *Handlers) deleteRow(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		return s.DeleteRow(r.Context(), chi.URLParam(r, "row"))
	})
}

func (h *Handlers) edit(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		return s.Begin(r.Context(), chi.URLParam(r, "row"), chi.URLParam(r, "column"))
	})
}

// commit stages the submitted value, if any, and ends the edit. An invalid
// draft keeps the cell editing with its message, so it renders normally.
func (h *Handlers) commit(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		row, col := chi.URLParam(r, "row"), chi.URLParam(r, "column")
		if err := r.ParseForm(); err != nil {
			return err
		}
		if _, ok := r.PostForm["value"]; ok {
			// A late blur after the edit already ended commits nothing.
			err := s.Input(r.Context(), row, col, r.PostForm.Get("value"))
			if errors.Is(err, table.ErrNotEditing) {
				return nil
			}
			if err != nil {
				return err
			}
		}
		err := s.Commit(r.Context(), row, col, table.ParseTrigger(r.PostForm.Get("trigger")))
		if errors.Is(err, table.ErrInvalidDraft) {
			return nil
		}
		return err
	})
}

func (h *Handlers) choose(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		return s.Choose(r.Context(), chi.URLParam(r, "row"), chi.URLParam(r, "column"), r.FormValue("value"))
	})
}

func (h *Handlers) cancel(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(s equipment.Sheet) error {
		return s.Cancel(r.Context(), chi.URLParam(r, "row"), chi.URLParam(r, "column"))
	})
}

// run applies op to the request's sheet and writes the sheet fragment.
func (h *Handlers) run(w http.ResponseWriter, r *http.Request, op func(equipment.Sheet) error) {
	sheet, ok := h.sheet(w, r)
	if !ok {
		return
	}
	if err := op(sheet); err != nil {
		h.fail(w, err)
		return
	}
	snap, err := sheet.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, RenderSheet(snap))
}

func (h *Handlers) sheet(w http.ResponseWriter, r *http.Request) (equipment.Sheet, bool) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil || pid <= 0 {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return nil, false
	}
	if _, err := h.store.GetProject(r.Context(), pid); err != nil {
		h.fail(w, err)
		return nil, false
	}
	sheet, err := h.workspace.Sheet(auth.UserFromContext(r.Context()), pid, chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return sheet, true
}

// fail writes an inline alert. htmx only swaps 2xx responses by default, so
// the status still reaches the client's error handling.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status, _, ok := apierrors.Classify(err)
	msg := err.Error()
	if !ok {
		h.logger.Error().Err(err).Msg("ui request failed")
		msg = "Something went wrong"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<div class="rounded bg-red-50 border border-red-200 px-4 py-2 text-sm text-red-800" role="alert">%s</div>`,
		html.EscapeString(msg))
}
