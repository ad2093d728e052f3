// ABOUTME: REST handlers for projects, equipment collections, selection and exports.
// ABOUTME: Reads go through the query cache; every mutation invalidates the keys it affects.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/auth"
	"github.com/2389/sitewalk/internal/equipment"
	apierrors "github.com/2389/sitewalk/internal/errors"
	"github.com/2389/sitewalk/internal/export"
	"github.com/2389/sitewalk/internal/querycache"
	"github.com/2389/sitewalk/internal/selection"
	"github.com/2389/sitewalk/internal/store"
)

const maxBodySize = 1 << 20

// ProjectsKey is the cache key of the project list. It covers every
// project's collections.
const ProjectsKey = "projects"

// Services are the collaborators the handlers share.
type Services struct {
	Store      *store.Store
	Registry   *equipment.Registry
	Cache      *querycache.Cache
	Workspace  *equipment.Workspace
	Selection  *selection.Service
	Summarizer *export.Summarizer
	Logger     zerolog.Logger
}

type Handlers struct {
	Services
}

func NewHandlers(svc Services) *Handlers {
	return &Handlers{Services: svc}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/kinds", h.listKinds)

		r.Get("/projects", h.listProjects)
		r.Post("/projects", h.createProject)
		r.Get("/projects/{projectID}", h.getProject)
		r.Patch("/projects/{projectID}", h.updateProject)
		r.Delete("/projects/{projectID}", h.deleteProject)
		r.Get("/projects/{projectID}/schedule.xlsx", h.exportSchedule)
		r.Get("/projects/{projectID}/summary", h.summary)
		r.Get("/projects/{projectID}/{kind}", h.listEquipment)
		r.Post("/projects/{projectID}/{kind}", h.createEquipment)

		r.Get("/me/selection", h.getSelection)
		r.Put("/me/selection", h.putSelection)
		r.Post("/me/pins/{projectID}", h.pin)
		r.Delete("/me/pins/{projectID}", h.unpin)

		r.Get("/admin/requests", h.requestLogs)
		r.Get("/admin/stats", h.requestStats)

		r.Get("/{kind}/{id}", h.getEquipment)
		r.Patch("/{kind}/{id}", h.updateEquipment)
		r.Delete("/{kind}/{id}", h.deleteEquipment)
	})
}

func (h *Handlers) listKinds(w http.ResponseWriter, r *http.Request) {
	type kindView struct {
		Slug     string                 `json:"slug"`
		Title    string                 `json:"title"`
		Singular string                 `json:"singular"`
		Columns  []equipment.ColumnInfo `json:"columns"`
	}
	kinds := []kindView{}
	for _, k := range h.Registry.All() {
		kinds = append(kinds, kindView{Slug: k.Slug, Title: k.Title, Singular: k.Singular, Columns: k.Columns()})
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"kinds": kinds})
}

func (h *Handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		projects []*store.Project
		err      error
	)
	if q == "" {
		projects, err = querycache.Query(r.Context(), h.Cache, ProjectsKey, func(ctx context.Context) ([]*store.Project, error) {
			return h.Store.ListProjects(ctx, "")
		})
	} else {
		projects, err = h.Store.ListProjects(r.Context(), q)
	}
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var p store.Project
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = 0
	if err := h.Store.CreateProject(r.Context(), &p); err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(ProjectsKey)
	apierrors.WriteJSON(w, http.StatusCreated, &p)
}

func (h *Handlers) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	p, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var fields map[string]any
	if !decodeBody(w, r, &fields) {
		return
	}
	p, err := h.Store.UpdateProject(r.Context(), id, fields)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(ProjectsKey)
	h.Cache.Invalidate(selection.UsersKey)
	apierrors.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.Store.DeleteProject(r.Context(), id); err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.Workspace.Drop(id)
	h.Cache.Invalidate(ProjectsKey)
	h.Cache.Invalidate(selection.UsersKey)
	h.Logger.Info().Int64("project_id", id).Str("user", auth.UserFromContext(r.Context())).Msg("project deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listEquipment(w http.ResponseWriter, r *http.Request) {
	kind, pid, ok := h.projectKind(w, r)
	if !ok {
		return
	}
	rows, err := h.Cache.Fetch(r.Context(), kind.ListKey(pid), func(ctx context.Context) (any, error) {
		return kind.List(ctx, h.Store, pid)
	})
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"kind": kind.Slug, "project_id": pid, "items": rows})
}

func (h *Handlers) createEquipment(w http.ResponseWriter, r *http.Request) {
	kind, pid, ok := h.projectKind(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Could not read request body")
		return
	}
	item, err := kind.Create(r.Context(), h.Store, pid, body)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(kind.ListKey(pid))
	apierrors.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handlers) getEquipment(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	item, _, err := kind.Get(r.Context(), h.Store, id)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, item)
}

func (h *Handlers) updateEquipment(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	var fields map[string]any
	if !decodeBody(w, r, &fields) {
		return
	}
	if len(fields) == 0 {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrMissingField, "No fields to update")
		return
	}
	item, pid, err := kind.Update(r.Context(), h.Store, id, fields)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(kind.ListKey(pid))
	apierrors.WriteJSON(w, http.StatusOK, item)
}

func (h *Handlers) deleteEquipment(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	pid, err := kind.Delete(r.Context(), h.Store, id)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(kind.ListKey(pid))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getSelection(w http.ResponseWriter, r *http.Request) {
	h.writeSelection(w, r)
}

func (h *Handlers) putSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID int64 `json:"project_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProjectID <= 0 {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrMissingField, "project_id is required", "project_id")
		return
	}
	if err := h.Selection.Select(r.Context(), auth.UserFromContext(r.Context()), req.ProjectID); err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.writeSelection(w, r)
}

func (h *Handlers) pin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.Selection.Pin(r.Context(), auth.UserFromContext(r.Context()), id); err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.writeSelection(w, r)
}

func (h *Handlers) unpin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.Selection.Unpin(r.Context(), auth.UserFromContext(r.Context()), id); err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	h.writeSelection(w, r)
}

func (h *Handlers) writeSelection(w http.ResponseWriter, r *http.Request) {
	state, err := h.Selection.State(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, state)
}

func (h *Handlers) exportSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	f, err := export.Workbook(r.Context(), h.Store, h.Registry, id)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="project-%d-schedule.xlsx"`, id))
	if _, err := f.WriteTo(w); err != nil {
		h.Logger.Error().Err(err).Int64("project_id", id).Msg("writing schedule workbook")
	}
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	sum, err := h.Summarizer.Summarize(r.Context(), h.Store, h.Registry, id)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, sum)
}

// projectKind resolves {projectID} and {kind}, checking the project exists.
func (h *Handlers) projectKind(w http.ResponseWriter, r *http.Request) (*equipment.Kind, int64, bool) {
	kind, ok := h.Registry.Get(chi.URLParam(r, "kind"))
	if !ok {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "Unknown equipment kind")
		return nil, 0, false
	}
	pid, ok := pathID(w, r, "projectID")
	if !ok {
		return nil, 0, false
	}
	if _, err := h.Store.GetProject(r.Context(), pid); err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return nil, 0, false
	}
	return kind, pid, true
}

func (h *Handlers) kindAndID(w http.ResponseWriter, r *http.Request) (*equipment.Kind, int64, bool) {
	kind, ok := h.Registry.Get(chi.URLParam(r, "kind"))
	if !ok {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "Unknown equipment kind")
		return nil, 0, false
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, 0, false
	}
	return kind, id, true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "Invalid id", param)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		apierrors.WriteErrorWithDetails(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Invalid JSON body", err.Error())
		return false
	}
	return true
}
