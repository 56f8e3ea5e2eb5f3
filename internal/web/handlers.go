package web

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
	"github.com/lmdevv/tabby-sub002/internal/model"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

// Handlers contains HTTP route handlers for the rendering layer.
type Handlers struct {
	db       *sql.DB
	cfg      atomic.Pointer[config.Config]
	grouper  grouping.Grouper // nil disables organize
	renderer *Renderer
	logger   *zap.Logger
}

// NewHandlers creates the route handlers.
func NewHandlers(db *sql.DB, cfg *config.Config, grouper grouping.Grouper, logger *zap.Logger, version string) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handlers{
		db:       db,
		grouper:  grouper,
		renderer: NewRenderer(version, logger),
		logger:   logger,
	}
	h.SetConfig(cfg)
	return h
}

// SetConfig swaps the configuration used by subsequent requests.
func (h *Handlers) SetConfig(cfg *config.Config) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h.cfg.Store(cfg)
}

func (h *Handlers) config() *config.Config {
	return h.cfg.Load()
}

// Request bodies

type workspaceCreateBody struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	GroupID     *int64  `json:"group_id,omitempty"`
	Activate    bool    `json:"activate,omitempty"`
}

type workspaceUpdateBody struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	GroupID     *int64  `json:"group_id,omitempty"`
	Ungroup     bool    `json:"ungroup,omitempty"`
}

type tabMoveBody struct {
	TabIDs      []int64 `json:"tab_ids"`
	WorkspaceID int64   `json:"workspace_id"`
}

type snapshotCaptureBody struct {
	Label *string `json:"label,omitempty"`
}

type snapshotPurgeBody struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

type groupingApplyBody struct {
	Response json.RawMessage `json:"response"`
	DryRun   bool            `json:"dry_run,omitempty"`
}

type groupingOrganizeBody struct {
	Instruction string `json:"instruction,omitempty"`
	DryRun      bool   `json:"dry_run,omitempty"`
}

type settingBody struct {
	Value string `json:"value"`
}

// decodeBody strictly decodes a JSON request body into T. An empty body
// decodes to the zero value.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil && err != io.EOF {
		return v, errors.NewInvalidRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return v, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || (id <= 0 && id != model.Unassigned) {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// Pages

// HandleWorkspacesPage handles GET /workspaces.
func (h *Handlers) HandleWorkspacesPage(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListWorkspaces(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	rows := make([]workspaceRow, len(result.Workspaces))
	for i, ws := range result.Workspaces {
		rows[i] = workspaceRow{
			ID:           ws.ID,
			Name:         ws.Name,
			Active:       ws.Active,
			ActiveTabs:   ws.ActiveTabs,
			ArchivedTabs: ws.ArchivedTabs,
			LastOpened:   ws.LastOpened,
		}
	}

	h.renderer.renderPage(w, "workspaces", WorkspacesPageData{
		PageData:       PageData{Title: "Workspaces", Version: h.renderer.version},
		Workspaces:     rows,
		UnassignedTabs: result.UnassignedTabs,
	})
}

// HandleSnapshotPage handles GET /snapshots/{id}: the markdown export
// rendered as HTML.
func (h *Handlers) HandleSnapshotPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	doc, err := ops.LoadExportDocument(r.Context(), h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	title := doc.Label
	if title == "" {
		title = fmt.Sprintf("Snapshot %d", doc.SnapshotID)
	}
	h.renderer.renderPage(w, "snapshot", SnapshotPageData{
		PageData:     PageData{Title: title, Version: h.renderer.version},
		RenderedHTML: renderMarkdown(ops.RenderMarkdown(doc)),
		ExportLinks:  []string{string(ops.FormatJSON), string(ops.FormatYAML), string(ops.FormatMarkdown)},
		SnapshotID:   doc.SnapshotID,
	})
}

// Workspaces

// HandleWorkspaceList handles GET /api/workspaces.
func (h *Handlers) HandleWorkspaceList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListWorkspaces(r.Context(), h.db)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleWorkspaceCreate handles POST /api/workspaces.
func (h *Handlers) HandleWorkspaceCreate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[workspaceCreateBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.CreateWorkspace(r.Context(), h.db, ops.CreateWorkspaceInput{
		Name:        body.Name,
		Description: body.Description,
		GroupID:     body.GroupID,
		Activate:    body.Activate,
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, result)
}

// HandleWorkspaceGet handles GET /api/workspaces/{id}.
func (h *Handlers) HandleWorkspaceGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.GetWorkspace(r.Context(), h.db, ops.GetWorkspaceInput{WorkspaceID: id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleWorkspaceUpdate handles PATCH /api/workspaces/{id}.
func (h *Handlers) HandleWorkspaceUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	body, err := decodeBody[workspaceUpdateBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.UpdateWorkspace(r.Context(), h.db, ops.UpdateWorkspaceInput{
		WorkspaceID: id,
		Name:        body.Name,
		Description: body.Description,
		GroupID:     body.GroupID,
		Ungroup:     body.Ungroup,
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleWorkspaceDelete handles DELETE /api/workspaces/{id}.
func (h *Handlers) HandleWorkspaceDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.DeleteWorkspace(r.Context(), h.db, ops.DeleteWorkspaceInput{WorkspaceID: id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleWorkspaceActivate handles POST /api/workspaces/{id}/activate.
func (h *Handlers) HandleWorkspaceActivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.Activate(r.Context(), h.db, ops.ActivateInput{WorkspaceID: id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleWorkspaceDeactivate handles POST /api/workspaces/{id}/deactivate.
func (h *Handlers) HandleWorkspaceDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.Deactivate(r.Context(), h.db, ops.DeactivateInput{WorkspaceID: &id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleWorkspaceEnsureActive handles POST /api/workspaces/ensure-active.
func (h *Handlers) HandleWorkspaceEnsureActive(w http.ResponseWriter, r *http.Request) {
	result, err := ops.EnsureActive(r.Context(), h.db)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// Tabs

// HandleTabList handles GET /api/workspaces/{id}/tabs. The id -1 lists
// unassigned tabs.
func (h *Handlers) HandleTabList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.ListTabs(r.Context(), h.db, ops.ListTabsInput{
		WorkspaceID: &id,
		Status:      r.URL.Query().Get("status"),
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleTabGroupList handles GET /api/workspaces/{id}/groups.
func (h *Handlers) HandleTabGroupList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.ListTabGroups(r.Context(), h.db, ops.ListTabGroupsInput{
		WorkspaceID: &id,
		Status:      r.URL.Query().Get("status"),
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleTabMove handles POST /api/tabs/move.
func (h *Handlers) HandleTabMove(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[tabMoveBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.MoveTabs(r.Context(), h.db, ops.MoveTabsInput{
		TabIDs:      body.TabIDs,
		WorkspaceID: body.WorkspaceID,
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// Snapshots

// HandleSnapshotList handles GET /api/workspaces/{id}/snapshots.
func (h *Handlers) HandleSnapshotList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.ListSnapshots(r.Context(), h.db, ops.ListSnapshotsInput{WorkspaceID: id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSnapshotCapture handles POST /api/workspaces/{id}/snapshots.
func (h *Handlers) HandleSnapshotCapture(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	body, err := decodeBody[snapshotCaptureBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.CaptureSnapshot(r.Context(), h.db, ops.CaptureSnapshotInput{
		WorkspaceID: id,
		Label:       body.Label,
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, result)
}

// HandleSnapshotFetch handles GET /api/snapshots/{id}.
func (h *Handlers) HandleSnapshotFetch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.FetchSnapshot(r.Context(), h.db, ops.FetchSnapshotInput{SnapshotID: id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSnapshotDelete handles DELETE /api/snapshots/{id}.
func (h *Handlers) HandleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.DeleteSnapshot(r.Context(), h.db, ops.DeleteSnapshotInput{SnapshotID: id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSnapshotExport handles GET /api/snapshots/{id}/export?format=.
// The rendered document is returned as the response body; nothing is
// written to disk.
func (h *Handlers) HandleSnapshotExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	format, err := ops.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	doc, err := ops.LoadExportDocument(r.Context(), h.db, id)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	data, err := ops.RenderExport(doc, format)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}

	contentType := map[ops.ExportFormat]string{
		ops.FormatJSON:     "application/json",
		ops.FormatYAML:     "application/yaml",
		ops.FormatMarkdown: "text/markdown; charset=utf-8",
	}[format]
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ops.DefaultExportName(doc, format, doc.CapturedAt)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleSnapshotPurge handles POST /api/snapshots/purge.
func (h *Handlers) HandleSnapshotPurge(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[snapshotPurgeBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.PurgeSnapshots(r.Context(), h.db, h.config(), ops.PurgeSnapshotsInput{OlderThanDays: body.OlderThanDays})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// Grouping

// HandleGroupingContext handles GET /api/workspaces/{id}/grouping/context.
func (h *Handlers) HandleGroupingContext(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.GroupingContext(r.Context(), h.db, h.config(), ops.GroupingContextInput{WorkspaceID: &id})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGroupingApply handles POST /api/workspaces/{id}/grouping/apply.
func (h *Handlers) HandleGroupingApply(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	body, err := decodeBody[groupingApplyBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	if len(body.Response) == 0 {
		h.renderer.renderAPIError(w, r, errors.NewInvalidRequest("response is required"))
		return
	}
	resp, err := grouping.DecodeResponse(body.Response)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.ApplyGrouping(r.Context(), h.db, h.config(), ops.ApplyGroupingInput{
		WorkspaceID: id,
		Response:    resp,
		DryRun:      body.DryRun,
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGroupingOrganize handles POST /api/workspaces/{id}/grouping/organize.
func (h *Handlers) HandleGroupingOrganize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	body, err := decodeBody[groupingOrganizeBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.Organize(r.Context(), h.db, h.config(), h.grouper, h.logger, ops.OrganizeInput{
		WorkspaceID: &id,
		Instruction: body.Instruction,
		DryRun:      body.DryRun,
	})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// Resources and settings

// HandleResourceList handles GET /api/resources.
func (h *Handlers) HandleResourceList(w http.ResponseWriter, r *http.Request) {
	resources, err := ops.ListResources(r.Context(), h.db)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"resources": resources, "count": len(resources)})
}

// HandleResourceGroupList handles GET /api/resource-groups.
func (h *Handlers) HandleResourceGroupList(w http.ResponseWriter, r *http.Request) {
	groups, err := ops.ListResourceGroups(r.Context(), h.db)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

// HandleSettingList handles GET /api/settings.
func (h *Handlers) HandleSettingList(w http.ResponseWriter, r *http.Request) {
	settings, err := ops.ListSettings(r.Context(), h.db)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"settings": settings, "count": len(settings)})
}

// HandleSettingGet handles GET /api/settings/{key}.
func (h *Handlers) HandleSettingGet(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GetSetting(r.Context(), h.db, ops.SettingInput{Key: r.PathValue("key")})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSettingSet handles PUT /api/settings/{key}.
func (h *Handlers) HandleSettingSet(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[settingBody](w, r)
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	result, err := ops.SetSetting(r.Context(), h.db, ops.SetSettingInput{Key: r.PathValue("key"), Value: body.Value})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSettingDelete handles DELETE /api/settings/{key}.
func (h *Handlers) HandleSettingDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.DeleteSetting(r.Context(), h.db, ops.SettingInput{Key: r.PathValue("key")})
	if err != nil {
		h.renderer.renderAPIError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}
