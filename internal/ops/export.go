package ops

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
)

// ExportFormat selects the rendering of an exported snapshot.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatYAML     ExportFormat = "yaml"
	FormatMarkdown ExportFormat = "markdown"
)

// ParseExportFormat accepts json, yaml/yml and markdown/md. Empty means json.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q (json, yaml, markdown)", s))
}

func (f ExportFormat) extensions() []string {
	switch f {
	case FormatYAML:
		return []string{".yaml", ".yml"}
	case FormatMarkdown:
		return []string{".md"}
	}
	return []string{".json"}
}

func (f ExportFormat) validExt(ext string) bool {
	for _, e := range f.extensions() {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// ExportDocument is the portable form of a snapshot.
type ExportDocument struct {
	SchemaVersion string         `json:"schema_version" yaml:"schema_version"`
	SnapshotID    int64          `json:"snapshot_id" yaml:"snapshot_id"`
	WorkspaceID   int64          `json:"workspace_id" yaml:"workspace_id"`
	WorkspaceName string         `json:"workspace_name" yaml:"workspace_name"`
	Label         string         `json:"label,omitempty" yaml:"label,omitempty"`
	CapturedAt    time.Time      `json:"captured_at" yaml:"captured_at"`
	Windows       []ExportWindow `json:"windows" yaml:"windows"`
}

// ExportWindow is one window of an ExportDocument.
type ExportWindow struct {
	WindowID int64         `json:"window_id" yaml:"window_id"`
	Groups   []ExportGroup `json:"groups,omitempty" yaml:"groups,omitempty"`
	Tabs     []ExportTab   `json:"tabs" yaml:"tabs"`
}

// ExportGroup is one tab group of an ExportWindow.
type ExportGroup struct {
	StableID  string `json:"stable_id" yaml:"stable_id"`
	Title     string `json:"title" yaml:"title"`
	Color     string `json:"color" yaml:"color"`
	Collapsed bool   `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
}

// ExportTab is one tab of an ExportWindow.
type ExportTab struct {
	StableID      string `json:"stable_id" yaml:"stable_id"`
	Index         int    `json:"index" yaml:"index"`
	Title         string `json:"title" yaml:"title"`
	URL           string `json:"url" yaml:"url"`
	GroupStableID string `json:"group_stable_id,omitempty" yaml:"group_stable_id,omitempty"`
}

// ExportSnapshotInput contains parameters for the ExportSnapshot operation.
type ExportSnapshotInput struct {
	SnapshotID int64
	Format     string // json (default), yaml, markdown
	Path       string // optional; when set the export is written into the exports dir
}

// ExportSnapshotOutput contains the result of the ExportSnapshot operation.
// Content is set when no path was given.
type ExportSnapshotOutput struct {
	Format  ExportFormat `json:"format"`
	Path    string       `json:"path,omitempty"`
	Bytes   int          `json:"bytes"`
	Content string       `json:"content,omitempty"`
}

// ExportSnapshot renders a snapshot and either returns it or writes it to a
// file directly inside exportsDir.
func ExportSnapshot(ctx context.Context, database *sql.DB, exportsDir string, input ExportSnapshotInput) (*ExportSnapshotOutput, error) {
	format, err := ParseExportFormat(input.Format)
	if err != nil {
		return nil, err
	}

	var dest string
	if input.Path != "" {
		if dest, err = ResolveExportPath(input.Path, exportsDir, format); err != nil {
			return nil, err
		}
	}

	doc, err := LoadExportDocument(ctx, database, input.SnapshotID)
	if err != nil {
		return nil, err
	}
	data, err := RenderExport(doc, format)
	if err != nil {
		return nil, err
	}

	out := &ExportSnapshotOutput{Format: format, Bytes: len(data)}
	if dest == "" {
		out.Content = string(data)
		return out, nil
	}
	if err := writeAtomic(dest, data); err != nil {
		return nil, err
	}
	out.Path = dest
	return out, nil
}

// DefaultExportName is the file name used when a surface writes an export
// without an explicit path: <workspace>-<snapshot id>-<timestamp>.<ext>.
func DefaultExportName(doc *ExportDocument, format ExportFormat, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s%s", SanitizeForFilename(strings.ToLower(doc.WorkspaceName)),
		doc.SnapshotID, now.Format("2006-01-02T150405"), format.extensions()[0])
}

// LoadExportDocument reads a snapshot and its workspace into an ExportDocument.
func LoadExportDocument(ctx context.Context, database *sql.DB, snapshotID int64) (*ExportDocument, error) {
	topo, err := fetchTopology(ctx, database, snapshotID)
	if err != nil {
		return nil, err
	}
	w, err := db.GetWorkspace(ctx, database, topo.Snapshot.WorkspaceID)
	if err != nil {
		return nil, err
	}

	doc := &ExportDocument{
		SchemaVersion: "1.0",
		SnapshotID:    topo.Snapshot.ID,
		WorkspaceID:   w.ID,
		WorkspaceName: w.Name,
		CapturedAt:    time.UnixMilli(topo.Snapshot.CreatedAt).UTC(),
		Windows:       make([]ExportWindow, 0, len(topo.Windows)),
	}
	if topo.Snapshot.Label != nil {
		doc.Label = *topo.Snapshot.Label
	}
	for _, win := range topo.Windows {
		ew := ExportWindow{WindowID: win.WindowID, Tabs: make([]ExportTab, 0, len(win.Tabs))}
		for _, g := range win.Groups {
			ew.Groups = append(ew.Groups, ExportGroup{StableID: g.StableID, Title: g.Title, Color: g.Color, Collapsed: g.Collapsed})
		}
		for _, t := range win.Tabs {
			et := ExportTab{StableID: t.StableID, Index: t.Index, Title: t.Title, URL: t.URL}
			if t.GroupStableID != nil {
				et.GroupStableID = *t.GroupStableID
			}
			ew.Tabs = append(ew.Tabs, et)
		}
		doc.Windows = append(doc.Windows, ew)
	}
	return doc, nil
}

// RenderExport serializes doc in the given format.
func RenderExport(doc *ExportDocument, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := enc.Close(); err != nil {
			return nil, errors.NewInternal(err)
		}
		return buf.Bytes(), nil
	case FormatMarkdown:
		return []byte(RenderMarkdown(doc)), nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return append(data, '\n'), nil
	}
}

// RenderMarkdown renders doc as a readable outline, one section per window.
func RenderMarkdown(doc *ExportDocument) string {
	var b strings.Builder

	title := doc.Label
	if title == "" {
		title = fmt.Sprintf("Snapshot %d", doc.SnapshotID)
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(title))
	fmt.Fprintf(&b, "Workspace: **%s**  \nCaptured: %s\n", escapeMarkdown(doc.WorkspaceName), doc.CapturedAt.Format(time.RFC3339))

	for _, w := range doc.Windows {
		fmt.Fprintf(&b, "\n## Window %d\n\n", w.WindowID)

		groupTitle := make(map[string]string, len(w.Groups))
		for _, g := range w.Groups {
			groupTitle[g.StableID] = g.Title
		}
		if len(w.Tabs) == 0 {
			b.WriteString("_No tabs._\n")
		}
		for _, t := range w.Tabs {
			fmt.Fprintf(&b, "1. [%s](%s)", escapeMarkdown(t.Title), escapeURL(t.URL))
			if g, ok := groupTitle[t.GroupStableID]; ok {
				fmt.Fprintf(&b, " `%s`", strings.ReplaceAll(g, "`", "'"))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", ">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func escapeURL(s string) string {
	return strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29").Replace(s)
}

// writeAtomic writes to a temp file next to path and renames it into place,
// preserving any existing file on failure.
func writeAtomic(path string, data []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows os.Rename fails if the destination exists; the existing file is kept.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
