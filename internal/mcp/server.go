package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"workspace", "tab", "identity", "snapshot", "grouping", "resource", "setting"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	// workspace
	"workspace_create": {
		def:     workspaceCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceCreate },
	},
	"workspace_update": {
		def:     workspaceUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceUpdate },
	},
	"workspace_get": {
		def:     workspaceGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceGet },
	},
	"workspace_list": {
		def:     workspaceListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceList },
	},
	"workspace_activate": {
		def:     workspaceActivateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceActivate },
	},
	"workspace_deactivate": {
		def:     workspaceDeactivateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceDeactivate },
	},
	"workspace_ensure_active": {
		def:     workspaceEnsureActiveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceEnsureActive },
	},
	"workspace_delete": {
		def:     workspaceDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceDelete },
	},
	"workspace_set_resource_groups": {
		def:     workspaceSetResourceGroupsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceSetResourceGroups },
	},
	"workspace_group_create": {
		def:     workspaceGroupCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceGroupCreate },
	},
	"workspace_group_update": {
		def:     workspaceGroupUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceGroupUpdate },
	},
	"workspace_group_delete": {
		def:     workspaceGroupDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceGroupDelete },
	},
	"workspace_group_list": {
		def:     workspaceGroupListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceGroupList },
	},

	// tab
	"tab_list": {
		def:     tabListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabList },
	},
	"tab_list_groups": {
		def:     tabListGroupsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabListGroups },
	},
	"tab_move": {
		def:     tabMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabMove },
	},
	"tab_update_meta": {
		def:     tabUpdateMetaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTabUpdateMeta },
	},

	// identity
	"identity_observe_tab": {
		def:     identityObserveTabToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentityObserveTab },
	},
	"identity_close_tab": {
		def:     identityCloseTabToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentityCloseTab },
	},
	"identity_observe_group": {
		def:     identityObserveGroupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentityObserveGroup },
	},
	"identity_remove_group": {
		def:     identityRemoveGroupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentityRemoveGroup },
	},
	"identity_begin_session": {
		def:     identityBeginSessionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentityBeginSession },
	},
	"identity_reconcile": {
		def:     identityReconcileToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIdentityReconcile },
	},

	// snapshot
	"snapshot_capture": {
		def:     snapshotCaptureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotCapture },
	},
	"snapshot_fetch": {
		def:     snapshotFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotFetch },
	},
	"snapshot_list": {
		def:     snapshotListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotList },
	},
	"snapshot_delete": {
		def:     snapshotDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotDelete },
	},
	"snapshot_purge": {
		def:     snapshotPurgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotPurge },
	},
	"snapshot_export": {
		def:     snapshotExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshotExport },
	},

	// grouping
	"grouping_context": {
		def:     groupingContextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupingContext },
	},
	"grouping_apply": {
		def:     groupingApplyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupingApply },
	},
	"grouping_organize": {
		def:     groupingOrganizeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupingOrganize },
	},

	// resource
	"resource_create": {
		def:     resourceCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceCreate },
	},
	"resource_update": {
		def:     resourceUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceUpdate },
	},
	"resource_delete": {
		def:     resourceDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceDelete },
	},
	"resource_list": {
		def:     resourceListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceList },
	},
	"resource_group_create": {
		def:     resourceGroupCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceGroupCreate },
	},
	"resource_group_update": {
		def:     resourceGroupUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceGroupUpdate },
	},
	"resource_group_add": {
		def:     resourceGroupAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceGroupAdd },
	},
	"resource_group_remove": {
		def:     resourceGroupRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceGroupRemove },
	},
	"resource_group_delete": {
		def:     resourceGroupDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceGroupDelete },
	},
	"resource_group_list": {
		def:     resourceGroupListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResourceGroupList },
	},

	// setting
	"setting_get": {
		def:     settingGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingGet },
	},
	"setting_set": {
		def:     settingSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingSet },
	},
	"setting_list": {
		def:     settingListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingList },
	},
	"setting_delete": {
		def:     settingDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingDelete },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "snapshot_capture" → "snapshot").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the tabby tools registered.
// Tools listed in the config's DisabledTools or belonging to DisabledTypes
// are excluded from registration.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"tabby",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	if h.cfg != nil {
		for _, tool := range ExpandTypesToTools(h.cfg.DisabledTypes) {
			disabled[tool] = true
		}
		for _, name := range h.cfg.DisabledTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(h *Handlers, version string) error {
	s := NewServer(h, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
