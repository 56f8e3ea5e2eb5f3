package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
	"github.com/lmdevv/tabby-sub002/internal/ops"
	"github.com/lmdevv/tabby-sub002/internal/web"
)

// maxStdinBytes caps piped input (grouping responses).
const maxStdinBytes = 4 << 20

// appEnv carries what the commands need. It is nil for --help/--version.
type appEnv struct {
	db         *sql.DB
	cfg        *config.Config
	grouper    grouping.Grouper
	logger     *zap.Logger
	baseDir    string
	exportsDir string
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(rt *appEnv) *cli.App {
	app := &cli.App{
		Name:    "tabby",
		Usage:   "Persistent browser workspaces",
		Version: Version,
		Commands: []*cli.Command{
			workspaceCmd(rt),
			tabCmd(rt),
			snapshotCmd(rt),
			contextCmd(rt),
			applyCmd(rt),
			organizeCmd(rt),
			settingCmd(rt),
			resourceCmd(rt),
			uiCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// workspaceCmd groups the workspace lifecycle commands.
func workspaceCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "workspace",
		Usage: "Create, switch and delete workspaces",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List workspaces, most recently opened first",
				Action: func(c *cli.Context) error {
					output, err := ops.ListWorkspaces(c.Context, rt.db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "create",
				Usage:     "Create a workspace",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Description"},
					&cli.Int64Flag{Name: "group", Aliases: []string{"g"}, Usage: "Workspace group id"},
					&cli.BoolFlag{Name: "activate", Aliases: []string{"a"}, Usage: "Make it the active workspace"},
				},
				Action: func(c *cli.Context) error {
					input := ops.CreateWorkspaceInput{
						Name:     strings.Join(c.Args().Slice(), " "),
						Activate: c.Bool("activate"),
					}
					if c.IsSet("description") {
						d := c.String("description")
						input.Description = &d
					}
					if c.IsSet("group") {
						g := c.Int64("group")
						input.GroupID = &g
					}
					output, err := ops.CreateWorkspace(c.Context, rt.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a workspace with its tab counts",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.GetWorkspace(c.Context, rt.db, ops.GetWorkspaceInput{WorkspaceID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "update",
				Usage:     "Rename a workspace, edit its description or move it between groups",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description (empty clears)"},
					&cli.Int64Flag{Name: "group", Aliases: []string{"g"}, Usage: "Move to this workspace group"},
					&cli.BoolFlag{Name: "ungroup", Usage: "Remove from its workspace group"},
				},
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					input := ops.UpdateWorkspaceInput{WorkspaceID: id, Ungroup: c.Bool("ungroup")}
					if c.IsSet("name") {
						n := c.String("name")
						input.Name = &n
					}
					if c.IsSet("description") {
						d := c.String("description")
						input.Description = &d
					}
					if c.IsSet("group") {
						g := c.Int64("group")
						input.GroupID = &g
					}
					output, err := ops.UpdateWorkspace(c.Context, rt.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "activate",
				Usage:     "Make a workspace active; every other workspace's tabs are archived",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.Activate(c.Context, rt.db, ops.ActivateInput{WorkspaceID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "deactivate",
				Usage:     "Archive the tabs of a workspace (default: the active one)",
				ArgsUsage: "[id]",
				Action: func(c *cli.Context) error {
					input := ops.DeactivateInput{}
					if c.NArg() > 0 {
						id, err := parseID(c.Args().First())
						if err != nil {
							return outputError(err)
						}
						input.WorkspaceID = &id
					}
					output, err := ops.Deactivate(c.Context, rt.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "ensure-active",
				Usage: "Activate the most recently opened workspace when none is active",
				Action: func(c *cli.Context) error {
					output, err := ops.EnsureActive(c.Context, rt.db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a workspace; its tabs become unassigned",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DeleteWorkspace(c.Context, rt.db, ops.DeleteWorkspaceInput{WorkspaceID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// tabCmd groups the tab queries and edits.
func tabCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "tab",
		Usage: "List, move and annotate tabs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tabs ordered by window and index",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace id (-1 for unassigned tabs)"},
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "active|archived"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ListTabsInput{Status: c.String("status")}
					if c.IsSet("workspace") {
						w := c.Int64("workspace")
						input.WorkspaceID = &w
					}
					output, err := ops.ListTabs(c.Context, rt.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "move",
				Usage:     "Move tabs to another workspace",
				ArgsUsage: "<tab id>...",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "to", Required: true, Usage: "Target workspace id"},
				},
				Action: func(c *cli.Context) error {
					ids := make([]int64, 0, c.NArg())
					for _, arg := range c.Args().Slice() {
						id, err := parseID(arg)
						if err != nil {
							return outputError(err)
						}
						ids = append(ids, id)
					}
					output, err := ops.MoveTabs(c.Context, rt.db, ops.MoveTabsInput{TabIDs: ids, WorkspaceID: c.Int64("to")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "annotate",
				Usage:     "Set the tags or description of a tab",
				ArgsUsage: "<tab id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags (empty clears)"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Description (empty clears)"},
				},
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					input := ops.UpdateTabMetaInput{TabID: id}
					if c.IsSet("tags") {
						input.Tags = parseTags(c.String("tags"))
						if input.Tags == nil {
							input.Tags = []string{}
						}
					}
					if c.IsSet("description") {
						d := c.String("description")
						input.Description = &d
					}
					output, err := ops.UpdateTabMeta(c.Context, rt.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// snapshotCmd groups the snapshot commands.
func snapshotCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Capture, inspect and export workspace snapshots",
		Subcommands: []*cli.Command{
			{
				Name:      "capture",
				Usage:     "Record the tab and group topology of a workspace",
				ArgsUsage: "<workspace id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Snapshot label"},
				},
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					input := ops.CaptureSnapshotInput{WorkspaceID: id}
					if c.IsSet("label") {
						l := c.String("label")
						input.Label = &l
					}
					output, err := ops.CaptureSnapshot(c.Context, rt.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "list",
				Usage:     "List the snapshots of a workspace, newest first",
				ArgsUsage: "<workspace id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ListSnapshots(c.Context, rt.db, ops.ListSnapshotsInput{WorkspaceID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Show a snapshot's windows, groups and tabs",
				ArgsUsage: "<snapshot id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.FetchSnapshot(c.Context, rt.db, ops.FetchSnapshotInput{SnapshotID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a snapshot",
				ArgsUsage: "<snapshot id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DeleteSnapshot(c.Context, rt.db, ops.DeleteSnapshotInput{SnapshotID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "purge",
				Usage: "Delete snapshots older than the retention period",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Usage: "Override retention, e.g. 7d"},
				},
				Action: func(c *cli.Context) error {
					input := ops.PurgeSnapshotsInput{}
					if olderThan := c.String("older-than"); olderThan != "" {
						days, err := parseDuration(olderThan)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.OlderThanDays = &days
					}
					output, err := ops.PurgeSnapshots(c.Context, rt.db, rt.cfg, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "export",
				Usage:     "Export a snapshot as json, yaml or markdown",
				ArgsUsage: "<snapshot id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "json|yaml|markdown"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "File name inside the exports directory (default: print)"},
				},
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ExportSnapshot(c.Context, rt.db, rt.exportsDir, ops.ExportSnapshotInput{
						SnapshotID: id,
						Format:     c.String("format"),
						Path:       c.String("output"),
					})
					if err != nil {
						return outputError(err)
					}
					if output.Path == "" {
						_, err := io.WriteString(os.Stdout, output.Content)
						return err
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// contextCmd prints the projection a grouping model would see.
func contextCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "context",
		Usage: "Print the grouping context of a workspace",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace id (default: active)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.GroupingContextInput{}
			if c.IsSet("workspace") {
				w := c.Int64("workspace")
				input.WorkspaceID = &w
			}
			output, err := ops.GroupingContext(c.Context, rt.db, rt.cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// applyCmd applies a grouping response read from stdin.
func applyCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Validate and apply a grouping response (reads JSON from stdin)",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "workspace", Aliases: []string{"w"}, Required: true, Usage: "Workspace id"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Validate and plan without writing"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("grouping response must be piped via stdin"))
			}
			data, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			resp, err := grouping.DecodeResponse([]byte(data))
			if err != nil {
				return outputError(err)
			}
			output, err := ops.ApplyGrouping(c.Context, rt.db, rt.cfg, ops.ApplyGroupingInput{
				WorkspaceID: c.Int64("workspace"),
				Response:    resp,
				DryRun:      c.Bool("dry-run"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// organizeCmd asks the grouping model to organize a workspace.
func organizeCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "organize",
		Usage: "Group the tabs of a workspace with the configured model",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace id (default: active)"},
			&cli.StringFlag{Name: "instruction", Aliases: []string{"i"}, Usage: "Extra instruction for the model"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Validate and plan without writing"},
		},
		Action: func(c *cli.Context) error {
			input := ops.OrganizeInput{
				Instruction: c.String("instruction"),
				DryRun:      c.Bool("dry-run"),
			}
			if c.IsSet("workspace") {
				w := c.Int64("workspace")
				input.WorkspaceID = &w
			}
			output, err := ops.Organize(c.Context, rt.db, rt.cfg, rt.grouper, rt.logger, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// settingCmd groups the key/value settings commands.
func settingCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "setting",
		Usage: "Read and write settings",
		Subcommands: []*cli.Command{
			{
				Name: "list",
				Action: func(c *cli.Context) error {
					output, err := ops.ListSettings(c.Context, rt.db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetSetting(c.Context, rt.db, ops.SettingInput{Key: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "set",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					output, err := ops.SetSetting(c.Context, rt.db, ops.SetSettingInput{
						Key:   c.Args().Get(0),
						Value: c.Args().Get(1),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				ArgsUsage: "<key>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteSetting(c.Context, rt.db, ops.SettingInput{Key: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// resourceCmd groups the bookmark commands.
func resourceCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "resource",
		Usage: "Manage saved resources and resource groups",
		Subcommands: []*cli.Command{
			{
				Name: "list",
				Action: func(c *cli.Context) error {
					output, err := ops.ListResources(c.Context, rt.db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "add",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title (defaults to the URL)"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
					&cli.Int64Flag{Name: "group", Aliases: []string{"g"}, Usage: "Append to this resource group"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.CreateResource(c.Context, rt.db, ops.CreateResourceInput{
						URL:   c.Args().First(),
						Title: c.String("title"),
						Tags:  parseTags(c.String("tags")),
					})
					if err != nil {
						return outputError(err)
					}
					if c.IsSet("group") {
						if _, err := ops.AddResourceToGroup(c.Context, rt.db, ops.ResourceMembershipInput{
							GroupID:    c.Int64("group"),
							ResourceID: output.ID,
						}); err != nil {
							return outputError(err)
						}
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				ArgsUsage: "<resource id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DeleteResource(c.Context, rt.db, ops.DeleteResourceInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "groups",
				Usage: "List resource groups",
				Action: func(c *cli.Context) error {
					output, err := ops.ListResourceGroups(c.Context, rt.db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "group-create",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.CreateResourceGroup(c.Context, rt.db, ops.CreateResourceGroupInput{
						Name: strings.Join(c.Args().Slice(), " "),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// uiCmd serves the HTTP API until interrupted, reloading config.json on change.
func uiCmd(rt *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the HTTP API and pages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			h := web.NewHandlers(rt.db, rt.cfg, rt.grouper, rt.logger, Version)

			if purged, err := ops.PurgeSnapshots(ctx, rt.db, rt.cfg, ops.PurgeSnapshotsInput{}); err != nil {
				rt.logger.Warn("snapshot retention purge failed", zap.Error(err))
			} else if purged.Purged > 0 {
				rt.logger.Info("purged expired snapshots", zap.Int64("count", purged.Purged))
			}

			go func() {
				err := config.Watch(ctx, rt.baseDir, rt.logger, h.SetConfig)
				if err != nil {
					rt.logger.Warn("config watcher stopped", zap.Error(err))
				}
			}()

			bind := rt.cfg.HTTPBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := rt.cfg.HTTPPort
			if c.IsSet("port") {
				port = c.Int("port")
			}

			return web.Run(ctx, web.NewServer(h, bind, port), rt.logger)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if te, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", te.Code, te.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseID parses a positive row id argument.
func parseID(s string) (int64, error) {
	if s == "" {
		return 0, errors.NewInvalidRequest("id argument is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
