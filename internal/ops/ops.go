// Package ops implements the workspace lifecycle engine and every operation
// the CLI, MCP and HTTP surfaces expose. Multi-table transitions run inside
// a single db.WithTx call; reads go straight to the store.
package ops

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// Field limits
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
	MaxSettingKeyLength  = 200
	MaxMoveTabs          = 500
)

// Transition names recorded in tabby_transitions_total.
const (
	opCreate        = "create_workspace"
	opActivate      = "activate"
	opDeactivate    = "deactivate"
	opEnsureActive  = "ensure_active"
	opDelete        = "delete_workspace"
	opMoveTabs      = "move_tabs"
	opCapture       = "capture_snapshot"
	opApplyGrouping = "apply_grouping"
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// requireName cleans a display name and rejects empty or oversized values.
func requireName(kind, name string) (string, error) {
	n := model.CleanName(name)
	if n == "" {
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s name must not be empty", kind))
	}
	if utf8.RuneCountInString(n) > MaxNameLength {
		return "", errors.NewInvalidRequest(fmt.Sprintf("%s name exceeds %d characters", kind, MaxNameLength))
	}
	return n, nil
}

// optionalText trims s; a blank value clears the field.
func optionalText(field string, s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > MaxDescriptionLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s exceeds %d characters", field, MaxDescriptionLength))
	}
	return &v, nil
}

// parseStatus accepts "", "active" or "archived".
func parseStatus(s string) (model.Status, error) {
	st := model.Status(strings.ToLower(strings.TrimSpace(s)))
	if st == "" || st.Valid() {
		return st, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("status must be %q or %q", model.StatusActive, model.StatusArchived))
}

// firstDuplicate reports the first repeated id, if any.
func firstDuplicate(ids []int64) (int64, bool) {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id, true
		}
		seen[id] = true
	}
	return 0, false
}

func pluralize(n int64, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
