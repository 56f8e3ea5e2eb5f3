package grouping

import (
	"fmt"
	"strings"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
)

// ViolationCode identifies a broken grouping invariant.
type ViolationCode string

const (
	ViolationMalformed      ViolationCode = "malformed_response"
	ViolationDuplicateTab   ViolationCode = "duplicate_tab"
	ViolationUnknownTab     ViolationCode = "unknown_tab"
	ViolationMissingTab     ViolationCode = "missing_tab"
	ViolationWindowMismatch ViolationCode = "window_mismatch"
	ViolationDuplicateGroup ViolationCode = "duplicate_group"
)

// Violation is one broken invariant, with the tabs and windows involved.
type Violation struct {
	Code      ViolationCode `json:"code"`
	Message   string        `json:"message"`
	Group     string        `json:"group,omitempty"`
	TabIDs    []int64       `json:"tab_ids,omitempty"`
	WindowIDs []int64       `json:"window_ids,omitempty"`
}

// Validate checks a response against the context it was produced for and
// returns every violation found, or nil if the response may be applied.
//
// Every context tab must appear exactly once across all groups and the
// ungrouped list, no id outside the context may appear, and each group must
// stay within the window of its first tab. Two groups may not share a name
// (case-insensitively) in the same window.
func Validate(c *Context, r *Response) []Violation {
	windowOf := make(map[int64]int64, len(c.Tabs))
	for _, t := range c.Tabs {
		windowOf[t.ID] = t.WindowID
	}

	var (
		counts  = make(map[int64]int)
		order   []int64
		unknown []int64
	)
	note := func(id int64) {
		if counts[id] == 0 {
			order = append(order, id)
			if _, ok := windowOf[id]; !ok {
				unknown = append(unknown, id)
			}
		}
		counts[id]++
	}
	for _, g := range r.Groups {
		for _, id := range g.TabIDs {
			note(id)
		}
	}
	for _, id := range r.UngroupedTabs {
		note(id)
	}

	var violations []Violation

	for _, id := range order {
		if counts[id] > 1 {
			violations = append(violations, Violation{
				Code:    ViolationDuplicateTab,
				Message: fmt.Sprintf("tab %d appears %d times", id, counts[id]),
				TabIDs:  []int64{id},
			})
		}
	}

	for _, id := range unknown {
		violations = append(violations, Violation{
			Code:    ViolationUnknownTab,
			Message: fmt.Sprintf("tab %d is not in the context", id),
			TabIDs:  []int64{id},
		})
	}

	for _, t := range c.Tabs {
		if counts[t.ID] == 0 {
			violations = append(violations, Violation{
				Code:    ViolationMissingTab,
				Message: fmt.Sprintf("tab %d is missing from the response", t.ID),
				TabIDs:  []int64{t.ID},
			})
		}
	}

	for _, g := range r.Groups {
		if v, ok := checkWindow(g, windowOf); !ok {
			violations = append(violations, v)
		}
	}

	violations = append(violations, duplicateGroups(r.Groups, windowOf)...)

	return violations
}

// duplicateGroups reports groups whose name repeats an earlier group
// anchored in the same window.
func duplicateGroups(groups []ResponseGroup, windowOf map[int64]int64) []Violation {
	type key struct {
		window int64
		name   string
	}
	first := make(map[key]int)
	var violations []Violation
	for i, g := range groups {
		w, ok := anchorWindow(g, windowOf)
		if !ok {
			continue
		}
		k := key{w, strings.ToLower(g.Name)}
		j, seen := first[k]
		if !seen {
			first[k] = i
			continue
		}
		violations = append(violations, Violation{
			Code:      ViolationDuplicateGroup,
			Message:   fmt.Sprintf("group %q repeats group %q in window %d", g.Name, groups[j].Name, w),
			Group:     g.Name,
			TabIDs:    append(append([]int64{}, groups[j].TabIDs...), g.TabIDs...),
			WindowIDs: []int64{w},
		})
	}
	return violations
}

func anchorWindow(g ResponseGroup, windowOf map[int64]int64) (int64, bool) {
	for _, id := range g.TabIDs {
		if w, ok := windowOf[id]; ok {
			return w, true
		}
	}
	return 0, false
}

// checkWindow anchors a group on its first known tab and reports the tabs
// that live in other windows.
func checkWindow(g ResponseGroup, windowOf map[int64]int64) (Violation, bool) {
	var (
		anchorTab    int64
		anchorWindow int64
		anchored     bool
		offending    []int64
		windows      []int64
		seenWindow   = make(map[int64]bool)
	)
	for _, id := range g.TabIDs {
		w, ok := windowOf[id]
		if !ok {
			continue
		}
		if !anchored {
			anchorTab, anchorWindow, anchored = id, w, true
			windows = append(windows, w)
			seenWindow[w] = true
			continue
		}
		if w != anchorWindow {
			offending = append(offending, id)
			if !seenWindow[w] {
				seenWindow[w] = true
				windows = append(windows, w)
			}
		}
	}
	if len(offending) == 0 {
		return Violation{}, true
	}
	return Violation{
		Code:      ViolationWindowMismatch,
		Message:   fmt.Sprintf("group %q spans windows %v: tabs %v are not in window %d of tab %d", g.Name, windows, offending, anchorWindow, anchorTab),
		Group:     g.Name,
		TabIDs:    append([]int64{anchorTab}, offending...),
		WindowIDs: windows,
	}, false
}

// Check validates r against c and returns a VALIDATION_FAILED error carrying
// every violation, or nil.
func Check(c *Context, r *Response) error {
	violations := Validate(c, r)
	if len(violations) > 0 {
		metrics.GroupingValidations.WithLabelValues(metrics.ResultRejected).Inc()
		return errors.NewValidationFailed("grouping response rejected", violations, len(violations))
	}
	metrics.GroupingValidations.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}
