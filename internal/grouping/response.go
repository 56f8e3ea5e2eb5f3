package grouping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// ResponseGroup is one proposed tab group.
type ResponseGroup struct {
	Name   string  `json:"name"`
	TabIDs []int64 `json:"tabIds"`
	Color  string  `json:"color,omitempty"`
}

// Response is a proposed grouping for every tab of a Context.
type Response struct {
	Groups        []ResponseGroup `json:"groups"`
	UngroupedTabs []int64         `json:"ungroupedTabs"`
}

// DecodeResponse parses untrusted model output into a Response.
// Unknown fields, trailing data, missing arrays, blank group names and
// unknown colors are all rejected.
func DecodeResponse(data []byte) (*Response, error) {
	var raw struct {
		Groups        *[]ResponseGroup `json:"groups"`
		UngroupedTabs *[]int64         `json:"ungroupedTabs"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, malformed(fmt.Sprintf("invalid JSON: %v", err))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed("unexpected data after the response object")
	}

	if raw.Groups == nil {
		return nil, malformed("groups is required")
	}
	if raw.UngroupedTabs == nil {
		return nil, malformed("ungroupedTabs is required")
	}

	resp := &Response{Groups: *raw.Groups, UngroupedTabs: *raw.UngroupedTabs}
	for i := range resp.Groups {
		g := &resp.Groups[i]
		g.Name = model.CleanName(g.Name)
		if g.Name == "" {
			return nil, malformed(fmt.Sprintf("groups[%d].name is required", i))
		}
		if g.TabIDs == nil {
			return nil, malformed(fmt.Sprintf("groups[%d].tabIds is required", i))
		}
		if g.Color != "" && !model.ValidColor(g.Color) {
			return nil, malformed(fmt.Sprintf("groups[%d].color %q is not a tab group color", i, g.Color))
		}
	}
	return resp, nil
}

func malformed(msg string) error {
	violations := []Violation{{Code: ViolationMalformed, Message: msg}}
	return errors.NewValidationFailed("malformed grouping response", violations, len(violations))
}
