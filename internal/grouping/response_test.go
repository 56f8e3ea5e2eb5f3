package grouping

import (
	"testing"

	"github.com/lmdevv/tabby-sub002/internal/errors"
)

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"groups":[{"name":"  Go  docs ","tabIds":[1,2],"color":"blue"}],"ungroupedTabs":[3]}`))
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].Name != "Go docs" || resp.Groups[0].Color != "blue" {
		t.Errorf("groups = %+v", resp.Groups)
	}
	if len(resp.UngroupedTabs) != 1 || resp.UngroupedTabs[0] != 3 {
		t.Errorf("ungrouped = %v", resp.UngroupedTabs)
	}
}

func TestDecodeResponse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `groups please`},
		{name: "unknown field", body: `{"groups":[],"ungroupedTabs":[],"extra":true}`},
		{name: "unknown group field", body: `{"groups":[{"name":"a","tabIds":[],"emoji":"x"}],"ungroupedTabs":[]}`},
		{name: "missing groups", body: `{"ungroupedTabs":[]}`},
		{name: "missing ungrouped", body: `{"groups":[]}`},
		{name: "string tab id", body: `{"groups":[{"name":"a","tabIds":["1"]}],"ungroupedTabs":[]}`},
		{name: "blank name", body: `{"groups":[{"name":"  ","tabIds":[1]}],"ungroupedTabs":[]}`},
		{name: "missing tabIds", body: `{"groups":[{"name":"a"}],"ungroupedTabs":[]}`},
		{name: "bad color", body: `{"groups":[{"name":"a","tabIds":[1],"color":"magenta"}],"ungroupedTabs":[]}`},
		{name: "trailing data", body: `{"groups":[],"ungroupedTabs":[]} {"groups":[]}`},
		{name: "array", body: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse([]byte(tt.body))
			if !errors.Is(err, errors.ErrValidationFailed) {
				t.Fatalf("error = %v, want VALIDATION_FAILED", err)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"{\"a\":1}":                   `{"a":1}`,
		"```json\n{\"a\":1}\n```":     `{"a":1}`,
		"```\n{\"a\":1}\n```\n":       `{"a":1}`,
		"  ```json\n{\"a\":1}```  ":   `{"a":1}`,
		"```{\"a\":1}```":             `{"a":1}`,
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
