package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// CreateResourceInput contains parameters for the CreateResource operation.
type CreateResourceInput struct {
	URL         string // required
	Title       string // default: the URL
	Tags        []string
	Description *string
}

// CreateResource stores a bookmark.
func CreateResource(ctx context.Context, database *sql.DB, input CreateResourceInput) (*model.Resource, error) {
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return nil, errors.NewInvalidRequest("url is required")
	}
	title := model.CleanName(input.Title)
	if title == "" {
		title = url
	}
	desc, err := optionalText("description", input.Description)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	r := &model.Resource{
		URL:         url,
		Title:       title,
		Tags:        model.CleanTags(input.Tags),
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.InsertResource(ctx, database, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateResourceInput contains parameters for the UpdateResource operation.
// Nil fields are left unchanged; an empty non-nil Tags clears them.
type UpdateResourceInput struct {
	ID          int64
	URL         *string
	Title       *string
	Tags        []string
	Description *string
}

// UpdateResource edits a bookmark in place.
func UpdateResource(ctx context.Context, database *sql.DB, input UpdateResourceInput) (*model.Resource, error) {
	desc, err := optionalText("description", input.Description)
	if err != nil {
		return nil, err
	}

	var r *model.Resource
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if r, err = db.GetResource(ctx, tx, input.ID); err != nil {
			return err
		}
		if input.URL != nil {
			url := strings.TrimSpace(*input.URL)
			if url == "" {
				return errors.NewInvalidRequest("url must not be empty")
			}
			r.URL = url
		}
		if input.Title != nil {
			if r.Title = model.CleanName(*input.Title); r.Title == "" {
				r.Title = r.URL
			}
		}
		if input.Tags != nil {
			r.Tags = model.CleanTags(input.Tags)
		}
		if input.Description != nil {
			r.Description = desc
		}
		r.UpdatedAt = nowMillis()
		return db.UpdateResource(ctx, tx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteResourceInput contains parameters for the DeleteResource operation.
type DeleteResourceInput struct {
	ID int64
}

// DeleteResourceOutput contains the result of the DeleteResource operation.
type DeleteResourceOutput struct {
	DeletedID     int64 `json:"deleted_id"`
	GroupsUpdated int   `json:"groups_updated"`
}

// DeleteResource removes a bookmark and strips it from every resource group.
func DeleteResource(ctx context.Context, database *sql.DB, input DeleteResourceInput) (*DeleteResourceOutput, error) {
	out := &DeleteResourceOutput{DeletedID: input.ID}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		if err := db.DeleteResource(ctx, tx, input.ID); err != nil {
			return err
		}
		groups, err := db.ListResourceGroups(ctx, tx)
		if err != nil {
			return err
		}
		now := nowMillis()
		for i := range groups {
			g := &groups[i]
			kept, removed := without(g.ResourceIDs, input.ID)
			if !removed {
				continue
			}
			g.ResourceIDs = kept
			g.UpdatedAt = now
			if err := db.UpdateResourceGroup(ctx, tx, g); err != nil {
				return err
			}
			out.GroupsUpdated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListResources returns every bookmark, newest first.
func ListResources(ctx context.Context, database *sql.DB) ([]model.Resource, error) {
	return db.ListResources(ctx, database)
}

// without returns ids minus every occurrence of id, preserving order.
func without(ids []int64, id int64) ([]int64, bool) {
	out := make([]int64, 0, len(ids))
	removed := false
	for _, v := range ids {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// samePermutation reports whether b reorders a exactly.
func samePermutation(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int64]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		if counts[v] == 0 {
			return false
		}
		counts[v]--
	}
	return true
}

func describeIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
