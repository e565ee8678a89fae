/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package esi

import (
	"context"
	"fmt"
	"net/http"
)

// NamedID pairs an id with its display name.
type NamedID struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ResolvedIDs is the answer of a bulk name lookup, grouped by category.
type ResolvedIDs struct {
	Characters     []NamedID `json:"characters"`
	Corporations   []NamedID `json:"corporations"`
	InventoryTypes []NamedID `json:"inventory_types"`
}

// TypeInfo describes an inventory type such as a ship hull.
type TypeInfo struct {
	TypeID  int32  `json:"type_id"`
	Name    string `json:"name"`
	GroupID int32  `json:"group_id"`
}

// ResolveNames maps exact names to ids through POST /universe/ids/.
func (c *Client) ResolveNames(ctx context.Context, names []string) (*ResolvedIDs, error) {
	out := &ResolvedIDs{}
	if len(names) == 0 {
		return out, nil
	}
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		url:    c.endpoint("/universe/ids/", nil),
		body:   names,
		out:    out,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving names: %w", err)
	}
	return out, nil
}

// ResolveIDs maps ids to names through POST /universe/names/.
func (c *Client) ResolveIDs(ctx context.Context, ids []int64) ([]NamedID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []NamedID
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		url:    c.endpoint("/universe/names/", nil),
		body:   ids,
		out:    &out,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving ids: %w", err)
	}
	return out, nil
}

// GetType fetches an inventory type.
func (c *Client) GetType(ctx context.Context, typeID int32) (*TypeInfo, error) {
	var t TypeInfo
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		url:    c.endpoint(fmt.Sprintf("/universe/types/%d/", typeID), nil),
		out:    &t,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching type %d: %w", typeID, err)
	}
	return &t, nil
}
