// Package viewstate reconciles persisted per-user view state (filters,
// sorts, column selections, form drafts) against the current entity schema,
// dropping references to fields that no longer exist.
package viewstate

import "metaform/internal/schema"

// BrowseFilter is one saved filter line of a browse view.
type BrowseFilter struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// BrowseSort is one saved sort key.
type BrowseSort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// BrowseState is the persisted state of a browse (list) view.
type BrowseState struct {
	Filters  []BrowseFilter `json:"filters,omitempty"`
	Sorts    []BrowseSort   `json:"sorts,omitempty"`
	Search   string         `json:"search,omitempty"`
	Page     int            `json:"page,omitempty"`
	PageSize int            `json:"pageSize,omitempty"`
	Columns  []string       `json:"columns,omitempty"`
}

// FormState is the persisted state of a form view.
type FormState struct {
	ActiveTab       string         `json:"activeTab,omitempty"`
	CollapsedGroups []string       `json:"collapsedGroups,omitempty"`
	Draft           map[string]any `json:"draft,omitempty"`
}

// ViewState is everything persisted for one user and entity type.
type ViewState struct {
	Browse *BrowseState `json:"browse,omitempty"`
	Form   *FormState   `json:"form,omitempty"`
}

// RemovedRef records one state entry dropped during reconciliation.
type RemovedRef struct {
	// Type is the kind of entry: filter, sort, column or draft.
	Type string `json:"type"`
	// ID identifies the entry where one exists (filter IDs).
	ID string `json:"id,omitempty"`
	// Field is the schema field the entry referenced.
	Field string `json:"field"`
}

// ReconcileResult is the outcome of a reconciliation pass.
type ReconcileResult struct {
	State       *ViewState   `json:"state"`
	WasModified bool         `json:"wasModified"`
	Removed     []RemovedRef `json:"removed,omitempty"`
}

// Reconcile validates a persisted state against the set of currently valid
// field names. Stale references are dropped, valid entries survive untouched
// and the input state is never mutated. Reconciliation cannot fail: a nil
// state yields an empty one.
func Reconcile(state *ViewState, validFields map[string]struct{}) ReconcileResult {
	result := ReconcileResult{State: &ViewState{}}
	if state == nil {
		return result
	}

	if state.Browse != nil {
		browse := &BrowseState{
			Search:   state.Browse.Search,
			Page:     state.Browse.Page,
			PageSize: state.Browse.PageSize,
		}
		for _, filter := range state.Browse.Filters {
			if _, ok := validFields[filter.Field]; !ok {
				result.Removed = append(result.Removed, RemovedRef{Type: "filter", ID: filter.ID, Field: filter.Field})
				continue
			}
			browse.Filters = append(browse.Filters, filter)
		}
		for _, sortKey := range state.Browse.Sorts {
			if _, ok := validFields[sortKey.Field]; !ok {
				result.Removed = append(result.Removed, RemovedRef{Type: "sort", Field: sortKey.Field})
				continue
			}
			browse.Sorts = append(browse.Sorts, sortKey)
		}
		for _, column := range state.Browse.Columns {
			if _, ok := validFields[column]; !ok {
				result.Removed = append(result.Removed, RemovedRef{Type: "column", Field: column})
				continue
			}
			browse.Columns = append(browse.Columns, column)
		}
		result.State.Browse = browse
	}

	if state.Form != nil {
		form := &FormState{ActiveTab: state.Form.ActiveTab}
		form.CollapsedGroups = append([]string(nil), state.Form.CollapsedGroups...)
		if state.Form.Draft != nil {
			form.Draft = make(map[string]any, len(state.Form.Draft))
			for field, value := range state.Form.Draft {
				if _, ok := validFields[field]; !ok {
					result.Removed = append(result.Removed, RemovedRef{Type: "draft", Field: field})
					continue
				}
				form.Draft[field] = value
			}
		}
		result.State.Form = form
	}

	result.WasModified = len(result.Removed) > 0
	return result
}

// ReconcileWithSchema reconciles against an entity schema's field list.
func ReconcileWithSchema(state *ViewState, entity *schema.EntitySchema) ReconcileResult {
	valid := make(map[string]struct{})
	if entity != nil {
		for i := range entity.Fields {
			valid[entity.Fields[i].Field] = struct{}{}
		}
	}
	return Reconcile(state, valid)
}
