package schema

import (
	"encoding/json"
	"fmt"
)

// EntityFieldDefinition extends FormFieldSchema with browse and role flags.
// It is the single master definition from which per-view field lists are
// derived, not duplicated by hand.
type EntityFieldDefinition struct {
	FormFieldSchema

	// Browse-oriented flags
	Browsable  bool `json:"browsable,omitempty"`
	Sortable   bool `json:"sortable,omitempty"`
	Filterable bool `json:"filterable,omitempty"`
	Summary    bool `json:"summary,omitempty"`

	// Role flags
	IsPrimary     bool `json:"isPrimary,omitempty"`
	IsIdentifier  bool `json:"isIdentifier,omitempty"`
	SystemManaged bool `json:"systemManaged,omitempty"`

	// SearchWeight biases full-text ranking; zero means default.
	SearchWeight int `json:"searchWeight,omitempty"`
}

// Clone returns a deep copy.
func (d *EntityFieldDefinition) Clone() *EntityFieldDefinition {
	if d == nil {
		return nil
	}
	out := *d
	out.FormFieldSchema = *d.FormFieldSchema.Clone()
	return &out
}

// EntityLookup is a named, reusable OptionsSource referenced by fields via
// lookupRef.
type EntityLookup struct {
	ID      string        `json:"id"`
	Label   string        `json:"label,omitempty"`
	Source  OptionsSource `json:"source"`
	Preload bool          `json:"preload,omitempty"`
}

// BrowseColumn is one column of a browse (list) view.
type BrowseColumn struct {
	Field    string `json:"field"`
	Label    string `json:"label,omitempty"`
	Width    string `json:"width,omitempty"`
	Sortable bool   `json:"sortable,omitempty"`
}

// BrowseViewSchema is the declarative definition of the list view.
type BrowseViewSchema struct {
	Columns       []BrowseColumn `json:"columns,omitempty"`
	DefaultSort   string         `json:"defaultSort,omitempty"` // "field asc|desc"
	PageSize      int            `json:"pageSize,omitempty"`
	EnableSearch  bool           `json:"enableSearch,omitempty"`
	EnableFilters bool           `json:"enableFilters,omitempty"`
}

// EntityViews bundles the per-mode view schemas. Absent add/detail/clone
// views are derived from edit at access time, never treated as empty.
type EntityViews struct {
	Browse *BrowseViewSchema `json:"browse,omitempty"`
	Edit   *FormViewSchema   `json:"edit,omitempty"`
	Add    *FormViewSchema   `json:"add,omitempty"`
	Detail *FormViewSchema   `json:"detail,omitempty"`
	Clone  *FormViewSchema   `json:"clone,omitempty"`
}

// EntityDataSource configures the CRUD endpoints for the entity.
type EntityDataSource struct {
	// Endpoint is required; base URL for the entity's data API.
	Endpoint string `json:"endpoint"`
	// IDField names the identifier property; defaults to "id".
	IDField string `json:"idField,omitempty"`
	// ListResponsePath is a dot-path to the item list in list responses.
	ListResponsePath string `json:"listResponsePath,omitempty"`
	// CountResponsePath is a dot-path to the total count in list responses.
	CountResponsePath string `json:"countResponsePath,omitempty"`
}

// EntityPermissions lists the roles allowed per operation. An empty list
// means any authenticated user.
type EntityPermissions struct {
	Create []string `json:"create,omitempty"`
	Read   []string `json:"read,omitempty"`
	Update []string `json:"update,omitempty"`
	Delete []string `json:"delete,omitempty"`
}

// EntityRoutes carries client route templates for the entity's pages.
type EntityRoutes struct {
	Base   string `json:"base,omitempty"`
	Browse string `json:"browse,omitempty"`
	Add    string `json:"add,omitempty"`
	Edit   string `json:"edit,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// EntityFeatures toggles optional behaviors.
type EntityFeatures struct {
	EnableSoftDelete bool `json:"enableSoftDelete,omitempty"`
	EnableVersioning bool `json:"enableVersioning,omitempty"`
	EnableAudit      bool `json:"enableAudit,omitempty"`
	EnableMru        bool `json:"enableMru,omitempty"`
	// MruLimit bounds the most-recently-used list; zero means service default.
	MruLimit int `json:"mruLimit,omitempty"`
}

// EntitySchema is the aggregate root: the full declarative definition of one
// business-object type. A JSON document of this shape with a dslVersion field
// is both the persisted authoring format and the wire delivery format.
type EntitySchema struct {
	DSLVersion string `json:"dslVersion"`

	ID          string `json:"id"`
	Name        string `json:"name"`
	NamePlural  string `json:"namePlural,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`

	Fields  []EntityFieldDefinition `json:"fields"`
	Lookups []EntityLookup          `json:"lookups,omitempty"`
	Views   EntityViews             `json:"views"`

	DataSource  EntityDataSource   `json:"dataSource"`
	Permissions *EntityPermissions `json:"permissions,omitempty"`
	Routes      *EntityRoutes      `json:"routes,omitempty"`
	Features    EntityFeatures     `json:"features,omitempty"`
}

// FieldByName returns the master field definition with the given name.
func (s *EntitySchema) FieldByName(name string) (*EntityFieldDefinition, bool) {
	for i := range s.Fields {
		if s.Fields[i].Field == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// LookupByID resolves a named lookup.
func (s *EntitySchema) LookupByID(id string) (*EntityLookup, bool) {
	for i := range s.Lookups {
		if s.Lookups[i].ID == id {
			return &s.Lookups[i], true
		}
	}
	return nil, false
}

// PreloadLookups returns the lookups flagged for preloading.
func (s *EntitySchema) PreloadLookups() []EntityLookup {
	var out []EntityLookup
	for _, l := range s.Lookups {
		if l.Preload {
			out = append(out, l)
		}
	}
	return out
}

// Clone returns a deep copy of the schema.
func (s *EntitySchema) Clone() *EntitySchema {
	if s == nil {
		return nil
	}
	out := *s
	out.Fields = make([]EntityFieldDefinition, len(s.Fields))
	for i := range s.Fields {
		out.Fields[i] = *s.Fields[i].Clone()
	}
	if s.Lookups != nil {
		out.Lookups = make([]EntityLookup, len(s.Lookups))
		for i, l := range s.Lookups {
			l.Source = *l.Source.Clone()
			out.Lookups[i] = l
		}
	}
	out.Views = EntityViews{
		Edit:   s.Views.Edit.Clone(),
		Add:    s.Views.Add.Clone(),
		Detail: s.Views.Detail.Clone(),
		Clone:  s.Views.Clone.Clone(),
	}
	if s.Views.Browse != nil {
		b := *s.Views.Browse
		if b.Columns != nil {
			b.Columns = append([]BrowseColumn(nil), b.Columns...)
		}
		out.Views.Browse = &b
	}
	if s.Permissions != nil {
		p := EntityPermissions{
			Create: append([]string(nil), s.Permissions.Create...),
			Read:   append([]string(nil), s.Permissions.Read...),
			Update: append([]string(nil), s.Permissions.Update...),
			Delete: append([]string(nil), s.Permissions.Delete...),
		}
		out.Permissions = &p
	}
	if s.Routes != nil {
		r := *s.Routes
		out.Routes = &r
	}
	return &out
}

// ParseEntitySchema decodes an EntitySchema JSON document.
// Structural and semantic validation is the validator's job; parsing only
// requires well-formed JSON of the right shape.
func ParseEntitySchema(data []byte) (*EntitySchema, error) {
	var s EntitySchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse entity schema: %w", err)
	}
	return &s, nil
}

// SerializeEntitySchema encodes the schema as its canonical JSON document.
func SerializeEntitySchema(s *EntitySchema) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("serialize entity schema: nil schema")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("serialize entity schema: %w", err)
	}
	return data, nil
}
