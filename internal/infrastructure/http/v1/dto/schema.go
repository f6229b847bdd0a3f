package dto

// OptionsRequest carries the form state an option load depends on.
type OptionsRequest struct {
	Values   map[string]any `json:"values,omitempty"`
	RecordID string         `json:"recordId,omitempty"`
}

// TouchMRURequest records a recently used record.
type TouchMRURequest struct {
	RecordID string `json:"recordId" binding:"required"`
	Label    string `json:"label,omitempty"`
}
