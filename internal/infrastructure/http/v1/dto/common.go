// Package dto defines request and response shapes of API v1.
package dto

// IDResponse returns a created resource identifier.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse is a generic operation acknowledgement.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ListResponse wraps a list payload with its total count.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
