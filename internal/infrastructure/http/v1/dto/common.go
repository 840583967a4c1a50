// Package dto holds the request and response shapes of the HTTP API that
// are not domain entities themselves.
package dto

// ListResponse is one page of a list endpoint.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// ItemsResponse wraps unpaged lists such as trees and histories.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

func Items[T any](items []T) ItemsResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ItemsResponse[T]{Items: items}
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
