package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeRedirect tells the caller to navigate to target.
func writeRedirect(w http.ResponseWriter, message, target string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: message, Redirect: target})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// SessionResponse reports whether the client holds a credential.
type SessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ListingResponse is the JSON representation of a single listing.
type ListingResponse struct {
	ID           int64   `json:"id"`
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Year         *int    `json:"year"`
	Price        *int64  `json:"price"`
	PriceDisplay string  `json:"price_display"`
	Color        *string `json:"color"`
	URL          string  `json:"url"`
}

// PageResponse is the JSON representation of the retrieval state after a fetch.
type PageResponse struct {
	State       string            `json:"state"`
	Page        int               `json:"page"`
	PerPage     int               `json:"per_page"`
	Total       int               `json:"total"`
	TotalPages  int               `json:"total_pages"`
	HasNext     bool              `json:"has_next"`
	HasPrevious bool              `json:"has_previous"`
	Items       []ListingResponse `json:"items"`
	Error       string            `json:"error,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toListingResponse converts a domain ListingRecord to its JSON representation.
func toListingResponse(l model.ListingRecord) ListingResponse {
	return ListingResponse{
		ID:           l.ID,
		Brand:        l.Brand,
		Model:        l.Model,
		Year:         l.Year,
		Price:        l.Price,
		PriceDisplay: l.DisplayPrice(),
		Color:        l.Color,
		URL:          l.URL,
	}
}

// toPageResponse converts a RetrievalState to its JSON representation. Items
// is always a non-nil slice.
func toPageResponse(s model.RetrievalState) PageResponse {
	resp := PageResponse{
		State: string(s.Status),
		Page:  s.Page,
		Items: []ListingResponse{},
		Error: s.Err.Message(),
	}
	if s.Result == nil {
		return resp
	}

	resp.PerPage = s.Result.PerPage
	resp.Total = s.Result.Total
	resp.TotalPages = s.Result.TotalPages()
	resp.HasNext = s.Result.HasNext()
	resp.HasPrevious = s.Result.HasPrevious()
	resp.Items = make([]ListingResponse, 0, len(s.Result.Items))
	for _, item := range s.Result.Items {
		resp.Items = append(resp.Items, toListingResponse(item))
	}
	return resp
}
