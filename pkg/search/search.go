// Package search abstracts the external listing-search (RAG) service the
// apartment_search tool queries. Internals of that service are out of
// scope; this package only defines the client contract and result shape.
package search

import "context"

// Listing is one ranked search result.
type Listing struct {
	Address      string
	Neighborhood string
	Bedrooms     int
	Bathrooms    float64
	SquareFeet   int
	RentCents    int
	Available    bool
	Description  string
	Amenities    []string
	ContactInfo  string
}

// Client queries the listing-search service with a natural-language query.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Listing, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, query string, limit int) ([]Listing, error)

// Search calls f.
func (f ClientFunc) Search(ctx context.Context, query string, limit int) ([]Listing, error) {
	return f(ctx, query, limit)
}
