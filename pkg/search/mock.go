package search

import "context"

// Mock implements Client for testing and for running the service without a
// listing-search backend wired in.
type Mock struct {
	Listings []Listing
}

// NewMock returns a Client that serves a fixed listing set, ignoring query.
func NewMock(listings ...Listing) *Mock {
	return &Mock{Listings: listings}
}

func (m *Mock) Search(ctx context.Context, query string, limit int) ([]Listing, error) {
	if limit <= 0 || limit > len(m.Listings) {
		limit = len(m.Listings)
	}
	return m.Listings[:limit], nil
}

var _ Client = (*Mock)(nil)
