package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxdial/scheduler/pkg/search"
)

// defaultSearchLimit matches the original scheduler's default result count:
// enough options to feel like a real choice without overwhelming a spoken
// turn.
const defaultSearchLimit = 5

// ApartmentSearchTool queries the listing-search service with a
// natural-language description of what the caller is looking for.
type ApartmentSearchTool struct {
	client search.Client
}

// NewApartmentSearchTool wraps a search.Client as a Tool.
func NewApartmentSearchTool(client search.Client) *ApartmentSearchTool {
	return &ApartmentSearchTool{client: client}
}

// Name implements Tool.
func (t *ApartmentSearchTool) Name() string { return "apartment_search" }

// Execute implements Tool. args must contain "query".
func (t *ApartmentSearchTool) Execute(ctx context.Context, args map[string]string) (Result, error) {
	query := args["query"]
	if strings.TrimSpace(query) == "" {
		return Result{Intent: "not_found", Message: "I didn't catch what you're looking for. Could you describe it again?"}, nil
	}

	listings, err := t.client.Search(ctx, query, defaultSearchLimit)
	if err != nil {
		return Result{}, fmt.Errorf("apartment_search: %w", err)
	}
	if len(listings) == 0 {
		return Result{
			Intent:  "not_found",
			Message: "I couldn't find anything matching that right now. Want to try a different area or budget?",
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d option%s for you:\n", len(listings), plural(len(listings)))
	for i, l := range listings {
		fmt.Fprintf(&b, "%d. %s in %s — %d bed/%.1f bath, %d sqft, $%d/mo",
			i+1, l.Address, l.Neighborhood, l.Bedrooms, l.Bathrooms, l.SquareFeet, l.RentCents/100)
		if !l.Available {
			b.WriteString(" (currently unavailable)")
		}
		if l.Description != "" {
			fmt.Fprintf(&b, ". %s", l.Description)
		}
		if len(l.Amenities) > 0 {
			fmt.Fprintf(&b, " Amenities: %s.", strings.Join(l.Amenities, ", "))
		}
		if l.ContactInfo != "" {
			fmt.Fprintf(&b, " Contact: %s.", l.ContactInfo)
		}
		b.WriteString("\n")
	}

	return Result{
		Intent:  "found",
		Message: strings.TrimSpace(b.String()),
		Data:    map[string]any{"listing_count": len(listings)},
	}, nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
