package mail

import "context"

// Item is one RFQ line item as read from the durable store.
type Item struct {
	ID             string
	Title          string
	Code           string
	Manufacturer   string
	Quantity       int
	Unit           string
	Price          float64
	Specifications string
	Status         string
}

// ItemFinder looks up RFQ line items by id in the durable store.
type ItemFinder interface {
	FindItemsByIDs(ctx context.Context, ids []string) ([]Item, error)
}

// FileGenerator renders a document over the given line items and
// returns the path of the generated temporary file. The caller is
// responsible for removing it.
type FileGenerator interface {
	Generate(ctx context.Context, items []Item, rfqNo string) (string, error)
}
