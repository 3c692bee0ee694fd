package domain

// Product is one purchasable digital item. The catalog is seeded from disk at
// startup and never mutated by the checkout flow.
type Product struct {
	ID          string
	Title       string
	Description string
	Price       int64  // major currency units; the gateway is charged Price * MinorUnitScale
	Filename    string // relative to the download directory, not exposed over the API
	Thumbnail   string
}
