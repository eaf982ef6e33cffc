package model

// Plant is a bundled catalog entry. Catalog data is immutable at runtime.
type Plant struct {
	ID              int        `json:"id"`
	Name            string     `json:"name"`
	ScientificName  string     `json:"scientificName"`
	Description     string     `json:"description"`
	Image           string     `json:"image"`
	FloweringSeason string     `json:"floweringSeason"`
	Locations       []Location `json:"locations"`
}

// Location is a known place where a plant grows.
type Location struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Place       string  `json:"place"`
	Verified    bool    `json:"verified,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date,omitempty"`
}
