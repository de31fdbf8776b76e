package models

import (
	"time"
	"unicode/utf8"
)

// Source tags where a record came from. Fallback records are synthetic
// replacements emitted when live extraction fails or yields nothing.
type Source string

const (
	SourceKakaku   Source = "kakaku"
	SourceFallback Source = "fallback"
)

const (
	// MaxPrice is the exclusive upper bound for a plausible listing price in yen.
	MaxPrice = 10_000_000
	// MinNameLength is the exclusive lower bound for a product name.
	MinNameLength = 3
	// MaxNameLength bounds product names before they reach downstream consumers.
	MaxNameLength = 150
)

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Price      int       `json:"price"`
	Shop       string    `json:"shop"`
	Rating     *float64  `json:"rating,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	ProductURL string    `json:"productUrl"`
	Category   string    `json:"category,omitempty"`
	ScrapedAt  time.Time `json:"scrapedAt"`
	Source     Source    `json:"source"`
}

// Valid reports whether the record satisfies the listing invariants.
// Records failing these are discarded before being returned to callers.
func (p *Product) Valid() bool {
	return utf8.RuneCountInString(p.Name) > MinNameLength &&
		p.Price > 0 &&
		p.Price < MaxPrice &&
		p.Shop != ""
}

type ProductDetail struct {
	Product

	Maker           string     `json:"maker,omitempty"`
	MakerProductURL string     `json:"makerProductUrl,omitempty"`
	PriceRange      PriceRange `json:"priceRange"`
	Stores          []Store    `json:"stores"`
	Review          *Review    `json:"review,omitempty"`
	Rankings        []Ranking  `json:"rankings,omitempty"`
}

type PriceRange struct {
	Min        int `json:"min"`
	Max        int `json:"max"`
	StoreCount int `json:"storeCount"`
}

type Review struct {
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

type Ranking struct {
	CategoryName string `json:"categoryName"`
	CategoryURL  string `json:"categoryUrl"`
	Rank         int    `json:"rank"`
}

type Store struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Price                int            `json:"price"`
	Rank                 int            `json:"rank"`
	Shipping             Shipping       `json:"shipping"`
	Stock                Stock          `json:"stock"`
	PaymentMethods       PaymentMethods `json:"paymentMethods"`
	StoreInfo            StoreInfo      `json:"storeInfo"`
	ProductURL           string         `json:"productUrl"`
	HasWarrantyExtension bool           `json:"hasWarrantyExtension"`
}

type Shipping struct {
	Cost        int    `json:"cost"`
	IsFree      bool   `json:"isFree"`
	Description string `json:"description,omitempty"`
}

type Stock struct {
	Available      bool   `json:"available"`
	Description    string `json:"description"`
	HasStorePickup bool   `json:"hasStorePickup"`
}

type PaymentMethods struct {
	CreditCard     bool `json:"creditCard"`
	CashOnDelivery bool `json:"cashOnDelivery"`
	BankTransfer   bool `json:"bankTransfer"`
	Convenience    bool `json:"convenience"`
}

type StoreInfo struct {
	Location        string `json:"location,omitempty"`
	YearsInBusiness int    `json:"yearsInBusiness,omitempty"`
	Rating          int    `json:"rating,omitempty"`
	ReviewCount     int    `json:"reviewCount,omitempty"`
	Comment         string `json:"comment,omitempty"`
}

// SortStoresByPrice orders stores ascending by price, keeping encounter
// order for equal prices, and reassigns ranks to match the final order.
func SortStoresByPrice(stores []Store) {
	for i := 1; i < len(stores); i++ {
		for j := i; j > 0 && stores[j-1].Price > stores[j].Price; j-- {
			stores[j-1], stores[j] = stores[j], stores[j-1]
		}
	}
	for i := range stores {
		stores[i].Rank = i + 1
	}
}

// TruncateName bounds a product name to MaxNameLength runes.
func TruncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:MaxNameLength])
}
