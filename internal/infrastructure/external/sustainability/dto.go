package sustainability

import (
	"encoding/json"
	"strconv"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ProductDTO is the product record posted to /api/sustainability.
type ProductDTO struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Brand    string `json:"brand"`
	ASIN     string `json:"asin,omitempty"`
	Image    string `json:"image,omitempty"`
	Category string `json:"category,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// SustainabilityResponseDTO is the body returned by /api/sustainability.
// Only the first four sections are shown to the user; the rest are kept
// raw so that a schema change there never breaks decoding.
type SustainabilityResponseDTO struct {
	SecondhandOptions []SecondhandOptionDTO `json:"secondhandOptions"`
	Durability        DurabilityDTO         `json:"durability"`
	Shipping          ShippingDTO           `json:"shipping"`
	Recommendations   RecommendationsDTO    `json:"recommendations"`

	SustainabilityScore  json.RawMessage `json:"sustainabilityScore,omitempty"`
	CarbonFootprint      json.RawMessage `json:"carbonFootprint,omitempty"`
	SocialImpact         json.RawMessage `json:"socialImpact,omitempty"`
	PriceTracking        json.RawMessage `json:"priceTracking,omitempty"`
	SustainabilityAlerts json.RawMessage `json:"sustainabilityAlerts,omitempty"`

	Metadata *MetadataDTO `json:"metadata,omitempty"`
}

// SecondhandOptionDTO is one used or refurbished listing.
type SecondhandOptionDTO struct {
	Title         string  `json:"title"`
	Price         string  `json:"price"`
	OriginalPrice string  `json:"originalPrice,omitempty"`
	Condition     string  `json:"condition"`
	Warranty      string  `json:"warranty"`
	Seller        string  `json:"seller"`
	Rating        float64 `json:"rating,omitempty"`
	ReviewCount   int     `json:"reviewCount,omitempty"`
	URL           string  `json:"url"`
	Savings       string  `json:"savings"`
	CO2Reduction  string  `json:"co2Reduction"`
	Marketplace   string  `json:"marketplace,omitempty"`
}

// DurabilityDTO describes repairability and lifespan.
type DurabilityDTO struct {
	RepairabilityScore int      `json:"repairabilityScore"`
	MaxScore           int      `json:"maxScore,omitempty"`
	WarrantyLength     string   `json:"warrantyLength"`
	ExpectedLifespan   string   `json:"expectedLifespan"`
	RepairGuides       int      `json:"repairGuides"`
	PartAvailability   string   `json:"partAvailability"`
	RepairCostEstimate string   `json:"repairCostEstimate,omitempty"`
	SustainabilityTips []string `json:"sustainabilityTips,omitempty"`
}

// ShippingOptionDTO is one delivery option.
type ShippingOptionDTO struct {
	Days        string `json:"days"`
	CO2         string `json:"co2"`
	Cost        string `json:"cost"`
	Description string `json:"description,omitempty"`
	CO2Saved    string `json:"co2Saved,omitempty"`
}

// ShippingDTO lists delivery options from fastest to greenest.
type ShippingDTO struct {
	Express  ShippingOptionDTO  `json:"express"`
	Standard ShippingOptionDTO  `json:"standard"`
	NoRush   ShippingOptionDTO  `json:"noRush"`
	Pickup   *ShippingOptionDTO `json:"pickup,omitempty"`
}

// RecommendationsDTO holds the service verdict.
type RecommendationsDTO struct {
	BuySecondhand     bool     `json:"buySecondhand"`
	RepairInstead     bool     `json:"repairInstead"`
	WaitForSale       bool     `json:"waitForSale"`
	AlternativeBrands []string `json:"alternativeBrands,omitempty"`
	Reasons           []string `json:"reasons,omitempty"`
}

// MetadataDTO describes how the response was produced.
type MetadataDTO struct {
	Timestamp      string  `json:"timestamp"`
	APIVersion     string  `json:"apiVersion"`
	DataSource     string  `json:"dataSource"`
	ProcessingTime float64 `json:"processingTime"`
}

// HealthDTO is the body returned by /api/health.
type HealthDTO struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp,omitempty"`
	Version   string            `json:"version,omitempty"`
	Services  map[string]string `json:"services,omitempty"`
}

// IsHealthy reports whether the service declared itself healthy.
func (h *HealthDTO) IsHealthy() bool {
	return h != nil && h.Status == "healthy"
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR DTOs
// ══════════════════════════════════════════════════════════════════════════════

// APIErrorDTO is the error body: {"error": "..."}.
type APIErrorDTO struct {
	Message string `json:"error"`

	// StatusCode is filled from the HTTP response, not from the body.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "empty error body"
	}
	return "status " + strconv.Itoa(e.StatusCode) + ": " + msg
}

// IsServerError reports whether the status is 5xx.
func (e *APIErrorDTO) IsServerError() bool {
	return e.StatusCode >= 500
}

// RateLimitError is returned on 429 or when the local limiter gives up.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return e.Message
}
