package sustainability

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/recommendation"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain transformations
// ══════════════════════════════════════════════════════════════════════════════

// ErrNilDTO is returned when a nil DTO is passed to the mapper.
var ErrNilDTO = errors.New("nil DTO")

// Mapper converts between the service wire format and the recommendation
// domain. Fields the domain does not show are dropped here.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ProductToDTO builds the request body for a product.
func (m *Mapper) ProductToDTO(p recommendation.Product) ProductDTO {
	return ProductDTO{
		Title:    p.Title,
		Price:    p.Price,
		Brand:    p.Brand,
		ASIN:     p.ASIN,
		Image:    p.Image,
		Category: p.Category,
		URL:      p.URL,
	}
}

// PayloadFromDTO converts a service response to a domain payload.
// The result is not validated; callers run Payload.Validate.
func (m *Mapper) PayloadFromDTO(dto *SustainabilityResponseDTO) (*recommendation.Payload, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	options := make([]recommendation.SecondhandOption, 0, len(dto.SecondhandOptions))
	for _, o := range dto.SecondhandOptions {
		options = append(options, recommendation.SecondhandOption{
			Title:        strings.TrimSpace(o.Title),
			Price:        o.Price,
			Condition:    o.Condition,
			Warranty:     o.Warranty,
			Seller:       o.Seller,
			URL:          strings.TrimSpace(o.URL),
			Savings:      o.Savings,
			CO2Reduction: o.CO2Reduction,
		})
	}

	return &recommendation.Payload{
		SecondhandOptions: options,
		Durability: recommendation.Durability{
			RepairabilityScore: dto.Durability.RepairabilityScore,
			WarrantyLength:     dto.Durability.WarrantyLength,
			ExpectedLifespan:   dto.Durability.ExpectedLifespan,
			RepairGuides:       dto.Durability.RepairGuides,
			PartAvailability:   dto.Durability.PartAvailability,
		},
		Shipping: recommendation.Shipping{
			Express:  m.shippingOption(dto.Shipping.Express),
			Standard: m.shippingOption(dto.Shipping.Standard),
			NoRush:   m.shippingOption(dto.Shipping.NoRush),
		},
		Recommendations: recommendation.Recommendations{
			BuySecondhand: dto.Recommendations.BuySecondhand,
			RepairInstead: dto.Recommendations.RepairInstead,
			WaitForSale:   dto.Recommendations.WaitForSale,
		},
		SustainabilityScore: decodeSection[recommendation.SustainabilityScore](dto.SustainabilityScore),
		CarbonFootprint:     decodeSection[recommendation.CarbonFootprint](dto.CarbonFootprint),
		Source:              recommendation.SourceRemote,
	}, nil
}

// decodeSection decodes an optional section; a missing or malformed one is dropped.
func decodeSection[T any](raw json.RawMessage) *T {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func (m *Mapper) shippingOption(dto ShippingOptionDTO) recommendation.ShippingOption {
	return recommendation.ShippingOption{Days: dto.Days, CO2: dto.CO2, Cost: dto.Cost}
}
