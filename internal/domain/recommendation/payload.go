package recommendation

import (
	"context"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

var (
	errEmptyOptions     = shared.WrapError("recommendation", "Validate", shared.ErrInvalidFormat, "payload has no secondhand options", shared.ErrRecommendationBadResponse)
	errIncompleteOption = shared.WrapError("recommendation", "Validate", shared.ErrInvalidFormat, "secondhand option without title or url", shared.ErrRecommendationBadResponse)
)

// Source указывает, откуда пришли рекомендации.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Payload - рекомендации по товару. Форма одинакова для ответа сервиса
// и для локальной замены.
type Payload struct {
	SecondhandOptions []SecondhandOption `json:"secondhandOptions"`
	Durability        Durability         `json:"durability"`
	Shipping          Shipping           `json:"shipping"`
	Recommendations   Recommendations    `json:"recommendations"`

	SustainabilityScore *SustainabilityScore `json:"sustainabilityScore,omitempty"`
	CarbonFootprint     *CarbonFootprint     `json:"carbonFootprint,omitempty"`

	// Source не приходит от сервиса и заполняется при получении.
	Source Source `json:"source,omitempty"`
}

// SecondhandOption - предложение б/у или восстановленного товара.
type SecondhandOption struct {
	Title        string `json:"title"`
	Price        string `json:"price"`
	Condition    string `json:"condition"`
	Warranty     string `json:"warranty"`
	Seller       string `json:"seller"`
	URL          string `json:"url"`
	Savings      string `json:"savings"`
	CO2Reduction string `json:"co2Reduction"`
}

// Durability - оценка ремонтопригодности и срока службы.
type Durability struct {
	RepairabilityScore int    `json:"repairabilityScore"`
	WarrantyLength     string `json:"warrantyLength"`
	ExpectedLifespan   string `json:"expectedLifespan"`
	RepairGuides       int    `json:"repairGuides"`
	PartAvailability   string `json:"partAvailability"`
}

// ShippingOption - один вариант доставки.
type ShippingOption struct {
	Days string `json:"days"`
	CO2  string `json:"co2"`
	Cost string `json:"cost"`
}

// Shipping - варианты доставки от быстрой к экологичной.
type Shipping struct {
	Express  ShippingOption `json:"express"`
	Standard ShippingOption `json:"standard"`
	NoRush   ShippingOption `json:"noRush"`
}

// Recommendations - итоговые советы.
type Recommendations struct {
	BuySecondhand bool `json:"buySecondhand"`
	RepairInstead bool `json:"repairInstead"`
	WaitForSale   bool `json:"waitForSale"`
}

// Validate проверяет, что ответ сервиса пригоден для показа.
func (p *Payload) Validate() error {
	if len(p.SecondhandOptions) == 0 {
		return errEmptyOptions
	}
	for _, o := range p.SecondhandOptions {
		if o.Title == "" || o.URL == "" {
			return errIncompleteOption
		}
	}
	return nil
}

// Provider получает рекомендации для товара.
type Provider interface {
	Fetch(ctx context.Context, product Product) (*Payload, error)
}

// Cache хранит ответы сервиса по ключу товара (см. Product.Key).
// Ошибки кэша не мешают получению рекомендаций.
type Cache interface {
	Get(ctx context.Context, key string) (*Payload, bool)
	Put(ctx context.Context, key string, p *Payload) error
}
