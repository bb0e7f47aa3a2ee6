package recommendation

import (
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUSTAINABILITY SCORE
// ══════════════════════════════════════════════════════════════════════════════

// SustainabilityScore - оценка товара от 0 до 100 с разбивкой по факторам.
type SustainabilityScore struct {
	OverallScore   int            `json:"overallScore"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Insights       []string       `json:"insights"`
	Confidence     float64        `json:"confidence"`
	Recommendation string         `json:"recommendation"`
}

// ScoreBreakdown - частные оценки от 0 до 100.
type ScoreBreakdown struct {
	Materials   int `json:"materials"`
	Durability  int `json:"durability"`
	Packaging   int `json:"packaging"`
	Shipping    int `json:"shipping"`
	BrandEthics int `json:"brandEthics"`
}

// Рекомендации по итоговой оценке.
const (
	AdviceBuySecondhand = "buy_secondhand"
	AdviceBuyNew        = "buy_new"
)

var (
	sustainableMaterials   = []string{"bamboo", "recycled", "organic", "eco", "sustainable", "renewable"}
	unsustainableMaterials = []string{"plastic", "synthetic", "disposable", "fast fashion"}
	sustainableBrands      = []string{"patagonia", "fairphone", "framework", "seventh generation", "tesla"}
	premiumBrands          = []string{"apple", "samsung", "sony", "bose", "dyson", "tesla"}
	ecoBrands              = []string{"fairphone", "framework", "patagonia", "seventh generation"}
)

var categoryScoreAdjust = map[Category]int{
	CategorySmartphone: -5,
	CategoryAppliance:  10,
	CategoryGaming:     -10,
	CategoryCamera:     5,
}

// Score оценивает товар по материалам из названия, бренду, категории и цене.
// Частные оценки, которые нельзя вывести из записи товара, берутся из хэша
// названия, поэтому одинаковый товар всегда получает одинаковую оценку.
func Score(product Product) SustainabilityScore {
	product = product.Normalize()
	title := strings.ToLower(product.Title)
	brand := strings.ToLower(strings.TrimSpace(product.Brand))
	h := xxhash.Sum64String("score\x00" + product.Title)

	score := 50
	for _, m := range sustainableMaterials {
		if strings.Contains(title, m) {
			score += 15
		}
	}
	for _, m := range unsustainableMaterials {
		if strings.Contains(title, m) {
			score -= 10
		}
	}
	if slices.Contains(sustainableBrands, brand) {
		score += 20
	}
	score += categoryScoreAdjust[ExtractCategory(product.Title, product.Brand)]
	if price, err := ParsePrice(product.Price); err == nil {
		switch {
		case price > 500:
			score += 10
		case price < 50:
			score -= 5
		}
	}
	score = clampInt(score, 0, 100)

	var insights []string
	switch {
	case score >= 80:
		insights = append(insights, "Excellent sustainability profile with eco-friendly materials")
	case score >= 60:
		insights = append(insights, "Good sustainability potential with some eco-friendly features")
	default:
		insights = append(insights, "Consider secondhand alternatives for better environmental impact")
	}
	if strings.Contains(title, "recycled") {
		insights = append(insights, "Contains recycled materials - great choice!")
	}

	advice := AdviceBuyNew
	if score < 60 {
		advice = AdviceBuySecondhand
	}

	return SustainabilityScore{
		OverallScore: score,
		Breakdown: ScoreBreakdown{
			Materials:   clampInt(score-20, 0, 100),
			Durability:  60 + pick(h, 0, 31),
			Packaging:   40 + pick(h, 8, 41),
			Shipping:    50 + pick(h, 16, 36),
			BrandEthics: 45 + pick(h, 24, 51),
		},
		Insights:       insights,
		Confidence:     round(0.75+float64(pick(h, 32, 21))/100, 2),
		Recommendation: advice,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CARBON FOOTPRINT
// ══════════════════════════════════════════════════════════════════════════════

// CarbonFootprint - выбросы нового товара и экономия при покупке б/у, кг CO₂.
type CarbonFootprint struct {
	NewProduct            NewProductFootprint `json:"newProduct"`
	SecondhandAlternative SecondhandFootprint `json:"secondhandAlternative"`
	Comparisons           FootprintComparison `json:"comparisons"`
}

// NewProductFootprint - жизненный цикл нового товара.
type NewProductFootprint struct {
	Total       float64            `json:"total"`
	Breakdown   FootprintBreakdown `json:"breakdown"`
	Methodology string             `json:"methodology"`
}

// FootprintBreakdown - составляющие выбросов нового товара.
type FootprintBreakdown struct {
	Manufacturing float64 `json:"manufacturing"`
	Packaging     float64 `json:"packaging"`
	Shipping      float64 `json:"shipping"`
	AnnualUsage   float64 `json:"annualUsage"`
	EndOfLife     float64 `json:"endOfLife"`
}

// SecondhandFootprint - выбросы б/у альтернативы.
type SecondhandFootprint struct {
	Total             float64 `json:"total"`
	Savings           float64 `json:"savings"`
	SavingsPercentage int     `json:"savingsPercentage"`
}

// FootprintComparison переводит экономию в наглядные величины.
type FootprintComparison struct {
	TreesEquivalent    float64 `json:"treesEquivalent"`
	CarMilesEquivalent float64 `json:"carMilesEquivalent"`
	HomeEnergyDays     float64 `json:"homeEnergyDays"`
	Flights            float64 `json:"flights"`
	StreamingHours     float64 `json:"streamingHours"`
}

// FootprintMethodology - пояснение к оценке выбросов.
const FootprintMethodology = "Based on lifecycle assessment studies and industry data"

// Коэффициенты оценки выбросов.
const (
	defaultManufacturingKg = 100.0
	packagingShare         = 0.05
	endOfLifeShare         = 0.02

	// Б/у товар не производится заново и чаще упаковывается повторно.
	manufacturingAvoided = 0.90
	packagingAvoided     = 0.50

	kgPerTree          = 22
	milesPerKg         = 2.31
	kgPerHomeDay       = 11.9
	kgPerFlight        = 90
	kgPerStreamingHour = 0.0036
)

var manufacturingKg = map[Category]float64{
	CategorySmartphone:  85,
	CategoryLaptop:      350,
	CategoryTablet:      125,
	CategoryHeadphones:  15,
	CategorySmartwatch:  25,
	CategoryGaming:      450,
	CategoryCamera:      180,
	CategoryAppliance:   600,
	CategoryElectronics: 100,
}

var shippingKg = map[Category]float64{
	CategoryAppliance:  25,
	CategoryLaptop:     15,
	CategoryGaming:     15,
	CategoryCamera:     15,
	CategorySmartphone: 8,
}

var annualUsageKg = map[Category]float64{
	CategorySmartphone:  8,
	CategoryLaptop:      125,
	CategoryTablet:      15,
	CategoryGaming:      200,
	CategoryAppliance:   300,
	CategorySmartwatch:  2,
	CategoryHeadphones:  1,
	CategoryCamera:      5,
	CategoryElectronics: 20,
}

// Footprint оценивает выбросы по категории, цене, бренду и материалам.
// Оценка полностью детерминирована.
func Footprint(product Product) CarbonFootprint {
	product = product.Normalize()
	title := strings.ToLower(product.Title)
	brand := strings.ToLower(strings.TrimSpace(product.Brand))
	category := ExtractCategory(product.Title, product.Brand)

	manufacturing, ok := manufacturingKg[category]
	if !ok {
		manufacturing = defaultManufacturingKg
	}
	if price, err := ParsePrice(product.Price); err == nil {
		switch {
		case price > 1000:
			manufacturing *= 1.3
		case price > 500:
			manufacturing *= 1.1
		case price < 50:
			manufacturing *= 0.7
		}
	}
	switch {
	case slices.Contains(premiumBrands, brand):
		manufacturing *= 1.15
	case slices.Contains(ecoBrands, brand):
		manufacturing *= 0.85
	}
	switch {
	case strings.Contains(title, "aluminum") || strings.Contains(title, "metal"):
		manufacturing *= 1.2
	case strings.Contains(title, "recycled"):
		manufacturing *= 0.7
	case strings.Contains(title, "organic"):
		manufacturing *= 0.9
	}

	packaging := manufacturing * packagingShare
	shipping, ok := shippingKg[category]
	if !ok {
		shipping = 5
	}
	usage := annualUsageKg[category]
	endOfLife := manufacturing * endOfLifeShare
	total := manufacturing + packaging + shipping + usage + endOfLife

	savings := manufacturing*manufacturingAvoided + packaging*packagingAvoided

	return CarbonFootprint{
		NewProduct: NewProductFootprint{
			Total: round(total, 1),
			Breakdown: FootprintBreakdown{
				Manufacturing: round(manufacturing, 1),
				Packaging:     round(packaging, 1),
				Shipping:      round(shipping, 1),
				AnnualUsage:   round(usage, 1),
				EndOfLife:     round(endOfLife, 1),
			},
			Methodology: FootprintMethodology,
		},
		SecondhandAlternative: SecondhandFootprint{
			Total:             round(total-savings, 1),
			Savings:           round(savings, 1),
			SavingsPercentage: int(math.Round(savings / total * 100)),
		},
		Comparisons: FootprintComparison{
			TreesEquivalent:    round(savings/kgPerTree, 1),
			CarMilesEquivalent: round(savings*milesPerKg, 0),
			HomeEnergyDays:     round(savings/kgPerHomeDay, 1),
			Flights:            round(savings/kgPerFlight, 2),
			StreamingHours:     round(savings/kgPerStreamingHour, 0),
		},
	}
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
