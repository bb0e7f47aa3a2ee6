package recommendation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1,299.99", 1299.99},
		{"USD 45", 45},
		{"Now only 12.50!", 12.5},
		{"1,000,000", 1000000},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 0.0001, tt.in)
	}

	for _, in := range []string{"", "Price not found", "free"} {
		_, err := ParsePrice(in)
		assert.ErrorIs(t, err, shared.ErrPriceNotFound, in)
	}
}

func TestExtractCategory(t *testing.T) {
	tests := []struct {
		title, brand string
		want         Category
	}{
		{"Apple iPhone 15 Pro", "Apple", CategorySmartphone},
		{"Sony WH-1000XM5 Wireless Headphones", "Sony", CategoryHeadphones},
		{"MacBook Air M3", "Apple", CategoryLaptop},
		{"iPad mini", "Apple", CategoryTablet},
		{"Fitbit Charge 6", "", CategorySmartwatch},
		{"PlayStation 5 Console", "Sony", CategoryGaming},
		{"EOS R50 Body", "Canon", CategoryCamera},
		{"Countertop Microwave 1.1 cu ft", "", CategoryAppliance},
		{"USB-C Hub", "Anker", CategoryElectronics},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractCategory(tt.title, tt.brand), tt.title)
	}
}

func TestFallback_Prices(t *testing.T) {
	p := Fallback(Product{Title: "Samsung Galaxy S24 Ultra Smartphone 256GB Titanium Black", Price: "$1,000.00"})

	require.Len(t, p.SecondhandOptions, 2)
	assert.Equal(t, "$600.00", p.SecondhandOptions[0].Price)
	assert.Equal(t, "$480.00", p.SecondhandOptions[1].Price)
	assert.Equal(t, "Refurbished Samsung Galaxy S24 Ultra Smartphone 256G...", p.SecondhandOptions[0].Title)
	assert.True(t, strings.HasPrefix(p.SecondhandOptions[0].URL, "https://ebay.com/search?q=Samsung+Galaxy"))
	assert.True(t, strings.HasPrefix(p.SecondhandOptions[1].URL, "https://backmarket.com/search?q="))
	assert.Equal(t, SourceFallback, p.Source)
	assert.True(t, p.Recommendations.BuySecondhand)
	assert.False(t, p.Recommendations.RepairInstead)
}

func TestFallback_PlaceholderPrice(t *testing.T) {
	p := Fallback(Product{Title: "Broken lamp for repair", Price: "Price not found"})

	assert.Equal(t, "$99.99", p.SecondhandOptions[0].Price)
	assert.Equal(t, "$79.99", p.SecondhandOptions[1].Price)
	assert.True(t, p.Recommendations.RepairInstead)
	assert.False(t, p.Recommendations.BuySecondhand)
}

func TestFallback_IsDeterministic(t *testing.T) {
	product := Product{Title: "Lenovo ThinkPad X1 Carbon", Price: "$1,449"}

	a := Fallback(product)
	b := Fallback(product)
	assert.Equal(t, a, b)

	assert.GreaterOrEqual(t, a.Durability.RepairabilityScore, 5)
	assert.LessOrEqual(t, a.Durability.RepairabilityScore, 7)
	assert.Equal(t, "4-6 years", a.Durability.ExpectedLifespan)
	assert.GreaterOrEqual(t, a.Durability.RepairGuides, 5)
	assert.Less(t, a.Durability.RepairGuides, 20)
}

func TestFallback_EmptyProduct(t *testing.T) {
	p := Fallback(Product{})

	assert.Equal(t, "Refurbished Unknown Product...", p.SecondhandOptions[0].Title)
	assert.Equal(t, DefaultShipping(), p.Shipping)
	assert.NoError(t, p.Validate())
}

func TestScore(t *testing.T) {
	phone := Score(Product{Title: "Samsung Galaxy S24 Smartphone", Price: "$1,000.00", Brand: "Samsung"})
	assert.Equal(t, 55, phone.OverallScore)
	assert.Equal(t, 35, phone.Breakdown.Materials)
	assert.Equal(t, AdviceBuySecondhand, phone.Recommendation)
	assert.Equal(t, []string{"Consider secondhand alternatives for better environmental impact"}, phone.Insights)

	tote := Score(Product{Title: "Recycled bamboo organic tote", Price: "$30", Brand: "Patagonia"})
	assert.Equal(t, 100, tote.OverallScore, "clamped to 100")
	assert.Equal(t, 80, tote.Breakdown.Materials)
	assert.Equal(t, AdviceBuyNew, tote.Recommendation)
	assert.Len(t, tote.Insights, 2)

	for _, s := range []SustainabilityScore{phone, tote} {
		assert.GreaterOrEqual(t, s.Breakdown.Durability, 60)
		assert.LessOrEqual(t, s.Breakdown.Durability, 90)
		assert.GreaterOrEqual(t, s.Breakdown.BrandEthics, 45)
		assert.LessOrEqual(t, s.Breakdown.BrandEthics, 95)
		assert.GreaterOrEqual(t, s.Confidence, 0.75)
		assert.LessOrEqual(t, s.Confidence, 0.95)
	}
}

func TestFootprint(t *testing.T) {
	f := Footprint(Product{Title: "Samsung Galaxy S24 Smartphone", Price: "$1,000.00", Brand: "Samsung"})

	assert.InDelta(t, 107.5, f.NewProduct.Breakdown.Manufacturing, 0.05)
	assert.InDelta(t, 8.0, f.NewProduct.Breakdown.Shipping, 0.001)
	assert.InDelta(t, 8.0, f.NewProduct.Breakdown.AnnualUsage, 0.001)
	assert.InDelta(t, 131.1, f.NewProduct.Total, 0.05)
	assert.InDelta(t, 99.5, f.SecondhandAlternative.Savings, 0.05)
	assert.InDelta(t, 31.6, f.SecondhandAlternative.Total, 0.05)
	assert.Equal(t, 76, f.SecondhandAlternative.SavingsPercentage)
	assert.InDelta(t, 4.5, f.Comparisons.TreesEquivalent, 0.05)
	assert.InDelta(t, 230, f.Comparisons.CarMilesEquivalent, 0.5)
	assert.Equal(t, FootprintMethodology, f.NewProduct.Methodology)

	tote := Footprint(Product{Title: "Recycled bamboo organic tote", Price: "$30", Brand: "Patagonia"})
	assert.InDelta(t, 41.7, tote.NewProduct.Breakdown.Manufacturing, 0.05)
	assert.InDelta(t, 5.0, tote.NewProduct.Breakdown.Shipping, 0.001)
	assert.InDelta(t, 69.6, tote.NewProduct.Total, 0.05)
}

func TestFallback_CarriesScoreAndFootprint(t *testing.T) {
	product := Product{Title: "Apple iPhone 15 Pro", Price: "$999", Brand: "Apple"}
	p := Fallback(product)

	require.NotNil(t, p.SustainabilityScore)
	require.NotNil(t, p.CarbonFootprint)
	assert.Equal(t, Score(product), *p.SustainabilityScore)
	assert.Equal(t, Footprint(product), *p.CarbonFootprint)

	empty := Fallback(Product{})
	require.NotNil(t, empty.SustainabilityScore)
	assert.Positive(t, empty.CarbonFootprint.NewProduct.Total)
}

func TestPayload_Validate(t *testing.T) {
	empty := &Payload{}
	assert.ErrorIs(t, empty.Validate(), shared.ErrRecommendationBadResponse)

	partial := &Payload{SecondhandOptions: []SecondhandOption{{Title: "x"}}}
	assert.ErrorIs(t, partial.Validate(), shared.ErrRecommendationBadResponse)
}

func TestProduct_Key(t *testing.T) {
	withASIN := Product{Title: "Pixel 8", Price: "$499", ASIN: "B0CGT"}
	assert.Equal(t, "asin:B0CGT", withASIN.Key())

	a := Product{Title: "Pixel 8", Price: "$499"}
	b := Product{Title: "  Pixel 8 ", Price: "$499", Brand: ""}
	c := Product{Title: "Pixel 8", Price: "$599"}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.True(t, strings.HasPrefix(a.Key(), "h:"))
}
