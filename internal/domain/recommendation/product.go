// Package recommendation содержит модель рекомендаций по товару: запись
// товара со страницы магазина, ответ сервиса рекомендаций и локальную
// замену этого ответа, когда сервис недоступен.
package recommendation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Dhanush6858/green-gaurdian/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRODUCT
// ══════════════════════════════════════════════════════════════════════════════

// Значения по умолчанию для полей, которые не удалось считать со страницы.
const (
	UnknownTitle = "Unknown Product"
	UnknownPrice = "Price not found"
	UnknownBrand = "Unknown Brand"
)

// Product - запись товара, считанная со страницы. Поля приходят как есть,
// цена остаётся строкой.
type Product struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	Brand    string `json:"brand"`
	ASIN     string `json:"asin,omitempty"`
	Image    string `json:"image,omitempty"`
	Category string `json:"category,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Normalize подставляет значения по умолчанию вместо пустых полей.
func (p Product) Normalize() Product {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		p.Title = UnknownTitle
	}
	if strings.TrimSpace(p.Price) == "" {
		p.Price = UnknownPrice
	}
	if strings.TrimSpace(p.Brand) == "" {
		p.Brand = UnknownBrand
	}
	return p
}

// Key - стабильный ключ товара для кэширования: ASIN, если он есть,
// иначе хэш названия, цены и бренда.
func (p Product) Key() string {
	if p.ASIN != "" {
		return "asin:" + p.ASIN
	}
	n := p.Normalize()
	h := xxhash.Sum64String(n.Title + "\x00" + n.Price + "\x00" + n.Brand)
	return "h:" + strconv.FormatUint(h, 16)
}

var priceRegex = regexp.MustCompile(`[\d,]+\.?\d*`)

// ParsePrice извлекает первое число из строки цены: "$1,299.99" -> 1299.99.
// Если числа нет, возвращает shared.ErrPriceNotFound.
func ParsePrice(s string) (float64, error) {
	m := priceRegex.FindString(s)
	if m == "" {
		return 0, shared.ErrPriceNotFound
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, shared.ErrPriceNotFound
	}
	return v, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category - категория товара для оценки долговечности.
type Category string

const (
	CategorySmartphone  Category = "smartphone"
	CategoryLaptop      Category = "laptop"
	CategoryTablet      Category = "tablet"
	CategoryHeadphones  Category = "headphones"
	CategorySmartwatch  Category = "smartwatch"
	CategoryGaming      Category = "gaming"
	CategoryCamera      Category = "camera"
	CategoryAppliance   Category = "appliance"
	CategoryElectronics Category = "electronics"
)

// categoryKeywords проверяется по порядку. Наушники идут раньше телефонов,
// потому что "headphones" содержит "phone".
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryHeadphones, []string{"headphones", "earbuds", "airpods", "beats"}},
	{CategorySmartphone, []string{"phone", "iphone", "samsung galaxy", "pixel", "smartphone"}},
	{CategoryLaptop, []string{"laptop", "macbook", "notebook", "chromebook", "thinkpad"}},
	{CategoryTablet, []string{"tablet", "ipad", "surface"}},
	{CategorySmartwatch, []string{"watch", "smartwatch", "apple watch", "fitbit"}},
	{CategoryGaming, []string{"ps5", "xbox", "nintendo", "gaming", "playstation"}},
	{CategoryCamera, []string{"camera", "canon", "nikon", "sony camera"}},
	{CategoryAppliance, []string{"refrigerator", "washer", "dryer", "microwave", "dishwasher"}},
}

// ExtractCategory определяет категорию по названию и бренду.
func ExtractCategory(title, brand string) Category {
	title = strings.ToLower(title)
	brand = strings.ToLower(brand)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(title, kw) || strings.Contains(brand, kw) {
				return c.category
			}
		}
	}
	return CategoryElectronics
}
