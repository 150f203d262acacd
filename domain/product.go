package domain

import "github.com/shopspring/decimal"

type Category string

const (
	CategoryOther      Category = "другое"
	CategorySoftSkill  Category = "софт-скил"
	CategoryAdditional Category = "дополнительное"
	CategoryButton     Category = "кнопка"
	CategoryHardSkill  Category = "хард-скил"
)

var categoryClasses = map[Category]string{
	CategoryOther:      "other",
	CategorySoftSkill:  "soft",
	CategoryAdditional: "additional",
	CategoryButton:     "button",
	CategoryHardSkill:  "hard",
}

func (c Category) Valid() bool {
	_, ok := categoryClasses[c]
	return ok
}

// Class returns the short style key the renderer uses for the category badge.
func (c Category) Class() string {
	if class, ok := categoryClasses[c]; ok {
		return class
	}
	return categoryClasses[CategoryOther]
}

// Product is a catalog entry. A product with an invalid Price is priceless
// and can never be put into the basket.
type Product struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Category    Category            `json:"category"`
	Price       decimal.NullDecimal `json:"price"`
}

func (p Product) Purchasable() bool {
	return p.Price.Valid
}

// Preview drops the long-form description.
func (p Product) Preview() ProductPreview {
	return ProductPreview{
		ID:       p.ID,
		Title:    p.Title,
		Image:    p.Image,
		Category: p.Category,
		Price:    p.Price,
	}
}

// ProductPreview is the display-safe projection shown in the catalog grid
type ProductPreview struct {
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Image    string              `json:"image"`
	Category Category            `json:"category"`
	Price    decimal.NullDecimal `json:"price"`
}

// NewPrice is a shorthand for a priced product.
func NewPrice(amount int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(amount))
}

// Priceless is the marker for products that cannot be bought.
func Priceless() decimal.NullDecimal {
	return decimal.NullDecimal{}
}
