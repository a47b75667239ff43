package cart

import (
	"github.com/example/shopcart/pkg/models"
	"github.com/shopspring/decimal"
)

const placeholderImage = "https://via.placeholder.com/150"

// BackupCatalog returns the built-in products shown when the catalog source fails.
// Each call returns a fresh slice.
func BackupCatalog() []models.Product {
	return []models.Product{
		{
			ID:          "1",
			Name:        "Smartphone XYZ",
			Price:       decimal.RequireFromString("699.99"),
			ImageURL:    placeholderImage,
			Description: "The latest model with advanced features",
			Stock:       10,
		},
		{
			ID:          "2",
			Name:        "Laptop Pro",
			Price:       decimal.RequireFromString("1299.99"),
			ImageURL:    placeholderImage,
			Description: "Powerful laptop for professionals",
			Stock:       5,
		},
		{
			ID:          "3",
			Name:        "Wireless Earbuds",
			Price:       decimal.RequireFromString("149.99"),
			ImageURL:    placeholderImage,
			Description: "High quality sound without cables",
			Stock:       20,
		},
	}
}
