package models

import "github.com/shopspring/decimal"

// Product is a catalog entry. It is not modified after the catalog is loaded.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
}

type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type CustomerInfo struct {
	Name    string `json:"name" bson:"name" validate:"required"`
	Phone   string `json:"phone" bson:"phone" validate:"required,phone"`
	Address string `json:"address" bson:"address" validate:"required"`
}
