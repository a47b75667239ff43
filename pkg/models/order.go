package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the snapshot taken at the moment an order is placed.
type Order struct {
	Items    []CartItem
	Customer CustomerInfo
	Total    decimal.Decimal
	Date     time.Time
}

// OrderRecord is the flat form of an Order handed to an order sink.
type OrderRecord struct {
	Items    []OrderLine     `json:"items"`
	Customer CustomerInfo    `json:"customer"`
	Total    decimal.Decimal `json:"total"`
	Date     time.Time       `json:"date"`
}

type OrderLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Record flattens the order, one line per cart item.
func (o Order) Record() OrderRecord {
	lines := make([]OrderLine, len(o.Items))
	for i, item := range o.Items {
		lines[i] = OrderLine{
			ProductID:   item.Product.ID,
			ProductName: item.Product.Name,
			Price:       item.Product.Price,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal(),
		}
	}
	return OrderRecord{
		Items:    lines,
		Customer: o.Customer,
		Total:    o.Total,
		Date:     o.Date,
	}
}

// OrderRow is the relational archive row for a placed order.
type OrderRow struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CustomerName    string          `gorm:"type:varchar(100);not null" json:"customer_name"`
	CustomerPhone   string          `gorm:"type:varchar(20);not null" json:"customer_phone"`
	CustomerAddress string          `gorm:"type:varchar(255);not null" json:"customer_address"`
	Items           string          `gorm:"type:text" json:"items"` // JSON encoded []OrderLine
	Total           decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`
	PlacedAt        time.Time       `gorm:"index" json:"placed_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (OrderRow) TableName() string {
	return "orders"
}
