package cart

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/example/shopcart/pkg/models"
	"github.com/shopspring/decimal"
)

// OrderSummary renders the plain-text order summary sent over the messaging link.
func OrderSummary(customer models.CustomerInfo, items []models.CartItem, total decimal.Decimal) string {
	var b strings.Builder

	b.WriteString("*New order*\n\n")
	fmt.Fprintf(&b, "Customer: %s\n", customer.Name)
	fmt.Fprintf(&b, "Phone: %s\n", customer.Phone)
	fmt.Fprintf(&b, "Address: %s\n\n", customer.Address)

	b.WriteString("*Products:*\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %dx %s: %s\n", item.Quantity, item.Product.Name, item.Subtotal().StringFixed(2))
	}

	fmt.Fprintf(&b, "\nTotal: %s", total.StringFixed(2))
	return b.String()
}

// componentEscaper undoes the QueryEscape encodings that encodeURIComponent leaves literal.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// WhatsAppURL composes https://<host>/<recipient>?text=<text>. The text is
// escaped like encodeURIComponent: spaces become %20 and !'()* stay literal.
func WhatsAppURL(host, recipient, text string) string {
	encoded := componentEscaper.Replace(url.QueryEscape(text))
	return fmt.Sprintf("https://%s/%s?text=%s", host, url.PathEscape(recipient), encoded)
}
