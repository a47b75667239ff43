package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/shopcart/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CatalogSource interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// OrderSink persists a placed order and returns the id it was stored under.
type OrderSink interface {
	SubmitOrder(ctx context.Context, record models.OrderRecord) (string, error)
}

// CartStore keeps the cart between sessions. LoadCart reports false when
// nothing has been stored under key.
type CartStore interface {
	LoadCart(ctx context.Context, key string) ([]models.CartItem, bool, error)
	SaveCart(ctx context.Context, key string, items []models.CartItem) error
}

// Notifier shows a transient message to the user. It must not block.
type Notifier interface {
	Notify(message string, autoDismiss time.Duration)
}

type Options struct {
	CartKey           string
	WhatsAppHost      string
	WhatsAppRecipient string
	CartNoticeTTL     time.Duration
	OrderNoticeTTL    time.Duration
	Now               func() time.Time
}

func (o *Options) setDefaults() {
	if o.CartKey == "" {
		o.CartKey = "cartItems"
	}
	if o.WhatsAppHost == "" {
		o.WhatsAppHost = "wa.me"
	}
	if o.WhatsAppRecipient == "" {
		o.WhatsAppRecipient = "123456789"
	}
	if o.CartNoticeTTL <= 0 {
		o.CartNoticeTTL = 2 * time.Second
	}
	if o.OrderNoticeTTL <= 0 {
		o.OrderNoticeTTL = 3 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type PlaceStatus string

const (
	StatusPlaced   PlaceStatus = "placed"
	StatusFailed   PlaceStatus = "failed"
	StatusNotReady PlaceStatus = "not_ready"
	StatusInFlight PlaceStatus = "in_flight"
)

type PlaceResult struct {
	Status  PlaceStatus
	OrderID string
}

// State is a consistent copy of everything the controller holds.
type State struct {
	Catalog       []models.Product
	Items         []models.CartItem
	Total         decimal.Decimal
	ItemCount     int
	Loading       bool
	Error         bool
	PlacingOrder  bool
	Customer      models.CustomerInfo
	CustomerValid bool
}

// Controller owns the catalog, the cart and the checkout form.
// It is safe for concurrent use; calls to the catalog source, order sink and cart store
// are made without holding the lock.
type Controller struct {
	source   CatalogSource
	sink     OrderSink
	store    CartStore
	notifier Notifier
	opts     Options
	logger   *zap.Logger

	mu           sync.Mutex
	catalog      []models.Product
	items        []models.CartItem
	customer     models.CustomerInfo
	loading      bool
	failed       bool
	placingOrder bool
	version      uint64

	// saveMu orders writes to the cart store; savedVersion is guarded by it.
	saveMu       sync.Mutex
	savedVersion uint64
}

// cartSave is a copy of the cart taken under mu, written after mu is released.
type cartSave struct {
	items   []models.CartItem
	version uint64
}

func NewController(source CatalogSource, sink OrderSink, store CartStore, notifier Notifier, opts Options, logger *zap.Logger) *Controller {
	opts.setDefaults()
	return &Controller{
		source:   source,
		sink:     sink,
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger.Named("cart"),
	}
}

// Restore replaces the cart with the one persisted under the cart key, if any.
func (c *Controller) Restore(ctx context.Context) error {
	items, found, err := c.store.LoadCart(ctx, c.opts.CartKey)
	if err != nil {
		return fmt.Errorf("failed to restore cart: %w", err)
	}
	if !found {
		return nil
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	c.logger.Info("Cart restored", zap.Int("items", len(items)))
	return nil
}

// LoadCatalog fetches products from the catalog source. Any failure, including
// an empty result, sets the error flag and installs BackupCatalog.
func (c *Controller) LoadCatalog(ctx context.Context) {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return
	}
	c.loading = true
	c.mu.Unlock()

	products, err := c.source.ListProducts(ctx)
	if err == nil && len(products) == 0 {
		err = ErrCatalogEmpty
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		c.logger.Error("Failed to load products, using backup catalog", zap.Error(err))
		c.failed = true
		c.catalog = BackupCatalog()
		return
	}

	c.catalog = products
	c.logger.Info("Catalog loaded", zap.Int("products", len(products)))
}

func (c *Controller) Catalog() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Product(nil), c.catalog...)
}

// Product looks up a catalog entry by id.
func (c *Controller) Product(id string) (models.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (c *Controller) AddToCart(ctx context.Context, product models.Product) {
	c.mu.Lock()
	var save *cartSave
	if idx := c.indexOf(product.ID); idx >= 0 {
		if c.items[idx].Quantity < product.Stock {
			c.items[idx].Quantity++
			save = c.cartSaveLocked()
		}
	} else if product.Stock > 0 {
		c.items = append(c.items, models.CartItem{Product: product, Quantity: 1})
		save = c.cartSaveLocked()
	} else {
		c.mu.Unlock()
		c.notifier.Notify(fmt.Sprintf("%s is out of stock", product.Name), c.opts.CartNoticeTTL)
		return
	}
	c.mu.Unlock()

	c.persist(ctx, save)
	c.notifier.Notify(fmt.Sprintf("%s added to cart", product.Name), c.opts.CartNoticeTTL)
}

func (c *Controller) IsInCart(product models.Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexOf(product.ID) >= 0
}

func (c *Controller) CartItem(product models.Product) (models.CartItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(product.ID); idx >= 0 {
		return c.items[idx], true
	}
	return models.CartItem{}, false
}

func (c *Controller) RemoveFromCart(ctx context.Context, item models.CartItem) {
	c.mu.Lock()
	kept := make([]models.CartItem, 0, len(c.items))
	for _, it := range c.items {
		if it.Product.ID != item.Product.ID {
			kept = append(kept, it)
		}
	}
	c.items = kept
	save := c.cartSaveLocked()
	c.mu.Unlock()

	c.persist(ctx, save)
	c.notifier.Notify(fmt.Sprintf("%s removed from cart", item.Product.Name), c.opts.CartNoticeTTL)
}

// IncrementQuantity adds one unit unless the item is already at its product's stock.
func (c *Controller) IncrementQuantity(ctx context.Context, item models.CartItem) {
	c.mu.Lock()
	idx := c.indexOf(item.Product.ID)
	if idx < 0 || c.items[idx].Quantity >= c.items[idx].Product.Stock {
		c.mu.Unlock()
		return
	}
	c.items[idx].Quantity++
	save := c.cartSaveLocked()
	c.mu.Unlock()

	c.persist(ctx, save)
}

// DecrementQuantity removes one unit unless the quantity is already 1.
// Dropping an item from the cart is RemoveFromCart's job.
func (c *Controller) DecrementQuantity(ctx context.Context, item models.CartItem) {
	c.mu.Lock()
	idx := c.indexOf(item.Product.ID)
	if idx < 0 || c.items[idx].Quantity <= 1 {
		c.mu.Unlock()
		return
	}
	c.items[idx].Quantity--
	save := c.cartSaveLocked()
	c.mu.Unlock()

	c.persist(ctx, save)
}

func (c *Controller) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartItem(nil), c.items...)
}

func (c *Controller) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return total(c.items)
}

func (c *Controller) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return itemCount(c.items)
}

func (c *Controller) SetCustomer(info models.CustomerInfo) {
	c.mu.Lock()
	c.customer = info
	c.mu.Unlock()
}

func (c *Controller) Customer() models.CustomerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customer
}

// ValidateCustomer checks the current form values. See ValidateCustomer.
func (c *Controller) ValidateCustomer() error {
	return ValidateCustomer(c.Customer())
}

func (c *Controller) ResetCustomer() {
	c.SetCustomer(models.CustomerInfo{})
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Catalog:       append([]models.Product(nil), c.catalog...),
		Items:         append([]models.CartItem(nil), c.items...),
		Total:         total(c.items),
		ItemCount:     itemCount(c.items),
		Loading:       c.loading,
		Error:         c.failed,
		PlacingOrder:  c.placingOrder,
		Customer:      c.customer,
		CustomerValid: ValidateCustomer(c.customer) == nil,
	}
}

// PlaceOrder submits the current cart to the order sink. It does nothing when
// the form is invalid, the cart is empty, or another placement is in flight.
// On success the submitted lines and the form are cleared; units added while
// the submission was in flight stay in the cart. On failure nothing changes.
func (c *Controller) PlaceOrder(ctx context.Context) PlaceResult {
	c.mu.Lock()
	if c.placingOrder {
		c.mu.Unlock()
		return PlaceResult{Status: StatusInFlight}
	}
	if !c.readyLocked() {
		c.mu.Unlock()
		return PlaceResult{Status: StatusNotReady}
	}
	order := models.Order{
		Items:    append([]models.CartItem(nil), c.items...),
		Customer: c.customer,
		Total:    total(c.items),
		Date:     c.opts.Now(),
	}
	c.placingOrder = true
	c.mu.Unlock()

	id, err := c.sink.SubmitOrder(ctx, order.Record())

	c.mu.Lock()
	c.placingOrder = false

	if err != nil {
		c.mu.Unlock()
		c.logger.Error("Failed to place order", zap.Error(err))
		c.notifier.Notify("Error processing order. Please try again.", c.opts.OrderNoticeTTL)
		return PlaceResult{Status: StatusFailed}
	}

	c.items = withoutSubmitted(c.items, order.Items)
	c.customer = models.CustomerInfo{}
	save := c.cartSaveLocked()
	c.mu.Unlock()

	c.logger.Info("Order placed",
		zap.String("order_id", id),
		zap.Int("lines", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)))
	c.persist(ctx, save)
	c.notifier.Notify("Order placed successfully!", c.opts.OrderNoticeTTL)

	return PlaceResult{Status: StatusPlaced, OrderID: id}
}

// withoutSubmitted subtracts the submitted quantities from the current cart.
func withoutSubmitted(current, submitted []models.CartItem) []models.CartItem {
	sent := make(map[string]int, len(submitted))
	for _, it := range submitted {
		sent[it.Product.ID] = it.Quantity
	}

	var rest []models.CartItem
	for _, it := range current {
		it.Quantity -= sent[it.Product.ID]
		if it.Quantity > 0 {
			rest = append(rest, it)
		}
	}
	return rest
}

// WhatsAppLink builds the manual-dispatch link for the current cart. It
// reports false under the same conditions that make PlaceOrder a no-op.
func (c *Controller) WhatsAppLink() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.readyLocked() {
		return "", false
	}
	text := OrderSummary(c.customer, c.items, total(c.items))
	return WhatsAppURL(c.opts.WhatsAppHost, c.opts.WhatsAppRecipient, text), true
}

func (c *Controller) readyLocked() bool {
	return len(c.items) > 0 && ValidateCustomer(c.customer) == nil
}

func (c *Controller) indexOf(productID string) int {
	for i, it := range c.items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}

// cartSaveLocked must be called with c.mu held.
func (c *Controller) cartSaveLocked() *cartSave {
	c.version++
	return &cartSave{
		items:   append([]models.CartItem{}, c.items...),
		version: c.version,
	}
}

// persist writes save to the cart store without holding c.mu. A save older
// than the last one written is dropped.
func (c *Controller) persist(ctx context.Context, save *cartSave) {
	if save == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if save.version <= c.savedVersion {
		return
	}
	c.savedVersion = save.version

	if err := c.store.SaveCart(ctx, c.opts.CartKey, save.items); err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("Cart save canceled", zap.Error(err))
			return
		}
		c.logger.Warn("Failed to persist cart", zap.Error(err))
	}
}

func total(items []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

func itemCount(items []models.CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
