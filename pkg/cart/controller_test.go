package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/shopcart/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	products []models.Product
	err      error
}

func (f *fakeSource) ListProducts(context.Context) ([]models.Product, error) {
	return f.products, f.err
}

type fakeSink struct {
	mu      sync.Mutex
	err     error
	records []models.OrderRecord
	// when set, SubmitOrder signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSink) SubmitOrder(_ context.Context, rec models.OrderRecord) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, rec)
	return "order-1", nil
}

type memStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
	err   error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) LoadCart(_ context.Context, key string) ([]models.CartItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	var items []models.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (s *memStore) SaveCart(_ context.Context, key string, items []models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.err != nil {
		return s.err
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

// blockingStore holds SaveCart until release is closed.
type blockingStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) SaveCart(ctx context.Context, key string, items []models.CartItem) error {
	s.entered <- struct{}{}
	<-s.release
	return s.memStore.SaveCart(ctx, key, items)
}

type notice struct {
	message string
	ttl     time.Duration
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(message string, ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{message, ttl})
}

func (n *recordingNotifier) last() notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return notice{}
	}
	return n.notices[len(n.notices)-1]
}

type harness struct {
	ctrl     *Controller
	source   *fakeSource
	sink     *fakeSink
	store    *memStore
	notifier *recordingNotifier
}

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:   &fakeSource{products: BackupCatalog()},
		sink:     &fakeSink{},
		store:    newMemStore(),
		notifier: &recordingNotifier{},
	}
	h.ctrl = NewController(h.source, h.sink, h.store, h.notifier, Options{
		Now: func() time.Time { return fixedNow },
	}, zap.NewNop())
	return h
}

var validCustomer = models.CustomerInfo{Name: "Ana", Phone: "+59170000000", Address: "Calle 1"}

func product(id string, price string, stock int) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), Stock: stock}
}

func sumItems(items []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func TestLoadCatalog(t *testing.T) {
	remote := []models.Product{product("a", "10.00", 3), product("b", "2.50", 1)}

	tests := []struct {
		name      string
		source    *fakeSource
		wantIDs   []string
		wantError bool
	}{
		{name: "remote products", source: &fakeSource{products: remote}, wantIDs: []string{"a", "b"}},
		{name: "source error", source: &fakeSource{err: ErrSourceUnavailable}, wantIDs: []string{"1", "2", "3"}, wantError: true},
		{name: "empty result", source: &fakeSource{products: []models.Product{}}, wantIDs: []string{"1", "2", "3"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.source = tt.source

			h.ctrl.LoadCatalog(context.Background())

			state := h.ctrl.Snapshot()
			ids := make([]string, len(state.Catalog))
			for i, p := range state.Catalog {
				ids[i] = p.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantError, state.Error)
			assert.False(t, state.Loading)
		})
	}
}

func TestLoadCatalog_BackupMatchesBuiltIn(t *testing.T) {
	h := newHarness(t)
	h.ctrl.source = &fakeSource{err: errors.New("boom")}

	h.ctrl.LoadCatalog(context.Background())

	assert.Equal(t, BackupCatalog(), h.ctrl.Catalog())
}

func TestProductLookup(t *testing.T) {
	h := newHarness(t)
	h.ctrl.LoadCatalog(context.Background())

	p, ok := h.ctrl.Product("2")
	require.True(t, ok)
	assert.Equal(t, "Laptop Pro", p.Name)

	_, ok = h.ctrl.Product("missing")
	assert.False(t, ok)
}

func TestAddToCart(t *testing.T) {
	ctx := context.Background()

	t.Run("new product appended with quantity 1", func(t *testing.T) {
		h := newHarness(t)
		p := product("a", "5.00", 3)

		h.ctrl.AddToCart(ctx, p)

		item, ok := h.ctrl.CartItem(p)
		require.True(t, ok)
		assert.Equal(t, 1, item.Quantity)
		assert.True(t, h.ctrl.IsInCart(p))
		assert.Equal(t, notice{"Product a added to cart", 2 * time.Second}, h.notifier.last())
	})

	t.Run("never exceeds stock", func(t *testing.T) {
		h := newHarness(t)
		p := product("a", "5.00", 3)

		for i := 0; i < 10; i++ {
			h.ctrl.AddToCart(ctx, p)
			item, _ := h.ctrl.CartItem(p)
			assert.LessOrEqual(t, item.Quantity, p.Stock)
		}
		item, _ := h.ctrl.CartItem(p)
		assert.Equal(t, 3, item.Quantity)
	})

	t.Run("stock of one added twice", func(t *testing.T) {
		h := newHarness(t)
		p := product("solo", "1.00", 1)

		h.ctrl.AddToCart(ctx, p)
		h.ctrl.AddToCart(ctx, p)

		items := h.ctrl.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 1, items[0].Quantity)
	})

	t.Run("out of stock product is not added", func(t *testing.T) {
		h := newHarness(t)
		p := product("none", "1.00", 0)

		h.ctrl.AddToCart(ctx, p)

		assert.False(t, h.ctrl.IsInCart(p))
		assert.Equal(t, "Product none is out of stock", h.notifier.last().message)
	})

	t.Run("insertion order preserved", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.AddToCart(ctx, product("b", "1.00", 5))
		h.ctrl.AddToCart(ctx, product("a", "1.00", 5))
		h.ctrl.AddToCart(ctx, product("b", "1.00", 5))

		items := h.ctrl.Items()
		require.Len(t, items, 2)
		assert.Equal(t, "b", items[0].Product.ID)
		assert.Equal(t, "a", items[1].Product.ID)
	})
}

func TestCartItem_Absent(t *testing.T) {
	h := newHarness(t)
	_, ok := h.ctrl.CartItem(product("x", "1.00", 1))
	assert.False(t, ok)
	assert.False(t, h.ctrl.IsInCart(product("x", "1.00", 1)))
}

func TestRemoveFromCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, b := product("a", "1.00", 5), product("b", "2.00", 5)
	h.ctrl.AddToCart(ctx, a)
	h.ctrl.AddToCart(ctx, b)

	item, _ := h.ctrl.CartItem(a)
	h.ctrl.RemoveFromCart(ctx, item)

	assert.False(t, h.ctrl.IsInCart(a))
	assert.True(t, h.ctrl.IsInCart(b))
	assert.Equal(t, notice{"Product a removed from cart", 2 * time.Second}, h.notifier.last())
}

func TestIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := product("a", "1.50", 2)
	h.ctrl.AddToCart(ctx, p)

	item, _ := h.ctrl.CartItem(p)
	h.ctrl.IncrementQuantity(ctx, item)
	item, _ = h.ctrl.CartItem(p)
	assert.Equal(t, 2, item.Quantity)

	h.ctrl.IncrementQuantity(ctx, item)
	item, _ = h.ctrl.CartItem(p)
	assert.Equal(t, 2, item.Quantity, "increment clamps at stock")

	h.ctrl.DecrementQuantity(ctx, item)
	item, _ = h.ctrl.CartItem(p)
	assert.Equal(t, 1, item.Quantity)

	for i := 0; i < 3; i++ {
		h.ctrl.DecrementQuantity(ctx, item)
	}
	item, ok := h.ctrl.CartItem(p)
	require.True(t, ok, "decrement never removes the item")
	assert.Equal(t, 1, item.Quantity)
}

func TestIncrement_UsesCurrentQuantity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := product("a", "1.00", 3)
	h.ctrl.AddToCart(ctx, p)
	stale, _ := h.ctrl.CartItem(p)
	h.ctrl.AddToCart(ctx, p)
	h.ctrl.AddToCart(ctx, p)

	h.ctrl.IncrementQuantity(ctx, stale)

	item, _ := h.ctrl.CartItem(p)
	assert.Equal(t, 3, item.Quantity)
}

func TestTotalTracksMutations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a, b := product("a", "699.99", 10), product("b", "0.10", 4)

	check := func() {
		t.Helper()
		assert.True(t, sumItems(h.ctrl.Items()).Equal(h.ctrl.Total()))
	}

	h.ctrl.AddToCart(ctx, a)
	check()
	h.ctrl.AddToCart(ctx, b)
	check()
	h.ctrl.AddToCart(ctx, b)
	check()
	item, _ := h.ctrl.CartItem(b)
	h.ctrl.IncrementQuantity(ctx, item)
	check()
	h.ctrl.DecrementQuantity(ctx, item)
	check()
	h.ctrl.RemoveFromCart(ctx, item)
	check()

	assert.Equal(t, "699.99", h.ctrl.Total().StringFixed(2))
	assert.Equal(t, 1, h.ctrl.ItemCount())
}

func TestItemCount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ctrl.AddToCart(ctx, product("a", "1.00", 5))
	h.ctrl.AddToCart(ctx, product("a", "1.00", 5))
	h.ctrl.AddToCart(ctx, product("b", "1.00", 5))

	assert.Equal(t, 3, h.ctrl.ItemCount())
}

func TestPersistOnMutation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := product("a", "3.00", 5)

	h.ctrl.AddToCart(ctx, p)
	h.ctrl.AddToCart(ctx, p)

	items, found, err := h.store.LoadCart(ctx, "cartItems")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 2, h.store.saves)

	h.ctrl.RemoveFromCart(ctx, items[0])
	items, _, _ = h.store.LoadCart(ctx, "cartItems")
	assert.Empty(t, items)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.store.err = errors.New("redis down")

	h.ctrl.AddToCart(ctx, product("a", "1.00", 2))

	assert.Equal(t, 1, h.ctrl.ItemCount())
}

func TestPersistDoesNotBlockReaders(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	store := &blockingStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
	h.ctrl.store = store

	added := make(chan struct{})
	go func() {
		h.ctrl.AddToCart(ctx, product("a", "5.00", 3))
		close(added)
	}()
	<-store.entered

	snapshot := make(chan State, 1)
	go func() { snapshot <- h.ctrl.Snapshot() }()

	select {
	case state := <-snapshot:
		assert.Equal(t, 1, state.ItemCount)
		assert.Equal(t, "5.00", state.Total.StringFixed(2))
	case <-time.After(time.Second):
		t.Fatal("Snapshot waited for the cart store")
	}

	close(store.release)
	<-added
	items, found, err := store.LoadCart(ctx, "cartItems")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, items, 1)
}

func TestPersistDropsStaleSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := product("a", "1.00", 5)

	h.ctrl.mu.Lock()
	h.ctrl.items = []models.CartItem{{Product: p, Quantity: 1}}
	older := h.ctrl.cartSaveLocked()
	h.ctrl.items[0].Quantity = 2
	newer := h.ctrl.cartSaveLocked()
	h.ctrl.mu.Unlock()

	h.ctrl.persist(ctx, newer)
	h.ctrl.persist(ctx, older)

	items, _, err := h.store.LoadCart(ctx, "cartItems")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, h.store.saves)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("restores persisted cart", func(t *testing.T) {
		first := newHarness(t)
		first.ctrl.AddToCart(ctx, product("a", "2.00", 5))
		first.ctrl.AddToCart(ctx, product("a", "2.00", 5))

		second := newHarness(t)
		second.ctrl.store = first.store
		require.NoError(t, second.ctrl.Restore(ctx))

		items := second.ctrl.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 2, items[0].Quantity)
		assert.Equal(t, "4.00", second.ctrl.Total().StringFixed(2))
	})

	t.Run("nothing stored", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.ctrl.Restore(ctx))
		assert.Empty(t, h.ctrl.Items())
	})

	t.Run("corrupt value", func(t *testing.T) {
		h := newHarness(t)
		h.store.data["cartItems"] = []byte("{not json")
		assert.Error(t, h.ctrl.Restore(ctx))
		assert.Empty(t, h.ctrl.Items())
	})
}

func TestCustomerForm(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.ctrl.ValidateCustomer(), ErrValidationFailed)

	h.ctrl.SetCustomer(validCustomer)
	assert.NoError(t, h.ctrl.ValidateCustomer())
	assert.True(t, h.ctrl.Snapshot().CustomerValid)

	h.ctrl.ResetCustomer()
	assert.Equal(t, models.CustomerInfo{}, h.ctrl.Customer())
}

func TestPlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := product("a", "699.99", 10)
	h.ctrl.AddToCart(ctx, p)
	h.ctrl.AddToCart(ctx, p)
	h.ctrl.SetCustomer(validCustomer)

	res := h.ctrl.PlaceOrder(ctx)

	assert.Equal(t, PlaceResult{Status: StatusPlaced, OrderID: "order-1"}, res)
	require.Len(t, h.sink.records, 1)
	rec := h.sink.records[0]
	require.Len(t, rec.Items, 1)
	assert.Equal(t, "a", rec.Items[0].ProductID)
	assert.Equal(t, "Product a", rec.Items[0].ProductName)
	assert.Equal(t, 2, rec.Items[0].Quantity)
	assert.Equal(t, "1399.98", rec.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "1399.98", rec.Total.StringFixed(2))
	assert.Equal(t, validCustomer, rec.Customer)
	assert.Equal(t, fixedNow, rec.Date)

	assert.Empty(t, h.ctrl.Items())
	assert.Equal(t, models.CustomerInfo{}, h.ctrl.Customer())
	assert.False(t, h.ctrl.Snapshot().PlacingOrder)
	assert.Equal(t, notice{"Order placed successfully!", 3 * time.Second}, h.notifier.last())

	stored, found, err := h.store.LoadCart(ctx, "cartItems")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, stored)
}

func TestPlaceOrder_FailureKeepsState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.sink.err = ErrSinkUnavailable
	p := product("a", "10.00", 10)
	h.ctrl.AddToCart(ctx, p)
	h.ctrl.SetCustomer(validCustomer)
	before := h.ctrl.Snapshot()

	res := h.ctrl.PlaceOrder(ctx)

	assert.Equal(t, StatusFailed, res.Status)
	after := h.ctrl.Snapshot()
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, before.Customer, after.Customer)
	assert.False(t, after.PlacingOrder)
	assert.Equal(t, notice{"Error processing order. Please try again.", 3 * time.Second}, h.notifier.last())
}

func TestPlaceOrder_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.SetCustomer(validCustomer)
		assert.Equal(t, StatusNotReady, h.ctrl.PlaceOrder(ctx).Status)
		assert.Empty(t, h.sink.records)
	})

	t.Run("invalid form", func(t *testing.T) {
		h := newHarness(t)
		h.ctrl.AddToCart(ctx, product("a", "1.00", 1))
		h.ctrl.SetCustomer(models.CustomerInfo{Name: "Ana", Phone: "12", Address: "Calle 1"})
		assert.Equal(t, StatusNotReady, h.ctrl.PlaceOrder(ctx).Status)
		assert.Empty(t, h.sink.records)
		assert.Len(t, h.ctrl.Items(), 1)
	})
}

func TestPlaceOrder_SecondCallWhileInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.sink.entered = make(chan struct{})
	h.sink.release = make(chan struct{})
	h.ctrl.AddToCart(ctx, product("a", "1.00", 1))
	h.ctrl.SetCustomer(validCustomer)

	done := make(chan PlaceResult)
	go func() { done <- h.ctrl.PlaceOrder(ctx) }()

	<-h.sink.entered
	assert.True(t, h.ctrl.Snapshot().PlacingOrder)
	assert.Equal(t, StatusInFlight, h.ctrl.PlaceOrder(ctx).Status)

	close(h.sink.release)
	assert.Equal(t, StatusPlaced, (<-done).Status)
	assert.Len(t, h.sink.records, 1)
}

func TestPlaceOrder_KeepsItemsAddedInFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.sink.entered = make(chan struct{})
	h.sink.release = make(chan struct{})
	a := product("a", "2.00", 5)
	b := product("b", "3.00", 5)
	h.ctrl.AddToCart(ctx, a)
	h.ctrl.SetCustomer(validCustomer)

	done := make(chan PlaceResult)
	go func() { done <- h.ctrl.PlaceOrder(ctx) }()

	<-h.sink.entered
	h.ctrl.AddToCart(ctx, a)
	h.ctrl.AddToCart(ctx, b)
	close(h.sink.release)
	require.Equal(t, StatusPlaced, (<-done).Status)

	require.Len(t, h.sink.records, 1)
	assert.Equal(t, 1, h.sink.records[0].Items[0].Quantity)

	items := h.ctrl.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Product.ID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "b", items[1].Product.ID)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, models.CustomerInfo{}, h.ctrl.Customer())

	stored, _, err := h.store.LoadCart(ctx, "cartItems")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestWhatsAppLink(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	phone := BackupCatalog()[0]
	h.ctrl.AddToCart(ctx, phone)
	h.ctrl.AddToCart(ctx, phone)
	h.ctrl.SetCustomer(validCustomer)

	link, ok := h.ctrl.WhatsAppLink()
	require.True(t, ok)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "wa.me", u.Host)
	assert.Equal(t, "/123456789", u.Path)
	assert.NotContains(t, u.RawQuery, "+")

	text := u.Query().Get("text")
	assert.Contains(t, strings.Split(text, "\n"), "- 2x Smartphone XYZ: 1399.98")
	assert.Contains(t, text, "2x Smartphone XYZ: 1399.98")
	assert.True(t, strings.HasSuffix(text, "Total: 1399.98"))
	assert.Contains(t, text, "Customer: Ana")
	assert.Contains(t, text, "Phone: +59170000000")
	assert.Contains(t, text, "Address: Calle 1")

	// no side effects
	assert.Len(t, h.ctrl.Items(), 1)
	assert.Empty(t, h.sink.records)
}

func TestWhatsAppLink_Guards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.ctrl.SetCustomer(validCustomer)
	_, ok := h.ctrl.WhatsAppLink()
	assert.False(t, ok, "empty cart")

	h.ctrl.AddToCart(ctx, product("a", "1.00", 1))
	h.ctrl.SetCustomer(models.CustomerInfo{Name: "", Phone: "+59170000000", Address: "Calle 1"})
	_, ok = h.ctrl.WhatsAppLink()
	assert.False(t, ok, "invalid form")
}

func TestWhatsAppLink_CustomRecipient(t *testing.T) {
	h := newHarness(t)
	h.ctrl.opts.WhatsAppHost = "api.example.com"
	h.ctrl.opts.WhatsAppRecipient = "59170000001"
	h.ctrl.AddToCart(context.Background(), product("a", "1.00", 1))
	h.ctrl.SetCustomer(validCustomer)

	link, ok := h.ctrl.WhatsAppLink()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(link, "https://api.example.com/59170000001?text="))
}
