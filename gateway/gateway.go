package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/shopcart/pkg/cart"
	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/models"
	"github.com/example/shopcart/pkg/notify"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/example/shopcart/docs"
)

// NotificationLister returns the transient notifications still on screen.
type NotificationLister interface {
	Active(ctx context.Context) ([]notify.Notification, error)
}

type Gateway struct {
	config        *config.GatewayConfig
	controller    *cart.Controller
	notifications NotificationLister
	logger        *zap.Logger
	router        *gin.Engine
	server        *http.Server
}

func NewGateway(cfg *config.GatewayConfig, controller *cart.Controller, notifications NotificationLister, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config:        cfg,
		controller:    controller,
		notifications: notifications,
		logger:        logger,
		router:        router,
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (g *Gateway) SetupRoutes() {
	v1 := g.router.Group("/api/v1")
	{
		v1.GET("/health", g.health)

		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.POST("/reload", g.reloadProducts)
			products.GET("/:id", g.getProduct)
		}

		cartGroup := v1.Group("/cart")
		{
			cartGroup.GET("", g.getCart)
			cartGroup.POST("/items", g.addItem)
			cartGroup.GET("/items/:productId", g.getCartItem)
			cartGroup.DELETE("/items/:productId", g.removeItem)
			cartGroup.POST("/items/:productId/increment", g.incrementItem)
			cartGroup.POST("/items/:productId/decrement", g.decrementItem)
		}

		checkout := v1.Group("/checkout")
		{
			checkout.PUT("/customer", g.setCustomer)
			checkout.GET("/whatsapp", g.whatsAppLink)
		}

		v1.POST("/orders", g.placeOrder)
		v1.GET("/notifications", g.listNotifications)
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))

	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type cartItemResponse struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Subtotal string         `json:"subtotal"`
}

type cartResponse struct {
	Items        []cartItemResponse `json:"items"`
	Total        string             `json:"total"`
	ItemCount    int                `json:"itemCount"`
	Loading      bool               `json:"loading"`
	Error        bool               `json:"error"`
	PlacingOrder bool               `json:"placingOrder"`
}

type addItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

type customerResponse struct {
	Customer models.CustomerInfo `json:"customer"`
	Valid    bool                `json:"valid"`
}

type orderResponse struct {
	Status  cart.PlaceStatus `json:"status"`
	OrderID string           `json:"orderId,omitempty"`
}

func newCartItemResponse(item models.CartItem) cartItemResponse {
	return cartItemResponse{
		Product:  item.Product,
		Quantity: item.Quantity,
		Subtotal: item.Subtotal().StringFixed(2),
	}
}

func newCartResponse(state cart.State) cartResponse {
	items := make([]cartItemResponse, len(state.Items))
	for i, it := range state.Items {
		items[i] = newCartItemResponse(it)
	}
	return cartResponse{
		Items:        items,
		Total:        state.Total.StringFixed(2),
		ItemCount:    state.ItemCount,
		Loading:      state.Loading,
		Error:        state.Error,
		PlacingOrder: state.PlacingOrder,
	}
}

// health godoc
// @Summary Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (g *Gateway) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listProducts godoc
// @Summary List the catalog
// @Description error is true when the backup catalog is being shown
// @Tags products
// @Produce json
// @Router /products [get]
func (g *Gateway) listProducts(c *gin.Context) {
	state := g.controller.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"products": state.Catalog,
		"loading":  state.Loading,
		"error":    state.Error,
	})
}

// reloadProducts godoc
// @Summary Fetch the catalog again from the catalog source
// @Tags products
// @Produce json
// @Router /products/reload [post]
func (g *Gateway) reloadProducts(c *gin.Context) {
	g.controller.LoadCatalog(c.Request.Context())
	g.listProducts(c)
}

// getProduct godoc
// @Summary Get one catalog entry
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} errorResponse
// @Router /products/{id} [get]
func (g *Gateway) getProduct(c *gin.Context) {
	product, ok := g.controller.Product(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// getCart godoc
// @Summary Current cart with total and item count
// @Tags cart
// @Produce json
// @Success 200 {object} cartResponse
// @Router /cart [get]
func (g *Gateway) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, newCartResponse(g.controller.Snapshot()))
}

// addItem godoc
// @Summary Add one unit of a product to the cart
// @Tags cart
// @Accept json
// @Produce json
// @Param request body addItemRequest true "Product to add"
// @Success 200 {object} cartResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /cart/items [post]
func (g *Gateway) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	product, ok := g.controller.Product(req.ProductID)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "product not found"})
		return
	}

	g.controller.AddToCart(c.Request.Context(), product)
	g.getCart(c)
}

// cartItem resolves the :productId path parameter to the cart line for it.
func (g *Gateway) cartItem(c *gin.Context) (models.CartItem, bool) {
	item, ok := g.controller.CartItem(models.Product{ID: c.Param("productId")})
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "product is not in the cart"})
	}
	return item, ok
}

// getCartItem godoc
// @Summary Get the cart line for a product
// @Tags cart
// @Produce json
// @Param productId path string true "Product ID"
// @Success 200 {object} cartItemResponse
// @Failure 404 {object} errorResponse
// @Router /cart/items/{productId} [get]
func (g *Gateway) getCartItem(c *gin.Context) {
	item, ok := g.cartItem(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newCartItemResponse(item))
}

// removeItem godoc
// @Summary Remove a product from the cart
// @Tags cart
// @Produce json
// @Param productId path string true "Product ID"
// @Success 200 {object} cartResponse
// @Failure 404 {object} errorResponse
// @Router /cart/items/{productId} [delete]
func (g *Gateway) removeItem(c *gin.Context) {
	item, ok := g.cartItem(c)
	if !ok {
		return
	}
	g.controller.RemoveFromCart(c.Request.Context(), item)
	g.getCart(c)
}

// incrementItem godoc
// @Summary Add one unit, up to the product's stock
// @Tags cart
// @Produce json
// @Param productId path string true "Product ID"
// @Success 200 {object} cartResponse
// @Failure 404 {object} errorResponse
// @Router /cart/items/{productId}/increment [post]
func (g *Gateway) incrementItem(c *gin.Context) {
	item, ok := g.cartItem(c)
	if !ok {
		return
	}
	g.controller.IncrementQuantity(c.Request.Context(), item)
	g.getCart(c)
}

// decrementItem godoc
// @Summary Remove one unit, never below one
// @Tags cart
// @Produce json
// @Param productId path string true "Product ID"
// @Success 200 {object} cartResponse
// @Failure 404 {object} errorResponse
// @Router /cart/items/{productId}/decrement [post]
func (g *Gateway) decrementItem(c *gin.Context) {
	item, ok := g.cartItem(c)
	if !ok {
		return
	}
	g.controller.DecrementQuantity(c.Request.Context(), item)
	g.getCart(c)
}

// setCustomer godoc
// @Summary Set the checkout form
// @Description The form is stored even when invalid; the 422 body lists failing fields.
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body models.CustomerInfo true "Customer details"
// @Success 200 {object} customerResponse
// @Failure 400 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /checkout/customer [put]
func (g *Gateway) setCustomer(c *gin.Context) {
	var info models.CustomerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	g.controller.SetCustomer(info)
	if err := g.controller.ValidateCustomer(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:  "invalid customer details",
			Fields: fieldErrors(err),
		})
		return
	}

	c.JSON(http.StatusOK, customerResponse{Customer: info, Valid: true})
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonField(fe.Field())] = fe.Tag()
	}
	return fields
}

func jsonField(name string) string {
	switch name {
	case "Name":
		return "name"
	case "Phone":
		return "phone"
	case "Address":
		return "address"
	}
	return name
}

// placeOrder godoc
// @Summary Submit the cart as an order
// @Tags checkout
// @Produce json
// @Success 201 {object} orderResponse
// @Failure 409 {object} orderResponse
// @Failure 422 {object} orderResponse
// @Failure 502 {object} orderResponse
// @Router /orders [post]
func (g *Gateway) placeOrder(c *gin.Context) {
	res := g.controller.PlaceOrder(c.Request.Context())

	code := http.StatusBadGateway
	switch res.Status {
	case cart.StatusPlaced:
		code = http.StatusCreated
	case cart.StatusInFlight:
		code = http.StatusConflict
	case cart.StatusNotReady:
		code = http.StatusUnprocessableEntity
	}
	c.JSON(code, orderResponse{Status: res.Status, OrderID: res.OrderID})
}

// whatsAppLink godoc
// @Summary Manual order dispatch link
// @Tags checkout
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 422 {object} errorResponse
// @Router /checkout/whatsapp [get]
func (g *Gateway) whatsAppLink(c *gin.Context) {
	link, ok := g.controller.WhatsAppLink()
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "cart is empty or customer details are incomplete"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": link})
}

// listNotifications godoc
// @Summary Notifications that have not been dismissed yet
// @Tags system
// @Produce json
// @Success 200 {array} notify.Notification
// @Router /notifications [get]
func (g *Gateway) listNotifications(c *gin.Context) {
	active, err := g.notifications.Active(c.Request.Context())
	if err != nil {
		g.logger.Error("Failed to list notifications", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "notifications unavailable"})
		return
	}
	if active == nil {
		active = []notify.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": active})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
