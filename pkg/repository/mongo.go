package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/shopcart/pkg/cart"
	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository is the document store behind the catalog and the orders collection.
type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, err
	}

	return NewMongoRepositoryWithDatabase(client.Database(cfg.Database), cfg), nil
}

// NewMongoRepositoryWithDatabase wraps an already connected database handle.
func NewMongoRepositoryWithDatabase(db *mongo.Database, cfg *config.MongoDBConfig) *MongoRepository {
	return &MongoRepository{
		client:   db.Client(),
		database: db,
		config:   cfg,
	}
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type productDocument struct {
	ID          bson.RawValue `bson:"_id"`
	Name        string        `bson:"name"`
	Price       float64       `bson:"price"`
	ImageURL    string        `bson:"imageUrl"`
	Description string        `bson:"description"`
	Stock       int           `bson:"stock"`
}

func (d productDocument) product() models.Product {
	return models.Product{
		ID:          documentID(d.ID),
		Name:        d.Name,
		Price:       decimal.NewFromFloat(d.Price),
		ImageURL:    d.ImageURL,
		Description: d.Description,
		Stock:       d.Stock,
	}
}

// documentID accepts both string ids and ObjectIDs.
func documentID(v bson.RawValue) string {
	switch v.Type {
	case bsontype.String:
		return v.StringValue()
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	default:
		return v.String()
	}
}

// ListProducts reads every document of the products collection. Documents
// with a negative price or stock are skipped.
func (m *MongoRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	collection := m.database.Collection(m.config.ProductsCollection)

	cursor, err := collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cart.ErrSourceUnavailable, err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", cart.ErrSourceUnavailable, err)
	}

	products := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		if d.Price < 0 || d.Stock < 0 {
			continue
		}
		products = append(products, d.product())
	}
	if len(products) == 0 {
		return nil, cart.ErrCatalogEmpty
	}

	return products, nil
}

type orderLineDocument struct {
	ProductID   string  `bson:"productId"`
	ProductName string  `bson:"productName"`
	Price       float64 `bson:"price"`
	Quantity    int     `bson:"quantity"`
	Subtotal    float64 `bson:"subtotal"`
}

type orderDocument struct {
	ID       string              `bson:"_id"`
	Items    []orderLineDocument `bson:"items"`
	Customer models.CustomerInfo `bson:"customer"`
	Total    float64             `bson:"total"`
	Date     time.Time           `bson:"date"`
}

func newOrderDocument(id string, rec models.OrderRecord) orderDocument {
	lines := make([]orderLineDocument, len(rec.Items))
	for i, l := range rec.Items {
		lines[i] = orderLineDocument{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       l.Price.InexactFloat64(),
			Quantity:    l.Quantity,
			Subtotal:    l.Subtotal.InexactFloat64(),
		}
	}
	return orderDocument{
		ID:       id,
		Items:    lines,
		Customer: rec.Customer,
		Total:    rec.Total.InexactFloat64(),
		Date:     rec.Date,
	}
}

// SubmitOrder inserts the order into the orders collection under a new id.
func (m *MongoRepository) SubmitOrder(ctx context.Context, rec models.OrderRecord) (string, error) {
	collection := m.database.Collection(m.config.OrdersCollection)

	id := uuid.NewString()
	if _, err := collection.InsertOne(ctx, newOrderDocument(id, rec)); err != nil {
		return "", fmt.Errorf("%w: %v", cart.ErrSinkUnavailable, err)
	}

	return id, nil
}
