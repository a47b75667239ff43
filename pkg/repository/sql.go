package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/shopcart/pkg/cart"
	"github.com/example/shopcart/pkg/config"
	"github.com/example/shopcart/pkg/models"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// SQLRepository archives placed orders in a relational table. It is the
// order sink when order_sink.driver is "mysql".
type SQLRepository struct {
	db *gorm.DB
}

func NewSQLRepository(cfg *config.MySQLConfig) (*SQLRepository, error) {
	// Connect to MySQL
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	// Auto migrate
	if err := db.AutoMigrate(&models.OrderRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return NewSQLRepositoryWithDB(db), nil
}

func NewSQLRepositoryWithDB(db *gorm.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) SubmitOrder(ctx context.Context, rec models.OrderRecord) (string, error) {
	itemsJSON, err := json.Marshal(rec.Items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize items: %w", err)
	}

	row := &models.OrderRow{
		ID:              uuid.NewString(),
		CustomerName:    rec.Customer.Name,
		CustomerPhone:   rec.Customer.Phone,
		CustomerAddress: rec.Customer.Address,
		Items:           string(itemsJSON),
		Total:           rec.Total,
		PlacedAt:        rec.Date,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", fmt.Errorf("%w: %v", cart.ErrSinkUnavailable, err)
	}

	return row.ID, nil
}

func (r *SQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
