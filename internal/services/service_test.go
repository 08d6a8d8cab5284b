package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/soleshop/internal/database"
	"github.com/example/soleshop/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory DB.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, phone string) models.User {
	t.Helper()
	user := models.User{
		FirstName:    "Test",
		LastName:     "User",
		Phone:        phone,
		DisplayName:  "Test User",
		PasswordHash: "x",
		Role:         models.RoleCustomer,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

type seedItem struct {
	name      string
	size      string
	quantity  int
	unitPrice float64
}

func seedOrder(t *testing.T, db *gorm.DB, user models.User, status models.OrderStatus, items ...seedItem) models.Order {
	t.Helper()

	order := models.Order{
		UserID:      user.ID,
		OrderNumber: "SO" + time.Now().Format("150405.000000") + user.Phone,
		Status:      status,
		PlacedAt:    time.Now(),
		Currency:    "TWD",
	}
	for _, it := range items {
		order.Items = append(order.Items, models.OrderItem{
			ProductName: it.name,
			Size:        it.size,
			Quantity:    it.quantity,
			UnitPrice:   it.unitPrice,
			LineTotal:   it.unitPrice * float64(it.quantity),
		})
		order.Subtotal += it.unitPrice * float64(it.quantity)
	}
	order.TotalAmount = order.Subtotal
	require.NoError(t, db.Create(&order).Error)
	return order
}
