package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/store"
	"github.com/kg-components/storefront/internal/store/storetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type cartDB struct {
	db     *gorm.DB
	client *store.Client
}

func newCartDB(t *testing.T) *cartDB {
	db := storetest.Open(t, &product.Category{}, &product.Product{}, &CartItem{})
	client := storetest.Client(db)
	RegisterProcedures(client)
	return &cartDB{db: db, client: client}
}

func (c *cartDB) product(t *testing.T, name string, stock int) product.Product {
	p := product.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString("2.50"), Stock: stock}
	require.NoError(t, c.db.Create(&p).Error)
	return p
}

func (c *cartDB) add(userID, productID uuid.UUID, qty int) (*CartItem, error) {
	var line CartItem
	err := c.client.InvokeAs(context.Background(), &store.Caller{UserID: userID}, ProcAddToCart,
		AddRequest{ProductID: productID, Quantity: qty}, &line)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (c *cartDB) stored(t *testing.T, userID, productID uuid.UUID) int {
	var line CartItem
	require.NoError(t, c.db.Where("user_id = ? AND product_id = ?", userID, productID).First(&line).Error)
	return line.Quantity
}

func TestAddToCartIncrementsStoredLine(t *testing.T) {
	c := newCartDB(t)
	relay := c.product(t, "Relay", 10)
	userID := uuid.New()

	first, err := c.add(userID, relay.ID, 2)
	require.NoError(t, err)
	second, err := c.add(userID, relay.ID, 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)
	require.NotNil(t, second.Product)
	assert.Equal(t, "Relay", second.Product.Name)
	assert.Equal(t, 5, c.stored(t, userID, relay.ID))

	var lines int64
	require.NoError(t, c.db.Model(&CartItem{}).Count(&lines).Error)
	assert.EqualValues(t, 1, lines)
}

func TestAddToCartChecksStoredQuantityAgainstStock(t *testing.T) {
	c := newCartDB(t)
	chip := c.product(t, "Chip", 5)
	userID := uuid.New()

	_, err := c.add(userID, chip.ID, 4)
	require.NoError(t, err)

	_, err = c.add(userID, chip.ID, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, "Only 5 of Chip left in stock", err.Error())
	assert.Equal(t, 4, c.stored(t, userID, chip.ID))

	_, err = c.add(userID, chip.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, c.stored(t, userID, chip.ID))
}

func TestAddToCartRejects(t *testing.T) {
	c := newCartDB(t)
	chip := c.product(t, "Chip", 5)

	_, err := c.add(uuid.New(), uuid.New(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = c.add(uuid.New(), chip.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	err = c.client.InvokeAs(context.Background(), nil, ProcAddToCart, AddRequest{ProductID: chip.ID, Quantity: 1}, nil)
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
}
