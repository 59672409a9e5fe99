package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/kg-components/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticIdentity struct {
	id uuid.UUID
}

func (s *staticIdentity) UserID() (uuid.UUID, bool) {
	return s.id, s.id != uuid.Nil
}

// fakeRepo keeps cart rows in memory and enforces the (user, product) key
type fakeRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]product.Product
	rows     []CartItem
	failNext error
	writes   int
	clock    time.Time
}

func newFakeRepo(products ...product.Product) *fakeRepo {
	r := &fakeRepo{products: map[uuid.UUID]product.Product{}, clock: time.Unix(1700000000, 0)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeRepo) fail() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeRepo) joined(item CartItem) CartItem {
	p := r.products[item.ProductID]
	item.Product = &p
	return item
}

func (r *fakeRepo) ListLines(ctx context.Context, userID uuid.UUID) ([]CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	var out []CartItem
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, r.joined(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return p.Stock, nil
}

func (r *fakeRepo) AddLine(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	held := 0
	for _, row := range r.rows {
		if row.UserID == userID && row.ProductID == productID {
			held = row.Quantity
		}
	}
	if p := r.products[productID]; held+quantity > p.Stock {
		return nil, fmt.Errorf("%w: only %d left", ErrInsufficientStock, p.Stock)
	}
	r.writes++
	for i := range r.rows {
		if r.rows[i].UserID == userID && r.rows[i].ProductID == productID {
			r.rows[i].Quantity += quantity
			out := r.joined(r.rows[i])
			return &out, nil
		}
	}
	r.clock = r.clock.Add(time.Second)
	row := CartItem{ID: uuid.New(), UserID: userID, ProductID: productID, Quantity: quantity, CreatedAt: r.clock}
	r.rows = append(r.rows, row)
	out := r.joined(row)
	return &out, nil
}

func (r *fakeRepo) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return nil, err
	}
	r.writes++
	for i := range r.rows {
		if r.rows[i].ID == lineID && r.rows[i].UserID == userID {
			r.rows[i].Quantity = quantity
			out := r.joined(r.rows[i])
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *fakeRepo) DeleteLine(ctx context.Context, userID, lineID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.writes++
	kept := r.rows[:0]
	for _, row := range r.rows {
		if !(row.ID == lineID && row.UserID == userID) {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func (r *fakeRepo) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	r.writes++
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.UserID != userID {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func item(name, price string, stock int) product.Product {
	return product.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func newTestCache(repo Repository, userID uuid.UUID) (*Cache, *staticIdentity, *notify.Recorder) {
	id := &staticIdentity{id: userID}
	rec := notify.NewRecorder()
	return NewCache(repo, id, rec, logger.Discard()), id, rec
}

func TestAddMergesLinesAndTotals(t *testing.T) {
	resistor := item("Resistor", "10.00", 50)
	capacitor := item("Capacitor", "20.00", 50)
	repo := newFakeRepo(resistor, capacitor)
	c, _, rec := newTestCache(repo, uuid.New())
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, resistor.ID, 2))
	require.NoError(t, c.Add(ctx, capacitor.ID, 1))
	require.NoError(t, c.Add(ctx, resistor.ID, 1))

	state := c.State()
	require.Len(t, state.Lines, 2)
	assert.Equal(t, 3, state.Lines[0].Quantity)
	assert.True(t, state.Total.Equal(decimal.RequireFromString("50")), state.Total.String())
	assert.Equal(t, 4, state.Count)
	assert.Len(t, repo.rows, 2)

	notices := rec.Drain()
	require.Len(t, notices, 3)
	assert.Equal(t, "Item added to cart", notices[0].Title)
}

func TestAddWithStaleViewKeepsOneLinePerProduct(t *testing.T) {
	resistor := item("Resistor", "1.50", 100)
	repo := newFakeRepo(resistor)
	userID := uuid.New()
	ctx := context.Background()

	// two storefronts of the same user, neither aware of the other's line
	a, _, _ := newTestCache(repo, userID)
	b, _, _ := newTestCache(repo, userID)

	require.NoError(t, a.Add(ctx, resistor.ID, 2))
	require.NoError(t, b.Add(ctx, resistor.ID, 3))

	require.Len(t, repo.rows, 1)
	assert.Equal(t, 5, repo.rows[0].Quantity)

	require.NoError(t, a.Load(ctx))
	assert.Equal(t, 5, a.Count())
	assert.True(t, a.Total().Equal(decimal.RequireFromString("7.5")))
}

func TestAddKeepsUnitsAddedElsewhere(t *testing.T) {
	resistor := item("Resistor", "1.00", 100)
	repo := newFakeRepo(resistor)
	userID := uuid.New()
	ctx := context.Background()

	a, _, _ := newTestCache(repo, userID)
	b, _, _ := newTestCache(repo, userID)

	require.NoError(t, a.Add(ctx, resistor.ID, 2))
	require.NoError(t, b.Load(ctx))
	require.NoError(t, b.Add(ctx, resistor.ID, 3))
	// a still holds the line at 2
	require.NoError(t, a.Add(ctx, resistor.ID, 1))

	require.Len(t, repo.rows, 1)
	assert.Equal(t, 6, repo.rows[0].Quantity)
	assert.Equal(t, 6, a.Count())
}

func TestAddCountsStoredUnitsAgainstStock(t *testing.T) {
	chip := item("Chip", "3.00", 5)
	repo := newFakeRepo(chip)
	userID := uuid.New()
	ctx := context.Background()

	a, _, _ := newTestCache(repo, userID)
	b, _, _ := newTestCache(repo, userID)

	require.NoError(t, a.Add(ctx, chip.ID, 4))
	// b never loaded the cart
	assert.ErrorIs(t, b.Add(ctx, chip.ID, 4), ErrInsufficientStock)
	assert.Equal(t, 4, repo.rows[0].Quantity)
	assert.Empty(t, b.Lines())
	assert.NotEmpty(t, b.State().Error)
}

func TestAddWithoutIdentityIsNoop(t *testing.T) {
	resistor := item("Resistor", "1.00", 10)
	repo := newFakeRepo(resistor)
	c, _, rec := newTestCache(repo, uuid.Nil)

	err := c.Add(context.Background(), resistor.ID, 1)
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Zero(t, repo.writes)
	assert.Empty(t, c.Lines())

	notices := rec.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, "Please sign in", notices[0].Title)
	assert.Equal(t, notify.LevelDestructive, notices[0].Level)
}

func TestAddRejectsBadQuantity(t *testing.T) {
	resistor := item("Resistor", "1.00", 10)
	repo := newFakeRepo(resistor)
	c, _, _ := newTestCache(repo, uuid.New())

	assert.ErrorIs(t, c.Add(context.Background(), resistor.ID, 0), ErrInvalidQuantity)
	assert.Zero(t, repo.writes)
}

func TestStockIsEnforcedOnAddAndSetQuantity(t *testing.T) {
	chip := item("Chip", "3.00", 5)
	repo := newFakeRepo(chip)
	c, _, _ := newTestCache(repo, uuid.New())
	ctx := context.Background()

	err := c.Add(ctx, chip.ID, 6)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Zero(t, repo.writes)

	require.NoError(t, c.Add(ctx, chip.ID, 4))
	assert.ErrorIs(t, c.Add(ctx, chip.ID, 2), ErrInsufficientStock)

	line := c.Lines()[0]
	assert.ErrorIs(t, c.SetQuantity(ctx, line.ID, 9), ErrInsufficientStock)
	require.NoError(t, c.SetQuantity(ctx, line.ID, 5))
	assert.Equal(t, 5, c.Count())
	assert.Empty(t, c.State().Error)
}

func TestSetQuantityBelowOneRemoves(t *testing.T) {
	chip := item("Chip", "3.00", 5)
	repo := newFakeRepo(chip)
	c, _, _ := newTestCache(repo, uuid.New())
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, chip.ID, 2))
	line := c.Lines()[0]

	require.NoError(t, c.SetQuantity(ctx, line.ID, 0))
	assert.Empty(t, c.Lines())
	assert.True(t, c.Total().IsZero())
	assert.Empty(t, repo.rows)
}

func TestSetQuantityUnknownLine(t *testing.T) {
	c, _, _ := newTestCache(newFakeRepo(), uuid.New())
	assert.ErrorIs(t, c.SetQuantity(context.Background(), uuid.New(), 2), ErrLineNotFound)
}

func TestClearEmptiesStoreAndTotal(t *testing.T) {
	a, b := item("A", "2.00", 10), item("B", "3.00", 10)
	repo := newFakeRepo(a, b)
	other := uuid.New()
	repo.rows = append(repo.rows, CartItem{ID: uuid.New(), UserID: other, ProductID: a.ID, Quantity: 1})

	c, _, _ := newTestCache(repo, uuid.New())
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, a.ID, 1))
	require.NoError(t, c.Add(ctx, b.ID, 1))

	require.NoError(t, c.Clear(ctx))
	assert.Empty(t, c.Lines())
	assert.True(t, c.Total().IsZero())
	require.Len(t, repo.rows, 1)
	assert.Equal(t, other, repo.rows[0].UserID)
}

func TestFailedWriteLeavesLinesUntouched(t *testing.T) {
	a := item("A", "2.00", 10)
	repo := newFakeRepo(a)
	c, _, rec := newTestCache(repo, uuid.New())
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, a.ID, 1))
	rec.Drain()

	repo.failNext = errors.New("write failed")
	line := c.Lines()[0]
	require.Error(t, c.Remove(ctx, line.ID))

	state := c.State()
	require.Len(t, state.Lines, 1)
	assert.Equal(t, "write failed", state.Error)
	assert.False(t, state.IsLoading)

	notices := rec.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, "Failed to remove item", notices[0].Title)
}

func TestLoadWithoutIdentityClears(t *testing.T) {
	a := item("A", "2.00", 10)
	repo := newFakeRepo(a)
	c, id, _ := newTestCache(repo, uuid.New())
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, a.ID, 1))

	id.id = uuid.Nil
	require.NoError(t, c.Load(ctx))
	assert.Empty(t, c.Lines())
	assert.True(t, c.Total().IsZero())
	assert.Len(t, repo.rows, 1)
}

func TestResetIsLocalOnly(t *testing.T) {
	a := item("A", "2.00", 10)
	repo := newFakeRepo(a)
	c, _, _ := newTestCache(repo, uuid.New())
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, a.ID, 1))
	writes := repo.writes

	c.Reset()
	assert.Empty(t, c.Lines())
	assert.Equal(t, writes, repo.writes)
}
