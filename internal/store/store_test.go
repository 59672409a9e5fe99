package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/pkg/auth"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "KG Components"},
		JWT:      config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", AccessTokenExpiry: time.Hour},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func offlineClient() *Client {
	return NewClient(testConfig(), nil, nil, logger.Discard())
}

type row struct {
	ID   uuid.UUID
	Name string
}

func TestOfflineReadsAreEmpty(t *testing.T) {
	h := offlineClient().Connect(context.Background(), "")

	var rows []row
	require.NoError(t, h.Query(context.Background(), "products", &rows, Query{
		Filters: []Filter{Eq("category_id", uuid.New())},
		Order:   OrderBy("name", false),
	}))
	assert.Empty(t, rows)

	var one row
	err := h.First(context.Background(), "products", &one, Query{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOfflineWritesFail(t *testing.T) {
	ctx := context.Background()
	h := offlineClient().Connect(ctx, "")

	err := h.Upsert(ctx, "cart_items", &row{}, OnConflict("user_id", "product_id"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOffline)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "upsert", se.Op)
	assert.NotEmpty(t, se.Message)

	assert.ErrorIs(t, h.Update(ctx, "orders", map[string]any{"status": "processing"}, Eq("id", uuid.New())), ErrOffline)
	assert.ErrorIs(t, h.Delete(ctx, "cart_items", &row{}, Eq("id", uuid.New())), ErrOffline)
}

func TestMutationsRequireFilters(t *testing.T) {
	ctx := context.Background()
	h := offlineClient().Connect(ctx, "")

	err := h.Delete(ctx, "cart_items", &row{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOffline)

	err = h.Update(ctx, "orders", map[string]any{"status": "pending"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOffline)
}

func TestRejectsBadIdentifiers(t *testing.T) {
	h := offlineClient().Connect(context.Background(), "")

	var rows []row
	assert.Error(t, h.Query(context.Background(), "products; drop table x", &rows, Query{}))

	_, err := Eq("name = 1 or 1", "x").Expression()
	assert.Error(t, err)

	_, err = ILike("x").Expression()
	assert.Error(t, err)
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()
	c := offlineClient()
	c.Register("echo", func(ctx context.Context, tx *Tx, caller *Caller, payload json.RawMessage) (any, error) {
		return nil, nil
	})
	h := c.Connect(ctx, "")

	err := h.Invoke(ctx, "missing", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.ErrorIs(t, h.Invoke(ctx, "echo", map[string]string{"a": "b"}, nil), ErrOffline)

	assert.Panics(t, func() {
		c.Register("echo", func(context.Context, *Tx, *Caller, json.RawMessage) (any, error) { return nil, nil })
	})
}

func TestFilterExpressions(t *testing.T) {
	e, err := Eq("category_id", 7).Expression()
	require.NoError(t, err)
	eq, ok := e.(clause.Eq)
	require.True(t, ok)
	assert.Equal(t, "category_id", eq.Column.(clause.Column).Name)
	assert.Equal(t, 7, eq.Value)

	e, err = Gte("price", 10).Expression()
	require.NoError(t, err)
	assert.IsType(t, clause.Gte{}, e)

	e, err = ILike("arduino", "name", "description").Expression()
	require.NoError(t, err)
	or, ok := e.(clause.OrConditions)
	require.True(t, ok)
	assert.Len(t, or.Exprs, 2)

	e, err = ILike("arduino", "name").Expression()
	require.NoError(t, err)
	assert.IsType(t, clause.Expr{}, e)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%uno%", ContainsPattern("uno"))
	assert.Equal(t, `%50\%\_off%`, ContainsPattern("50%_off"))
	assert.Equal(t, `%a\\b%`, ContainsPattern(`a\b`))
}

func TestConflictClause(t *testing.T) {
	oc, err := OnConflict("user_id", "product_id").clause("cart_items")
	require.NoError(t, err)
	assert.True(t, oc.UpdateAll)
	assert.Len(t, oc.Columns, 2)

	oc, err = OnConflict("user_id", "product_id").Incrementing("quantity").clause("cart_items")
	require.NoError(t, err)
	assert.False(t, oc.UpdateAll)
	assert.Len(t, oc.DoUpdates, 2)

	_, err = OnConflict("bad column").clause("cart_items")
	assert.Error(t, err)
}

func TestSessionRestoreAndSignOut(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	c := NewClient(cfg, nil, nil, logger.Discard())

	userID := uuid.New()
	token, _, err := auth.NewJWTManager(cfg).GenerateAccessToken(userID, "ada@example.com")
	require.NoError(t, err)

	h := c.Connect(ctx, token)

	var events []AuthEvent
	unsubscribe := h.OnSessionChange(ctx, func(_ context.Context, ev AuthEvent, s *Session) {
		events = append(events, ev)
		if ev == EventInitialSession {
			require.NotNil(t, s)
			assert.Equal(t, userID, s.User.ID)
		}
	})

	s, err := h.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "ada@example.com", s.User.Email)

	require.NoError(t, h.SignOut(ctx))
	s, err = h.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	unsubscribe()
	require.NoError(t, h.SignOut(ctx))

	assert.Equal(t, []AuthEvent{EventInitialSession, EventSignedOut}, events)
}

func TestConnectIgnoresInvalidCredential(t *testing.T) {
	ctx := context.Background()
	h := offlineClient().Connect(ctx, "not-a-token")

	s, err := h.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}
