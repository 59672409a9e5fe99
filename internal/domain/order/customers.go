package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/store"
)

// CustomerSummary is a profile with the number of orders it has placed
type CustomerSummary struct {
	user.Profile
	OrderCount int64 `json:"order_count"`
}

// CustomersRequest is the list-customers payload. Search matches the
// email or full name, case-insensitively.
type CustomersRequest struct {
	Search string `json:"search,omitempty"`
}

var customerColumns = fmt.Sprintf(
	"%[1]s.*, (SELECT COUNT(*) FROM %[2]s WHERE %[2]s.user_id = %[1]s.id) AS order_count",
	user.ProfilesTable, OrdersTable,
)

func (p *Procedures) listCustomers(ctx context.Context, tx *store.Tx, caller *store.Caller, payload json.RawMessage) (any, error) {
	const op = ProcListCustomers
	if err := requireAdmin(tx.DB, op, caller); err != nil {
		return nil, err
	}

	var req CustomersRequest
	if err := store.Decode(op, payload, &req); err != nil {
		return nil, err
	}

	q := tx.DB.Model(&user.Profile{}).Select(customerColumns)
	if s := strings.ToLower(strings.TrimSpace(req.Search)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}

	customers := []CustomerSummary{}
	if err := q.Order(user.ProfilesTable + ".created_at DESC").Scan(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}
