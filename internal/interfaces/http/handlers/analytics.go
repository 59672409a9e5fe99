// internal/interfaces/http/handlers/analytics.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/domain/order"
)

const recentOrders = 5

// AdminDashboard handles GET /admin?days=. Totals cover every order; the
// daily series covers the last days days (30 by default).
func (h *OrderHandler) AdminDashboard(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil && d > 0 && d <= 365 {
			days = d
		}
	}

	sf := storefront(c)
	if err := sf.Orders.FetchAll(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	orders := sf.Orders.Orders()

	stats := order.Summarize(orders)
	since := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	daily := stats.Daily[:0:0]
	for _, p := range stats.Daily {
		if p.Date >= since {
			daily = append(daily, p)
		}
	}
	stats.Daily = daily

	recent := orders
	if len(recent) > recentOrders {
		recent = recent[:recentOrders]
	}

	respond(c, http.StatusOK, "Dashboard statistics retrieved successfully", gin.H{
		"stats":  stats,
		"recent": recent,
		"days":   days,
	})
}
