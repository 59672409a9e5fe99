package order

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Stats summarises a set of orders for the admin dashboard
type Stats struct {
	Total    int             `json:"total"`
	ByStatus map[Status]int  `json:"by_status"`
	Sales    decimal.Decimal `json:"sales"`
	Daily    []DailyPoint    `json:"daily"`
}

// DailyPoint is the order count and sales of one calendar day (UTC)
type DailyPoint struct {
	Date   string          `json:"date"`
	Orders int             `json:"orders"`
	Sales  decimal.Decimal `json:"sales"`
}

// Summarize counts orders per status and sums sales. Cancelled orders are
// counted but never contribute to sales.
func Summarize(orders []Order) Stats {
	s := Stats{
		Total:    len(orders),
		ByStatus: make(map[Status]int, len(Statuses)),
		Sales:    decimal.Zero,
	}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}

	days := map[string]*DailyPoint{}
	for _, o := range orders {
		s.ByStatus[o.Status]++

		day := o.CreatedAt.UTC().Format("2006-01-02")
		p, ok := days[day]
		if !ok {
			p = &DailyPoint{Date: day, Sales: decimal.Zero}
			days[day] = p
		}
		p.Orders++

		if o.Status != StatusCancelled {
			s.Sales = s.Sales.Add(o.TotalAmount)
			p.Sales = p.Sales.Add(o.TotalAmount)
		}
	}

	s.Daily = make([]DailyPoint, 0, len(days))
	for _, p := range days {
		s.Daily = append(s.Daily, *p)
	}
	sort.Slice(s.Daily, func(i, j int) bool { return s.Daily[i].Date < s.Daily[j].Date })
	return s
}
