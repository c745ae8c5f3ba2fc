// Package report aggregates sales figures from orders, their lines and the
// add-ons selected on those lines. Aggregation is a pure in-memory pass; the
// caller loads the rows for the chosen date range.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultTopN        = 10
	DefaultRecentLimit = 50
	DefaultPageSize    = 10
	dailyBuckets       = 7
)

// Order is one order counted in the report.
type Order struct {
	ID          uuid.UUID
	TableID     uuid.UUID
	TableNumber int32
	Status      string
	Total       decimal.Decimal
	CreatedAt   time.Time

	// TotalMissing marks an order stored without a total. FillMissingTotals
	// derives one from its lines.
	TotalMissing bool
}

// Line is one order line with its resolved unit price.
type Line struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.NullUUID
	Name       string
	Quantity   int32
	UnitPrice  decimal.Decimal
}

// AddonSelection is one add-on chosen on a line.
type AddonSelection struct {
	OrderItemID uuid.UUID
	Name        string
	Price       decimal.Decimal
}

// FillMissingTotals sets the total of every order marked TotalMissing to
// the sum of its lines, each line being its unit price plus add-on prices
// times its quantity.
func FillMissingTotals(orders []Order, lines []Line, addons []AddonSelection) {
	missing := make(map[uuid.UUID]int)
	for i, o := range orders {
		if o.TotalMissing {
			missing[o.ID] = i
			orders[i].Total = decimal.Zero
		}
	}
	if len(missing) == 0 {
		return
	}

	addonSum := make(map[uuid.UUID]decimal.Decimal)
	for _, a := range addons {
		addonSum[a.OrderItemID] = addonSum[a.OrderItemID].Add(a.Price)
	}
	for _, l := range lines {
		i, ok := missing[l.OrderID]
		if !ok {
			continue
		}
		unit := l.UnitPrice.Add(addonSum[l.ID])
		orders[i].Total = orders[i].Total.Add(unit.Mul(decimal.NewFromInt32(l.Quantity)))
	}
}

type Options struct {
	Location    *time.Location
	Now         time.Time
	TopN        int
	RecentLimit int
	Page        int
	PageSize    int
}

type ItemStat struct {
	MenuItemID uuid.NullUUID
	Name       string
	Quantity   int64
	Revenue    decimal.Decimal
}

type AddonStat struct {
	Name  string
	Count int64
}

type HourBucket struct {
	Hour    int
	Orders  int
	Revenue decimal.Decimal
}

type DayBucket struct {
	Date    string
	Orders  int
	Revenue decimal.Decimal
}

type TableStat struct {
	TableID     uuid.UUID
	TableNumber int32
	Orders      int
	Revenue     decimal.Decimal
}

type RecentOrder struct {
	ID          uuid.UUID
	TableNumber int32
	Status      string
	Total       decimal.Decimal
	ItemsCount  int
	CreatedAt   time.Time
}

type RecentPage struct {
	Orders     []RecentOrder
	Page       int
	PageSize   int
	TotalCount int
}

type Summary struct {
	TotalOrders       int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	TotalItems        int64
	TablesServed      int
	PopularItems      []ItemStat
	PopularAddons     []AddonStat
	Hourly            []HourBucket
	Daily             []DayBucket
	Tables            []TableStat
	Recent            RecentPage
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	if o.Page <= 0 {
		o.Page = 1
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	return o
}

// Build computes the summary. Lines and add-ons that reference orders or
// lines outside the given set are ignored.
func Build(orders []Order, lines []Line, addons []AddonSelection, opts Options) Summary {
	opts = opts.withDefaults()

	s := Summary{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		Hourly:            make([]HourBucket, 24),
	}
	for h := range s.Hourly {
		s.Hourly[h] = HourBucket{Hour: h, Revenue: decimal.Zero}
	}

	today := startOfDay(opts.Now.In(opts.Location))
	dayIndex := make(map[string]int, dailyBuckets)
	for i := dailyBuckets - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format(time.DateOnly)
		dayIndex[date] = len(s.Daily)
		s.Daily = append(s.Daily, DayBucket{Date: date, Revenue: decimal.Zero})
	}

	inRange := make(map[uuid.UUID]bool, len(orders))
	itemsPerOrder := make(map[uuid.UUID]int, len(orders))
	tables := make(map[uuid.UUID]*TableStat)

	for _, o := range orders {
		inRange[o.ID] = true
		s.TotalOrders++
		s.TotalRevenue = s.TotalRevenue.Add(o.Total)

		local := o.CreatedAt.In(opts.Location)
		b := &s.Hourly[local.Hour()]
		b.Orders++
		b.Revenue = b.Revenue.Add(o.Total)

		if i, ok := dayIndex[local.Format(time.DateOnly)]; ok {
			d := &s.Daily[i]
			d.Orders++
			d.Revenue = d.Revenue.Add(o.Total)
		}

		ts, ok := tables[o.TableID]
		if !ok {
			ts = &TableStat{TableID: o.TableID, TableNumber: o.TableNumber, Revenue: decimal.Zero}
			tables[o.TableID] = ts
		}
		ts.Orders++
		ts.Revenue = ts.Revenue.Add(o.Total)
	}
	s.TablesServed = len(tables)
	if s.TotalOrders > 0 {
		s.AverageOrderValue = s.TotalRevenue.Div(decimal.NewFromInt(int64(s.TotalOrders))).Round(2)
	}
	s.TotalRevenue = s.TotalRevenue.Round(2)

	items := make(map[string]*ItemStat)
	countedLines := make(map[uuid.UUID]bool, len(lines))
	for _, l := range lines {
		if !inRange[l.OrderID] {
			continue
		}
		countedLines[l.ID] = true
		itemsPerOrder[l.OrderID]++
		s.TotalItems += int64(l.Quantity)

		key := l.Name
		if l.MenuItemID.Valid {
			key = l.MenuItemID.UUID.String()
		}
		st, ok := items[key]
		if !ok {
			st = &ItemStat{MenuItemID: l.MenuItemID, Name: l.Name, Revenue: decimal.Zero}
			items[key] = st
		}
		st.Quantity += int64(l.Quantity)
		st.Revenue = st.Revenue.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}

	addonCounts := make(map[string]int64)
	for _, a := range addons {
		if !countedLines[a.OrderItemID] {
			continue
		}
		addonCounts[a.Name]++
	}

	s.PopularItems = topItems(items, opts.TopN)
	s.PopularAddons = topAddons(addonCounts, opts.TopN)
	s.Tables = sortedTables(tables)
	s.Recent = recentPage(orders, itemsPerOrder, opts)
	return s
}

func topItems(items map[string]*ItemStat, n int) []ItemStat {
	out := make([]ItemStat, 0, len(items))
	for _, st := range items {
		st.Revenue = st.Revenue.Round(2)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topAddons(counts map[string]int64, n int) []AddonStat {
	out := make([]AddonStat, 0, len(counts))
	for name, c := range counts {
		out = append(out, AddonStat{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func sortedTables(tables map[uuid.UUID]*TableStat) []TableStat {
	out := make([]TableStat, 0, len(tables))
	for _, ts := range tables {
		ts.Revenue = ts.Revenue.Round(2)
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders != out[j].Orders {
			return out[i].Orders > out[j].Orders
		}
		return out[i].TableNumber < out[j].TableNumber
	})
	return out
}

// recentPage keeps the newest RecentLimit orders and returns one page of them.
func recentPage(orders []Order, itemsPerOrder map[uuid.UUID]int, opts Options) RecentPage {
	sorted := make([]Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	if len(sorted) > opts.RecentLimit {
		sorted = sorted[:opts.RecentLimit]
	}

	page := RecentPage{Page: opts.Page, PageSize: opts.PageSize, TotalCount: len(sorted), Orders: []RecentOrder{}}
	start := (opts.Page - 1) * opts.PageSize
	if start >= len(sorted) {
		return page
	}
	end := start + opts.PageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	for _, o := range sorted[start:end] {
		page.Orders = append(page.Orders, RecentOrder{
			ID:          o.ID,
			TableNumber: o.TableNumber,
			Status:      o.Status,
			Total:       o.Total.Round(2),
			ItemsCount:  itemsPerOrder[o.ID],
			CreatedAt:   o.CreatedAt,
		})
	}
	return page
}

// LinePrice picks the recorded unit price of a line, falling back to the
// current catalog price for lines stored without one.
func LinePrice(recorded, catalog decimal.NullDecimal) decimal.Decimal {
	if recorded.Valid {
		return recorded.Decimal
	}
	if catalog.Valid {
		return catalog.Decimal
	}
	return decimal.Zero
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
