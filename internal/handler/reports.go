package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/lifecycle"
	"github.com/mesa-digital/api/internal/report"
	"github.com/mesa-digital/api/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetSettings(ctx context.Context) (database.RestaurantSetting, error)
	ListReportOrders(ctx context.Context, arg database.ListReportOrdersParams) ([]database.ListReportOrdersRow, error)
	ListReportLines(ctx context.Context, orderIDs []uuid.UUID) ([]database.ListReportLinesRow, error)
	ListOrderItemAddonsByItems(ctx context.Context, itemIDs []uuid.UUID) ([]database.OrderItemAddon, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
	now   func() time.Time
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store, now: time.Now}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted at /admin/reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/recent-orders.csv", h.RecentOrdersCSV)
}

// --- Response types ---

type itemStatResponse struct {
	MenuItemID *uuid.UUID `json:"menu_item_id"`
	Name       string     `json:"name"`
	Quantity   int64      `json:"quantity"`
	Revenue    string     `json:"revenue"`
}

type addonStatResponse struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type hourBucketResponse struct {
	Hour    int    `json:"hour"`
	Orders  int    `json:"orders"`
	Revenue string `json:"revenue"`
}

type dayBucketResponse struct {
	Date    string `json:"date"`
	Orders  int    `json:"orders"`
	Revenue string `json:"revenue"`
}

type tableStatResponse struct {
	TableID     uuid.UUID `json:"table_id"`
	TableNumber int32     `json:"table_number"`
	Orders      int       `json:"orders"`
	Revenue     string    `json:"revenue"`
}

type recentOrderResponse struct {
	ID          uuid.UUID `json:"id"`
	TableNumber int32     `json:"table_number"`
	Status      string    `json:"status"`
	Total       string    `json:"total"`
	ItemsCount  int       `json:"items_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type recentPageResponse struct {
	Orders     []recentOrderResponse `json:"orders"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalCount int                   `json:"total_count"`
}

type summaryResponse struct {
	Period            string               `json:"period"`
	StartDate         string               `json:"start_date"`
	EndDate           string               `json:"end_date"`
	Widened           bool                 `json:"widened"`
	TotalOrders       int                  `json:"total_orders"`
	TotalRevenue      string               `json:"total_revenue"`
	AverageOrderValue string               `json:"average_order_value"`
	TotalItems        int64                `json:"total_items"`
	TablesServed      int                  `json:"tables_served"`
	PopularItems      []itemStatResponse   `json:"popular_items"`
	PopularAddons     []addonStatResponse  `json:"popular_addons"`
	Hourly            []hourBucketResponse `json:"hourly"`
	Daily             []dayBucketResponse  `json:"daily"`
	Tables            []tableStatResponse  `json:"tables"`
	Recent            recentPageResponse   `json:"recent"`
}

// --- Handlers ---

// Summary returns the sales dashboard for ?period=today|week|month|custom
// (custom takes start_date and end_date as YYYY-MM-DD). An empty range is
// widened to the trailing 30 days.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	opts, err := parseReportPaging(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, ok := h.build(w, r, opts)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(res))
}

// RecentOrdersCSV exports the recent orders of the selected range.
func (h *ReportsHandler) RecentOrdersCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := h.build(w, r, report.Options{Page: 1, PageSize: report.DefaultRecentLimit})
	if !ok {
		return
	}

	filename := fmt.Sprintf("recent-orders-%s.csv", res.rng.Start.Format(time.DateOnly))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.WriteHeader(http.StatusOK)
	if err := report.WriteRecentCSV(w, res.summary.Recent.Orders); err != nil {
		log.Error().Err(err).Msg("write recent orders csv")
	}
}

// --- Helpers ---

type reportResult struct {
	rng     report.Range
	loc     *time.Location
	widened bool
	summary report.Summary
}

func (h *ReportsHandler) build(w http.ResponseWriter, r *http.Request, opts report.Options) (reportResult, bool) {
	ctx := r.Context()

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Error().Err(err).Msg("reports: get settings")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return reportResult{}, false
		}
		settings = service.DefaultSettings()
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", settings.Timezone).Msg("reports: unknown timezone, using UTC")
		loc = time.UTC
	}

	now := h.now()
	q := r.URL.Query()
	rng, err := report.ResolveRange(q.Get("period"), q.Get("start_date"), q.Get("end_date"), now, loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return reportResult{}, false
	}

	orders, err := h.loadOrders(ctx, rng)
	if err != nil {
		log.Error().Err(err).Msg("reports: list orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return reportResult{}, false
	}

	res := reportResult{rng: rng, loc: loc}
	if len(orders) == 0 {
		wide := report.Trailing30(now, loc)
		if !wide.Start.Equal(rng.Start) || !wide.End.Equal(rng.End) {
			orders, err = h.loadOrders(ctx, wide)
			if err != nil {
				log.Error().Err(err).Msg("reports: list orders (trailing 30 days)")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return reportResult{}, false
			}
			res.rng = wide
			res.widened = true
		}
	}

	lines, addons, err := h.loadLines(ctx, orders)
	if err != nil {
		log.Error().Err(err).Msg("reports: list lines")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return reportResult{}, false
	}

	report.FillMissingTotals(orders, lines, addons)

	opts.Location = loc
	opts.Now = now
	res.summary = report.Build(orders, lines, addons, opts)
	return res, true
}

func (h *ReportsHandler) loadOrders(ctx context.Context, rng report.Range) ([]report.Order, error) {
	rows, err := h.store.ListReportOrders(ctx, database.ListReportOrdersParams{
		Statuses:  lifecycle.ReportStatuses(),
		StartDate: rng.Start,
		EndDate:   rng.End,
	})
	if err != nil {
		return nil, err
	}
	orders := make([]report.Order, len(rows))
	for i, row := range rows {
		orders[i] = report.Order{
			ID:          row.ID,
			TableID:     row.TableID,
			TableNumber: row.TableNumber,
			Status:      row.Status,
			Total:       database.NumericToDecimal(row.Total),
			CreatedAt:   row.CreatedAt,

			TotalMissing: !row.Total.Valid,
		}
	}
	return orders, nil
}

func (h *ReportsHandler) loadLines(ctx context.Context, orders []report.Order) ([]report.Line, []report.AddonSelection, error) {
	if len(orders) == 0 {
		return nil, nil, nil
	}
	orderIDs := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}

	rows, err := h.store.ListReportLines(ctx, orderIDs)
	if err != nil {
		return nil, nil, err
	}
	lines := make([]report.Line, len(rows))
	itemIDs := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		line := report.Line{
			ID:        row.ID,
			OrderID:   row.OrderID,
			Name:      row.MenuItemName,
			Quantity:  row.Quantity,
			UnitPrice: report.LinePrice(nullDecimal(row.UnitPrice), nullDecimal(row.CatalogPrice)),
		}
		if row.MenuItemID.Valid {
			line.MenuItemID = uuid.NullUUID{UUID: row.MenuItemID.Bytes, Valid: true}
		}
		lines[i] = line
		itemIDs[i] = row.ID
	}

	if len(itemIDs) == 0 {
		return lines, nil, nil
	}
	addonRows, err := h.store.ListOrderItemAddonsByItems(ctx, itemIDs)
	if err != nil {
		return nil, nil, err
	}
	addons := make([]report.AddonSelection, len(addonRows))
	for i, a := range addonRows {
		addons[i] = report.AddonSelection{
			OrderItemID: a.OrderItemID,
			Name:        a.AddonName,
			Price:       database.NumericToDecimal(a.AddonPrice),
		}
	}
	return lines, addons, nil
}

func parseReportPaging(r *http.Request) (report.Options, error) {
	opts := report.Options{}
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
		max  int
	}{
		{"page", &opts.Page, 0},
		{"page_size", &opts.PageSize, 100},
		{"top", &opts.TopN, 50},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid %s", p.name)
		}
		if p.max > 0 && n > p.max {
			n = p.max
		}
		*p.dst = n
	}
	return opts, nil
}

func nullDecimal(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(database.NumericToDecimal(n))
}

func toSummaryResponse(res reportResult) summaryResponse {
	s := res.summary
	resp := summaryResponse{
		Period:            res.rng.Period,
		StartDate:         res.rng.Start.In(res.loc).Format(time.DateOnly),
		EndDate:           res.rng.End.In(res.loc).AddDate(0, 0, -1).Format(time.DateOnly),
		Widened:           res.widened,
		TotalOrders:       s.TotalOrders,
		TotalRevenue:      s.TotalRevenue.StringFixed(2),
		AverageOrderValue: s.AverageOrderValue.StringFixed(2),
		TotalItems:        s.TotalItems,
		TablesServed:      s.TablesServed,
		PopularItems:      make([]itemStatResponse, len(s.PopularItems)),
		PopularAddons:     make([]addonStatResponse, len(s.PopularAddons)),
		Hourly:            make([]hourBucketResponse, len(s.Hourly)),
		Daily:             make([]dayBucketResponse, len(s.Daily)),
		Tables:            make([]tableStatResponse, len(s.Tables)),
		Recent: recentPageResponse{
			Orders:     make([]recentOrderResponse, len(s.Recent.Orders)),
			Page:       s.Recent.Page,
			PageSize:   s.Recent.PageSize,
			TotalCount: s.Recent.TotalCount,
		},
	}
	for i, it := range s.PopularItems {
		item := itemStatResponse{Name: it.Name, Quantity: it.Quantity, Revenue: it.Revenue.StringFixed(2)}
		if it.MenuItemID.Valid {
			id := it.MenuItemID.UUID
			item.MenuItemID = &id
		}
		resp.PopularItems[i] = item
	}
	for i, a := range s.PopularAddons {
		resp.PopularAddons[i] = addonStatResponse{Name: a.Name, Count: a.Count}
	}
	for i, b := range s.Hourly {
		resp.Hourly[i] = hourBucketResponse{Hour: b.Hour, Orders: b.Orders, Revenue: b.Revenue.StringFixed(2)}
	}
	for i, b := range s.Daily {
		resp.Daily[i] = dayBucketResponse{Date: b.Date, Orders: b.Orders, Revenue: b.Revenue.StringFixed(2)}
	}
	for i, t := range s.Tables {
		resp.Tables[i] = tableStatResponse{
			TableID:     t.TableID,
			TableNumber: t.TableNumber,
			Orders:      t.Orders,
			Revenue:     t.Revenue.StringFixed(2),
		}
	}
	for i, o := range s.Recent.Orders {
		resp.Recent.Orders[i] = recentOrderResponse{
			ID:          o.ID,
			TableNumber: o.TableNumber,
			Status:      o.Status,
			Total:       o.Total.StringFixed(2),
			ItemsCount:  o.ItemsCount,
			CreatedAt:   o.CreatedAt,
		}
	}
	return resp
}
