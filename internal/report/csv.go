package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var recentCSVHeader = []string{"order_id", "table_number", "status", "total", "items_count", "created_at"}

// WriteRecentCSV writes recent orders as CSV with a header row.
func WriteRecentCSV(w io.Writer, orders []RecentOrder) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recentCSVHeader); err != nil {
		return err
	}
	for _, o := range orders {
		record := []string{
			o.ID.String(),
			strconv.Itoa(int(o.TableNumber)),
			o.Status,
			o.Total.StringFixed(2),
			strconv.Itoa(o.ItemsCount),
			o.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
