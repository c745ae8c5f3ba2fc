// Package printing renders receipts and delivers print jobs to the
// receipt printer agent.
//
// Print jobs are written in the same transaction as the payment they
// belong to. The Dispatcher publishes them after commit and a cron sweep
// retries whatever is still pending.
package printing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const receiptWidth = 40

// Receipt is the payload of a receipt print job.
type Receipt struct {
	Restaurant     string          `json:"restaurant"`
	Address        string          `json:"address,omitempty"`
	Cnpj           string          `json:"cnpj,omitempty"`
	Currency       string          `json:"currency"`
	TableNumber    int32           `json:"table_number"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	Method         string          `json:"method"`
	Total          decimal.Decimal `json:"total"`
	AmountReceived *string         `json:"amount_received,omitempty"`
	Change         *string         `json:"change,omitempty"`
	ProcessedAt    time.Time       `json:"processed_at"`
	Orders         []ReceiptOrder  `json:"orders"`
}

type ReceiptOrder struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
	Lines     []ReceiptLine   `json:"lines"`
}

type ReceiptLine struct {
	Name      string          `json:"name"`
	SizeName  string          `json:"size_name,omitempty"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Addons    []ReceiptAddon  `json:"addons,omitempty"`
}

type ReceiptAddon struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Text lays the receipt out for a 40 column thermal printer.
func (r Receipt) Text() string {
	var b strings.Builder
	center(&b, r.Restaurant)
	if r.Address != "" {
		center(&b, r.Address)
	}
	if r.Cnpj != "" {
		center(&b, "CNPJ "+r.Cnpj)
	}
	rule(&b)
	fmt.Fprintf(&b, "Mesa %d\n", r.TableNumber)
	fmt.Fprintf(&b, "%s\n", r.ProcessedAt.Format("02/01/2006 15:04"))
	rule(&b)
	for _, o := range r.Orders {
		for _, l := range o.Lines {
			name := fmt.Sprintf("%dx %s", l.Quantity, l.Name)
			if l.SizeName != "" {
				name += " (" + l.SizeName + ")"
			}
			row(&b, name, r.money(l.Total))
			for _, a := range l.Addons {
				row(&b, "   + "+a.Name, r.money(a.Price))
			}
		}
	}
	rule(&b)
	row(&b, "TOTAL", r.money(r.Total))
	row(&b, "Pagamento", r.Method)
	if r.AmountReceived != nil {
		row(&b, "Recebido", r.Currency+" "+*r.AmountReceived)
	}
	if r.Change != nil {
		row(&b, "Troco", r.Currency+" "+*r.Change)
	}
	return b.String()
}

func (r Receipt) money(d decimal.Decimal) string {
	return r.Currency + " " + d.StringFixed(2)
}

func center(b *strings.Builder, s string) {
	if pad := (receiptWidth - len(s)) / 2; pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteString(s)
	b.WriteByte('\n')
}

func rule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", receiptWidth))
	b.WriteByte('\n')
}

func row(b *strings.Builder, left, right string) {
	gap := receiptWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(left)
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(right)
	b.WriteByte('\n')
}
