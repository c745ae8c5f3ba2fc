package pricing

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineTotal(t *testing.T) {
	item := Item{ID: uuid.New(), Name: "Burger", Price: dec("25.00")}
	large := &Variant{ID: uuid.New(), MenuItemID: item.ID, Name: "Large", PriceModifier: dec("5.00")}
	small := &Variant{ID: uuid.New(), MenuItemID: item.ID, Name: "Small", PriceModifier: dec("-3.50")}
	bacon := Addon{ID: uuid.New(), Name: "Bacon", Price: dec("4.00")}
	cheese := Addon{ID: uuid.New(), Name: "Cheese", Price: dec("2.50")}

	tests := []struct {
		name     string
		variant  *Variant
		addons   []Addon
		quantity int32
		want     string
	}{
		{"plain", nil, nil, 1, "25.00"},
		{"quantity multiplies", nil, nil, 3, "75.00"},
		{"variant adds modifier", large, nil, 2, "60.00"},
		{"negative modifier", small, nil, 2, "43.00"},
		{"addons per unit", nil, []Addon{bacon, cheese}, 2, "63.00"},
		{"duplicate addon counts once", nil, []Addon{bacon, bacon}, 1, "29.00"},
		{"everything", large, []Addon{bacon, cheese}, 2, "73.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LineTotal(item, tt.variant, tt.addons, tt.quantity)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("got %s, want %s", got.StringFixed(2), tt.want)
			}
		})
	}
}

func TestLineTotal_UnitPriceFloorsAtZero(t *testing.T) {
	item := Item{ID: uuid.New(), Price: dec("2.00")}
	v := &Variant{ID: uuid.New(), MenuItemID: item.ID, PriceModifier: dec("-5.00")}
	addon := Addon{ID: uuid.New(), Price: dec("1.00")}

	got, err := LineTotal(item, v, []Addon{addon}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("3.00")) {
		t.Errorf("got %s, want 3.00", got)
	}
}

func TestLineTotal_Errors(t *testing.T) {
	item := Item{ID: uuid.New(), Price: dec("10")}

	if _, err := LineTotal(item, nil, nil, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero quantity: got %v, want ErrInvalidQuantity", err)
	}
	if _, err := LineTotal(item, nil, nil, -2); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("negative quantity: got %v, want ErrInvalidQuantity", err)
	}
	other := &Variant{ID: uuid.New(), MenuItemID: uuid.New()}
	if _, err := LineTotal(item, other, nil, 1); !errors.Is(err, ErrVariantMismatch) {
		t.Errorf("foreign variant: got %v, want ErrVariantMismatch", err)
	}
}

func TestOrderTotal_RoundsOnce(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("0.335"), Quantity: 1},
		{UnitPrice: dec("0.335"), Quantity: 1},
	}
	if got := OrderTotal(lines); !got.Equal(dec("0.67")) {
		t.Errorf("got %s, want 0.67", got)
	}
	if got := OrderTotal(nil); !got.IsZero() {
		t.Errorf("empty order: got %s, want 0", got)
	}
}

func TestOrderSnapshot_Amount(t *testing.T) {
	lines := []Line{{UnitPrice: dec("12.00"), Quantity: 2}}

	recorded := OrderSnapshot{Total: decimal.NewNullDecimal(dec("30.00")), Lines: lines}
	if got := recorded.Amount(); !got.Equal(dec("30.00")) {
		t.Errorf("recorded total: got %s, want 30.00", got)
	}

	missing := OrderSnapshot{Lines: lines}
	if got := missing.Amount(); !got.Equal(dec("24.00")) {
		t.Errorf("missing total: got %s, want 24.00", got)
	}

	zero := OrderSnapshot{Total: decimal.NewNullDecimal(decimal.Zero), Lines: lines}
	if got := zero.Amount(); !got.Equal(dec("24.00")) {
		t.Errorf("zero total: got %s, want 24.00", got)
	}

	empty := OrderSnapshot{Total: decimal.NewNullDecimal(decimal.Zero)}
	if got := empty.Amount(); !got.IsZero() {
		t.Errorf("empty order: got %s, want 0", got)
	}
}

func TestTableTotal(t *testing.T) {
	orders := []OrderSnapshot{
		{Total: decimal.NewNullDecimal(dec("45.50"))},
		{Total: decimal.NewNullDecimal(dec("12.25"))},
		{Lines: []Line{{UnitPrice: dec("8.00"), Quantity: 1, Addons: []Addon{{ID: uuid.New(), Price: dec("1.50")}}}}},
	}
	if got := TableTotal(orders); !got.Equal(dec("67.25")) {
		t.Errorf("got %s, want 67.25", got)
	}
	if got := TableTotal(nil); !got.IsZero() {
		t.Errorf("no orders: got %s, want 0", got)
	}
}

func TestDefaultVariant(t *testing.T) {
	if DefaultVariant(nil) != nil {
		t.Fatal("expected nil for empty list")
	}
	a := Variant{ID: uuid.New(), Name: "Small"}
	b := Variant{ID: uuid.New(), Name: "Medium", IsDefault: true}
	if got := DefaultVariant([]Variant{a, b}); got.ID != b.ID {
		t.Errorf("got %s, want flagged default", got.Name)
	}
	if got := DefaultVariant([]Variant{a}); got.ID != a.ID {
		t.Errorf("got %s, want first variant", got.Name)
	}
}

func TestChange(t *testing.T) {
	if got := Change(dec("47.30"), dec("50")); !got.Equal(dec("2.70")) {
		t.Errorf("got %s, want 2.70", got)
	}
	if got := Change(dec("47.30"), dec("40")); !got.IsNegative() {
		t.Errorf("got %s, want negative", got)
	}
}

func TestOrderTotal_WorkedExamples(t *testing.T) {
	// (20.00 + 5.00 + 2.00 + 3.50) x 3
	item := Item{ID: uuid.New(), Price: dec("20.00")}
	v := &Variant{ID: uuid.New(), MenuItemID: item.ID, PriceModifier: dec("5.00")}
	addons := []Addon{{ID: uuid.New(), Price: dec("2.00")}, {ID: uuid.New(), Price: dec("3.50")}}
	line, err := NewLine(item, v, addons, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := OrderTotal([]Line{line}); !got.Equal(dec("91.50")) {
		t.Errorf("got %s, want 91.50", got)
	}

	single := Line{UnitPrice: dec("12.90"), Quantity: 1}
	if got := OrderTotal([]Line{single}); !got.Equal(dec("12.90")) {
		t.Errorf("one line: got %s, want 12.90", got)
	}
	if got := OrderTotal([]Line{single, single}); !got.Equal(dec("25.80")) {
		t.Errorf("two lines: got %s, want 25.80", got)
	}

	// Same cart twice gives the same total.
	again, _ := NewLine(item, v, addons, 3)
	if !OrderTotal([]Line{line}).Equal(OrderTotal([]Line{again})) {
		t.Error("expected deterministic totals")
	}
}
