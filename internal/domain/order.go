package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderEvent is one row of a historical order log. Immutable once parsed.
type OrderEvent struct {
	Hash         string
	Block        int64 // Tick index the order landed in
	Action       string
	Price        decimal.Decimal
	Quantity     int64
	OrderType    string
	SubaccountID string
}

// OrderLogColumns is the column order of the input order log.
var OrderLogColumns = []string{"OrderHash", "Block", "Action", "Price", "Quantity", "OrderType", "SubaccountID"}

// OrderBookColumns is the header of the generated order book. Same order as
// OrderLogColumns, so the output still reads back as an order log.
var OrderBookColumns = []string{"OrderHash", "Block", "Action", "Price", "Quantity", "OrderType", "Subaccount"}

const (
	// ActionNew is the only action emitted by the simulator.
	ActionNew = "EVENT_NEW"
)

// Validate rejects events the influence detector cannot index.
func (e OrderEvent) Validate() error {
	if strings.TrimSpace(e.SubaccountID) == "" {
		return NewValidationError(0, "SubaccountID", "", "missing account id")
	}
	if e.Block < 0 {
		return NewValidationError(0, "Block", strconv.FormatInt(e.Block, 10), "block must be non-negative")
	}
	return nil
}

// ParseOrderEvent converts one raw log row. Only Block and SubaccountID are
// load-bearing; Price and Quantity are parsed leniently and left zero when empty.
func ParseOrderEvent(row int, fields []string) (OrderEvent, error) {
	if len(fields) != len(OrderLogColumns) {
		return OrderEvent{}, NewValidationError(row, "row", strings.Join(fields, ","),
			"expected "+strconv.Itoa(len(OrderLogColumns))+" columns, got "+strconv.Itoa(len(fields)))
	}

	rawBlock := strings.TrimSpace(fields[1])
	block, err := strconv.ParseInt(rawBlock, 10, 64)
	if err != nil {
		return OrderEvent{}, NewValidationError(row, "Block", rawBlock, "block must be an integer")
	}

	account := strings.TrimSpace(fields[6])
	if account == "" {
		return OrderEvent{}, NewValidationError(row, "SubaccountID", "", "missing account id")
	}

	ev := OrderEvent{
		Hash:         strings.TrimSpace(fields[0]),
		Block:        block,
		Action:       strings.TrimSpace(fields[2]),
		OrderType:    strings.TrimSpace(fields[5]),
		SubaccountID: account,
	}

	if raw := strings.TrimSpace(fields[3]); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return OrderEvent{}, NewValidationError(row, "Price", raw, "price must be numeric")
		}
		ev.Price = price
	}
	if raw := strings.TrimSpace(fields[4]); raw != "" {
		qty, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return OrderEvent{}, NewValidationError(row, "Quantity", raw, "quantity must be an integer")
		}
		ev.Quantity = qty
	}

	if err := ev.Validate(); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Row = row
		}
		return OrderEvent{}, err
	}
	return ev, nil
}

// OrderRecord is one generated order-book line for an agent holding a position.
type OrderRecord struct {
	Hash       string
	Block      int64 // Tick index (0-based)
	Action     string
	Price      decimal.Decimal
	Quantity   int64
	OrderType  string // Agent position: "BUY" or "SELL"
	Subaccount int
}

// Fields renders the record in OrderBookColumns order.
func (r OrderRecord) Fields() []string {
	return []string{
		r.Hash,
		strconv.FormatInt(r.Block, 10),
		r.Action,
		r.Price.String(),
		strconv.FormatInt(r.Quantity, 10),
		r.OrderType,
		strconv.Itoa(r.Subaccount),
	}
}
