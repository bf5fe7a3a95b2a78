package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FullName       string    `json:"full_name"`
	IsActive       bool      `json:"is_active"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Book struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Description     string          `json:"description"`
	Cover           string          `json:"cover"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	PublicationDate string          `json:"publication_date"`
	Publisher       string          `json:"publisher"`
	ISBN            string          `json:"isbn"`
	Pages           int             `json:"pages"`
	Format          string          `json:"format"`
	Featured        bool            `json:"featured"`
	Stock           int             `json:"stock"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MarshalJSON renders the price with two decimals.
func (b Book) MarshalJSON() ([]byte, error) {
	type book Book
	return json.Marshal(struct {
		book
		Price string `json:"price"`
	}{book(b), money(b.Price)})
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentID       *string         `json:"payment_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ItemCount       int             `json:"item_count"`
	Items           []OrderItem     `json:"items"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	type order Order
	return json.Marshal(struct {
		order
		TotalAmount string `json:"total_amount"`
	}{order(o), money(o.TotalAmount)})
}

// SetItems attaches items and keeps the derived item count in sync.
func (o *Order) SetItems(items []OrderItem) {
	if items == nil {
		items = []OrderItem{}
	}
	o.Items = items
	o.ItemCount = len(items)
}

// ItemsTotal sums unit_price * quantity over the attached items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	BookID    string          `json:"book_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	// Position is the zero-based index of the line in the placed cart.
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func (i OrderItem) MarshalJSON() ([]byte, error) {
	type orderItem OrderItem
	return json.Marshal(struct {
		orderItem
		UnitPrice string `json:"unit_price"`
	}{orderItem(i), money(i.UnitPrice)})
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

type WishlistItem struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	BookID  string    `json:"book_id"`
	AddedAt time.Time `json:"added_at"`
	Book    *Book     `json:"book,omitempty"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, status := range orderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// money formats an amount the way it is stored: NUMERIC with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
