// Package catalog is the read-only lookup provider for customer, order,
// payment, product and support-policy data. Everything is loaded once at
// startup from JSON files and kept in memory.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Customer struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Order struct {
	OrderID     string  `json:"orderid"`
	UserID      string  `json:"userid"`
	ProductID   string  `json:"product"`
	PaymentID   string  `json:"paymentid"`
	Status      string  `json:"status"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
	DeliveredOn string  `json:"delivered_on"` // "2006-01-02", empty if undelivered
}

type Payment struct {
	PaymentID string  `json:"paymentid"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Status    string  `json:"status"`
}

type Product struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Category  string  `json:"category"`
}

type Policy struct {
	RefundWindowDays   int    `json:"refund_window_days"`
	ExchangeWindowDays int    `json:"exchange_window_days"`
	SupportHours       string `json:"support_hours"`
	EscalationSLAHours int    `json:"escalation_sla_hours"`
}

type Catalog struct {
	customers []Customer
	orders    []Order
	payments  map[string]Payment
	products  map[string]Product
	policy    Policy

	now func() time.Time
}

func readJSON(dir, name string, v any) error {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", name, err)
	}
	return nil
}

// Load reads the five catalog files from dir.
func Load(dir string) (*Catalog, error) {
	var (
		customers []Customer
		orders    []Order
		payments  []Payment
		products  []Product
		policy    Policy
	)
	if err := readJSON(dir, "customers.json", &customers); err != nil {
		return nil, err
	}
	if err := readJSON(dir, "orders.json", &orders); err != nil {
		return nil, err
	}
	if err := readJSON(dir, "payments.json", &payments); err != nil {
		return nil, err
	}
	if err := readJSON(dir, "products.json", &products); err != nil {
		return nil, err
	}
	if err := readJSON(dir, "support_policy.json", &policy); err != nil {
		return nil, err
	}
	return New(customers, orders, payments, products, policy), nil
}

func New(customers []Customer, orders []Order, payments []Payment, products []Product, policy Policy) *Catalog {
	c := &Catalog{
		customers: customers,
		orders:    orders,
		payments:  map[string]Payment{},
		products:  map[string]Product{},
		policy:    policy,
		now:       time.Now,
	}
	for _, p := range payments {
		c.payments[p.PaymentID] = p
	}
	for _, p := range products {
		c.products[p.ProductID] = p
	}
	return c
}

// FindCustomer looks a customer up by email or phone. At most one match.
func (c *Catalog) FindCustomer(identifier string) (Customer, bool) {
	for _, cust := range c.customers {
		if cust.Email == identifier || cust.Phone == identifier {
			return cust, true
		}
	}
	return Customer{}, false
}

// OrdersByUser returns the user's orders in catalog order (oldest first);
// the last element is the most recently created order.
func (c *Catalog) OrdersByUser(userID string) []Order {
	var out []Order
	for _, o := range c.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out
}

func (c *Catalog) PaymentByID(id string) (Payment, bool) {
	p, ok := c.payments[id]
	return p, ok
}

func (c *Catalog) ProductByID(id string) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

func (c *Catalog) Policy() Policy { return c.policy }

// CanRefund reports whether the order is still inside the refund window.
// Undelivered orders are never refundable.
func (c *Catalog) CanRefund(o Order) bool {
	if o.DeliveredOn == "" {
		return false
	}
	delivered, err := time.Parse("2006-01-02", o.DeliveredOn)
	if err != nil {
		return false
	}
	days := int(c.now().Sub(delivered).Hours() / 24)
	return days <= c.policy.RefundWindowDays
}
