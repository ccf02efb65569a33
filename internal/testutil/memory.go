// Package testutil provides in-memory collaborators shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"onlinestore/internal/model"
	"onlinestore/internal/repository"
	"onlinestore/internal/service"
)

type memState struct {
	products        map[string]model.Product
	recipients      map[string]string
	paymentMethods  map[string]bool
	deliveryMethods map[string]bool
	basket          []model.BasketLine
	orders          []model.Order
	attempts        []model.PaymentAttempt
}

func newMemState() *memState {
	return &memState{
		products:        make(map[string]model.Product),
		recipients:      make(map[string]string),
		paymentMethods:  make(map[string]bool),
		deliveryMethods: make(map[string]bool),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.recipients {
		c.recipients[k] = v
	}
	for k, v := range s.paymentMethods {
		c.paymentMethods[k] = v
	}
	for k, v := range s.deliveryMethods {
		c.deliveryMethods[k] = v
	}
	c.basket = append([]model.BasketLine(nil), s.basket...)
	c.orders = make([]model.Order, len(s.orders))
	for i, o := range s.orders {
		c.orders[i] = copyOrder(o)
	}
	c.attempts = make([]model.PaymentAttempt, len(s.attempts))
	for i, a := range s.attempts {
		c.attempts[i] = copyAttempt(a)
	}
	return c
}

func copyOrder(o model.Order) model.Order {
	o.Lines = append([]model.OrderLine(nil), o.Lines...)
	return o
}

func copyAttempt(a model.PaymentAttempt) model.PaymentAttempt {
	a.ProviderReference = append([]byte(nil), a.ProviderReference...)
	return a
}

type faults struct {
	mu  sync.Mutex
	err map[string]error
}

func (f *faults) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err[op]
}

// MemoryRepository implements repository.Repository in memory. Transactions
// are serialized and work on a copy of the state that replaces the original
// only when the callback succeeds.
type MemoryRepository struct {
	mu     *sync.Mutex
	st     *memState
	inTx   bool
	faults *faults
}

var _ repository.Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		mu:     &sync.Mutex{},
		st:     newMemState(),
		faults: &faults{err: make(map[string]error)},
	}
}

// FailOn makes every later call of the named method return err. A nil err
// clears the fault.
func (m *MemoryRepository) FailOn(method string, err error) {
	m.faults.mu.Lock()
	defer m.faults.mu.Unlock()
	if err == nil {
		delete(m.faults.err, method)
		return
	}
	m.faults.err[method] = err
}

func (m *MemoryRepository) begin(method string) (func(), error) {
	if err := m.faults.check(method); err != nil {
		return nil, err
	}
	if m.inTx {
		return func() {}, nil
	}
	m.mu.Lock()
	return m.mu.Unlock, nil
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if m.inTx {
		return fn(m)
	}
	if err := m.faults.check("WithTx"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryRepository{mu: m.mu, st: m.st.clone(), inTx: true, faults: m.faults}
	if err := fn(tx); err != nil {
		return err
	}
	m.st = tx.st
	return nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	return m.faults.check("Ping")
}

func (m *MemoryRepository) withProduct(l model.BasketLine) model.BasketLine {
	l.Product = m.st.products[l.ProductID]
	return l
}

func (m *MemoryRepository) UpsertBasketLine(ctx context.Context, ownerID, productID string, quantity int) (*model.BasketLine, bool, error) {
	unlock, err := m.begin("UpsertBasketLine")
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	if _, ok := m.st.products[productID]; !ok {
		return nil, false, fmt.Errorf("upsert basket line: %w", repository.ErrForeignKey)
	}

	for i := range m.st.basket {
		l := &m.st.basket[i]
		if l.OwnerID == ownerID && l.ProductID == productID {
			l.Quantity += quantity
			out := m.withProduct(*l)
			return &out, false, nil
		}
	}

	l := model.BasketLine{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}
	m.st.basket = append(m.st.basket, l)
	out := m.withProduct(l)
	return &out, true, nil
}

func (m *MemoryRepository) UpdateBasketLine(ctx context.Context, ownerID, lineID string, quantity int) (*model.BasketLine, error) {
	unlock, err := m.begin("UpdateBasketLine")
	if err != nil {
		return nil, err
	}
	defer unlock()

	for i := range m.st.basket {
		l := &m.st.basket[i]
		if l.ID == lineID && l.OwnerID == ownerID {
			l.Quantity = quantity
			out := m.withProduct(*l)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("update basket line: %w", repository.ErrNotFound)
}

func (m *MemoryRepository) ListBasketLines(ctx context.Context, ownerID string, forUpdate bool) ([]model.BasketLine, error) {
	unlock, err := m.begin("ListBasketLines")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var lines []model.BasketLine
	for _, l := range m.st.basket {
		if l.OwnerID == ownerID {
			lines = append(lines, m.withProduct(l))
		}
	}
	return lines, nil
}

func (m *MemoryRepository) DeleteBasketLines(ctx context.Context, ownerID string, lineIDs []string) (int64, error) {
	unlock, err := m.begin("DeleteBasketLines")
	if err != nil {
		return 0, err
	}
	defer unlock()

	drop := make(map[string]bool, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = true
	}

	var n int64
	kept := m.st.basket[:0:0]
	for _, l := range m.st.basket {
		if l.OwnerID == ownerID && drop[l.ID] {
			n++
			continue
		}
		kept = append(kept, l)
	}
	m.st.basket = kept
	return n, nil
}

func (m *MemoryRepository) RecipientOwner(ctx context.Context, recipientID string) (string, error) {
	unlock, err := m.begin("RecipientOwner")
	if err != nil {
		return "", err
	}
	defer unlock()

	owner, ok := m.st.recipients[recipientID]
	if !ok {
		return "", fmt.Errorf("get recipient: %w", repository.ErrNotFound)
	}
	return owner, nil
}

func (m *MemoryRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	unlock, err := m.begin("CreateOrder")
	if err != nil {
		return err
	}
	defer unlock()

	if _, ok := m.st.recipients[o.RecipientID]; !ok {
		return fmt.Errorf("insert order: %w", repository.ErrForeignKey)
	}
	if !m.st.paymentMethods[o.PaymentMethodID] || !m.st.deliveryMethods[o.DeliveryMethodID] {
		return fmt.Errorf("insert order: %w", repository.ErrForeignKey)
	}
	for _, l := range o.Lines {
		if _, ok := m.st.products[l.ProductID]; !ok {
			return fmt.Errorf("insert order line: %w", repository.ErrForeignKey)
		}
	}

	o.ID = uuid.NewString()
	o.CreatedAt = time.Now()
	for i := range o.Lines {
		o.Lines[i].ID = uuid.NewString()
		o.Lines[i].OrderID = o.ID
	}
	m.st.orders = append(m.st.orders, copyOrder(*o))
	return nil
}

func (m *MemoryRepository) findOrder(orderID string) *model.Order {
	for i := range m.st.orders {
		if m.st.orders[i].ID == orderID {
			return &m.st.orders[i]
		}
	}
	return nil
}

func (m *MemoryRepository) GetOrder(ctx context.Context, orderID string, forUpdate bool) (*model.Order, error) {
	unlock, err := m.begin("GetOrder")
	if err != nil {
		return nil, err
	}
	defer unlock()

	o := m.findOrder(orderID)
	if o == nil {
		return nil, fmt.Errorf("get order: %w", repository.ErrNotFound)
	}
	out := copyOrder(*o)
	return &out, nil
}

func (m *MemoryRepository) ListOrders(ctx context.Context, ownerID string) ([]model.Order, error) {
	unlock, err := m.begin("ListOrders")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var orders []model.Order
	for i := len(m.st.orders) - 1; i >= 0; i-- {
		if m.st.orders[i].OwnerID == ownerID {
			orders = append(orders, copyOrder(m.st.orders[i]))
		}
	}
	return orders, nil
}

func (m *MemoryRepository) MarkOrderPaid(ctx context.Context, orderID string) error {
	unlock, err := m.begin("MarkOrderPaid")
	if err != nil {
		return err
	}
	defer unlock()

	o := m.findOrder(orderID)
	if o == nil {
		return fmt.Errorf("mark order paid: %w", repository.ErrNotFound)
	}
	o.Paid = true
	if o.Status == model.OrderStatusCreated {
		o.Status = model.OrderStatusPaid
	}
	return nil
}

func (m *MemoryRepository) findAttempt(providerPaymentID string) *model.PaymentAttempt {
	for i := range m.st.attempts {
		if m.st.attempts[i].ProviderPaymentID == providerPaymentID {
			return &m.st.attempts[i]
		}
	}
	return nil
}

func (m *MemoryRepository) CreatePaymentAttempt(ctx context.Context, a *model.PaymentAttempt) (bool, error) {
	unlock, err := m.begin("CreatePaymentAttempt")
	if err != nil {
		return false, err
	}
	defer unlock()

	if m.findOrder(a.OrderID) == nil {
		return false, fmt.Errorf("insert payment attempt: %w", repository.ErrForeignKey)
	}
	if existing := m.findAttempt(a.ProviderPaymentID); existing != nil {
		*a = copyAttempt(*existing)
		return false, nil
	}

	now := time.Now()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.st.attempts = append(m.st.attempts, copyAttempt(*a))
	return true, nil
}

func (m *MemoryRepository) GetPaymentAttemptByProviderID(ctx context.Context, providerPaymentID string, forUpdate bool) (*model.PaymentAttempt, error) {
	unlock, err := m.begin("GetPaymentAttemptByProviderID")
	if err != nil {
		return nil, err
	}
	defer unlock()

	a := m.findAttempt(providerPaymentID)
	if a == nil {
		return nil, fmt.Errorf("get payment attempt: %w", repository.ErrNotFound)
	}
	out := copyAttempt(*a)
	return &out, nil
}

func (m *MemoryRepository) UpdatePaymentAttempt(ctx context.Context, a *model.PaymentAttempt) error {
	unlock, err := m.begin("UpdatePaymentAttempt")
	if err != nil {
		return err
	}
	defer unlock()

	for i := range m.st.attempts {
		stored := &m.st.attempts[i]
		if stored.ID == a.ID {
			stored.Status = a.Status
			stored.ProviderReference = append([]byte(nil), a.ProviderReference...)
			stored.UpdatedAt = time.Now()
			a.UpdatedAt = stored.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("update payment attempt: %w", repository.ErrNotFound)
}

func (m *MemoryRepository) ListPaymentAttempts(ctx context.Context, ownerID string) ([]model.PaymentAttempt, error) {
	unlock, err := m.begin("ListPaymentAttempts")
	if err != nil {
		return nil, err
	}
	defer unlock()

	var attempts []model.PaymentAttempt
	for i := len(m.st.attempts) - 1; i >= 0; i-- {
		a := m.st.attempts[i]
		if o := m.findOrder(a.OrderID); o != nil && o.OwnerID == ownerID {
			attempts = append(attempts, copyAttempt(a))
		}
	}
	return attempts, nil
}

// Seeding and inspection helpers.

func (m *MemoryRepository) AddProduct(name, price string) model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := model.Product{ID: uuid.NewString(), Name: name, Price: decimal.RequireFromString(price)}
	m.st.products[p.ID] = p
	return p
}

func (m *MemoryRepository) SetProductPrice(productID, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.st.products[productID]
	p.Price = decimal.RequireFromString(price)
	m.st.products[productID] = p
}

func (m *MemoryRepository) AddRecipient(ownerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.st.recipients[id] = ownerID
	return id
}

// CheckoutRefs seeds a recipient owned by ownerID plus a payment and a
// delivery method.
func (m *MemoryRepository) CheckoutRefs(ownerID string) service.CheckoutRequest {
	recipient := m.AddRecipient(ownerID)

	m.mu.Lock()
	defer m.mu.Unlock()

	req := service.CheckoutRequest{
		RecipientID:      recipient,
		PaymentMethodID:  uuid.NewString(),
		DeliveryMethodID: uuid.NewString(),
	}
	m.st.paymentMethods[req.PaymentMethodID] = true
	m.st.deliveryMethods[req.DeliveryMethodID] = true
	return req
}

func (m *MemoryRepository) Orders() []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Order, 0, len(m.st.orders))
	for _, o := range m.st.orders {
		out = append(out, copyOrder(o))
	}
	return out
}

func (m *MemoryRepository) Attempts() []model.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.PaymentAttempt, 0, len(m.st.attempts))
	for _, a := range m.st.attempts {
		out = append(out, copyAttempt(a))
	}
	return out
}

// SetOrderStatus forces an order into a fulfilment state.
func (m *MemoryRepository) SetOrderStatus(orderID string, status model.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o := m.findOrder(orderID); o != nil {
		o.Status = status
	}
}
