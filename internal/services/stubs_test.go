package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return "stub repository error" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

var errStubNotFound = stubRepoError{notFound: true}

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]Product
}

func newMemProductRepo(products ...Product) *memProductRepo {
	r := &memProductRepo{products: make(map[string]Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *memProductRepo) stock(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

func (r *memProductRepo) List(_ context.Context, q repositories.ProductQuery) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		if q.FeaturedOnly && !p.Featured {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *memProductRepo) Get(_ context.Context, id string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, errStubNotFound
	}
	return p, nil
}

func (r *memProductRepo) GetMany(_ context.Context, ids []string) (map[string]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *memProductRepo) Insert(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return Product{}, stubRepoError{conflict: true}
	}
	r.products[p.ID] = p
	return p, nil
}

func (r *memProductRepo) Update(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return Product{}, errStubNotFound
	}
	r.products[p.ID] = p
	return p, nil
}

func (r *memProductRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return errStubNotFound
	}
	delete(r.products, id)
	return nil
}

type memCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]Coupon
	lookups int
}

func newMemCouponRepo(coupons ...Coupon) *memCouponRepo {
	r := &memCouponRepo{coupons: make(map[string]Coupon)}
	for _, c := range coupons {
		r.coupons[c.ID] = c
	}
	return r
}

func (r *memCouponRepo) used(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coupons[id].UsedCount
}

func (r *memCouponRepo) FindActiveByCode(_ context.Context, code string) (Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, c := range r.coupons {
		if c.Code == strings.ToUpper(code) && c.Active {
			return c, nil
		}
	}
	return Coupon{}, errStubNotFound
}

func (r *memCouponRepo) IncrementUsage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[id]
	if !ok {
		return errStubNotFound
	}
	c.UsedCount++
	r.coupons[id] = c
	return nil
}

func (r *memCouponRepo) List(context.Context) ([]Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Coupon, 0, len(r.coupons))
	for _, c := range r.coupons {
		out = append(out, c)
	}
	return out, nil
}

func (r *memCouponRepo) Insert(_ context.Context, c Coupon) (Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.coupons {
		if existing.Code == c.Code {
			return Coupon{}, stubRepoError{conflict: true}
		}
	}
	r.coupons[c.ID] = c
	return c, nil
}

// memOrderRepo mimics the transactional Firestore repository, including the paid transition.
type memOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]Order
	products *memProductRepo
	inserts  int
	confirms int
}

func newMemOrderRepo(products *memProductRepo, orders ...Order) *memOrderRepo {
	r := &memOrderRepo{orders: make(map[string]Order), products: products}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memOrderRepo) get(id string) Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

func (r *memOrderRepo) Insert(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	r.orders[o.ID] = o
	return o, nil
}

func (r *memOrderRepo) FindByID(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, errStubNotFound
	}
	return o, nil
}

func (r *memOrderRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if gatewayOrderID != "" && o.Gateway.OrderID == gatewayOrderID {
			return o, nil
		}
	}
	return Order{}, errStubNotFound
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	all, _ := r.ListAll(context.Background())
	out := make([]Order, 0, len(all))
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) ListAll(context.Context) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrderRepo) SetGatewayOrder(_ context.Context, id string, method domain.PaymentMethod, gatewayOrderID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errStubNotFound
	}
	o.PaymentMethod = method
	o.Gateway.OrderID = gatewayOrderID
	o.UpdatedAt = now
	r.orders[id] = o
	return nil
}

func (r *memOrderRepo) ConfirmPayment(_ context.Context, req repositories.ConfirmPaymentRequest) (repositories.ConfirmPaymentResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[req.OrderID]
	if !ok {
		return repositories.ConfirmPaymentResult{}, errStubNotFound
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return repositories.ConfirmPaymentResult{Order: o}, nil
	}
	if o.PaymentStatus != domain.PaymentPending && o.PaymentStatus != domain.PaymentFailed {
		return repositories.ConfirmPaymentResult{}, stubRepoError{conflict: true}
	}
	r.confirms++

	cancelled := o.Status == domain.OrderCancelled
	var oversold []string
	r.products.mu.Lock()
	for _, item := range o.Items {
		if cancelled {
			break
		}
		p, ok := r.products.products[item.ProductID]
		if !ok {
			continue
		}
		p.Stock -= item.Quantity
		if p.Stock < 0 {
			p.Stock = 0
			oversold = append(oversold, p.ID)
		}
		r.products.products[p.ID] = p
	}
	r.products.mu.Unlock()

	now := req.Now
	o.PaymentStatus = domain.PaymentPaid
	o.Gateway.PaymentID = req.PaymentID
	if o.Status == domain.OrderPending {
		o.Status = domain.OrderConfirmed
	}
	o.PaidAt = &now
	o.UpdatedAt = now
	r.orders[o.ID] = o
	return repositories.ConfirmPaymentResult{Order: o, Transitioned: true, Oversold: oversold, PaidAfterCancel: cancelled}, nil
}

func (r *memOrderRepo) Mutate(_ context.Context, id string, now time.Time, fn repositories.OrderMutator) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, errStubNotFound
	}
	if err := fn(&o); err != nil {
		return Order{}, err
	}
	o.UpdatedAt = now
	r.orders[id] = o
	return o, nil
}

type memWishlistRepo struct {
	ids map[string][]string
}

func (r *memWishlistRepo) Get(_ context.Context, userID string) ([]string, error) {
	return append([]string(nil), r.ids[userID]...), nil
}

func (r *memWishlistRepo) Toggle(_ context.Context, userID, productID string) ([]string, bool, error) {
	current := r.ids[userID]
	next := make([]string, 0, len(current)+1)
	removed := false
	for _, id := range current {
		if id == productID {
			removed = true
			continue
		}
		next = append(next, id)
	}
	if !removed {
		next = append(next, productID)
	}
	r.ids[userID] = next
	return next, !removed, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *recordingMailer) messages() []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmailMessage(nil), m.sent...)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLogger) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) has(event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == event {
			return true
		}
	}
	return false
}

var errStubBoom = errors.New("boom")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + string(rune('0'+n))
	}
}
