// Package checkout places orders against the current cart.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const DefaultSuccessDelay = 3 * time.Second

type OrderAPI interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (*domain.Order, error)
}

type Identity interface {
	UserID() int64
}

// Cart is the part of the cart store the flow reads and resets.
type Cart interface {
	Len() int
	Total() decimal.Decimal
	Clear()
	Refresh(ctx context.Context) error
}

// State is a snapshot of the flow for display.
type State struct {
	Status  Status                 `json:"status"`
	Method  domain.PaymentMethod   `json:"payment_method,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Order   *domain.Order          `json:"order,omitempty"`
	Total   decimal.Decimal        `json:"total"`
	Methods []domain.PaymentMethod `json:"payment_methods"`
}

type Options struct {
	SuccessDelay time.Duration
	Metrics      *metrics.Metrics
}

// Flow drives order placement: Idle, Submitting, then Succeeded (returning to
// Idle after the success delay) or Failed.
type Flow struct {
	api          OrderAPI
	identity     Identity
	cart         Cart
	successDelay time.Duration
	metrics      *metrics.Metrics

	mu        sync.Mutex
	status    Status
	selected  domain.PaymentMethod
	err       string
	order     *domain.Order
	timer     *time.Timer
	timerGen  uint64
	attempt   uint64
	listeners []func(State)
	closed    bool
}

func NewFlow(orderAPI OrderAPI, identity Identity, cart Cart, opts Options) *Flow {
	delay := opts.SuccessDelay
	if delay <= 0 {
		delay = DefaultSuccessDelay
	}
	return &Flow{
		api:          orderAPI,
		identity:     identity,
		cart:         cart,
		successDelay: delay,
		metrics:      opts.Metrics,
		status:       StatusIdle,
	}
}

// OnChange registers fn to be called after every state transition.
func (f *Flow) OnChange(fn func(State)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Flow) stateLocked() State {
	return State{
		Status:  f.status,
		Method:  f.selected,
		Error:   f.err,
		Order:   f.order,
		Total:   f.cart.Total(),
		Methods: domain.PaymentMethods,
	}
}

// Select remembers the payment method used when PlaceOrder gets none.
func (f *Flow) Select(method string) error {
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.selected = m
	f.mu.Unlock()
	f.notify()
	return nil
}

// PlaceOrder submits the cart with the given method, or the selected one
// when method is empty. Without any method no request is sent. A cancelled
// placement returns to Idle and reports nothing.
func (f *Flow) PlaceOrder(ctx context.Context, method domain.PaymentMethod) (*domain.Order, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.status == StatusSubmitting {
		f.mu.Unlock()
		return nil, ErrOrderInFlight
	}
	if method == "" {
		method = f.selected
	}
	if method == "" {
		f.err = ErrNoPaymentMethod.Error()
		f.mu.Unlock()
		f.notify()
		return nil, ErrNoPaymentMethod
	}
	if !method.Valid() {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPaymentMethod, method)
	}
	if f.cart.Len() == 0 {
		f.mu.Unlock()
		return nil, ErrEmptyCart
	}

	f.stopTimerLocked()
	f.attempt++
	attempt := f.attempt
	f.status = StatusSubmitting
	f.selected = method
	f.err = ""
	f.order = nil
	f.mu.Unlock()
	f.notify()

	order, err := f.submit(ctx, method)
	if err != nil {
		if api.IsCanceled(err) {
			f.metrics.Order("canceled")
			f.finish(attempt, StatusIdle, "")
			return nil, nil
		}
		f.metrics.Order("error")
		logger.FromContext(ctx).Warn("place order failed", zap.String("payment_method", method.String()), zap.Error(err))
		f.finish(attempt, StatusFailed, api.Message(err))
		return nil, err
	}

	f.metrics.Order("ok")
	logger.FromContext(ctx).Info("order placed", zap.Int64("order_id", order.ID), zap.String("payment_method", method.String()))

	f.mu.Lock()
	superseded := attempt != f.attempt
	f.mu.Unlock()
	if superseded {
		return order, nil
	}

	f.cart.Clear()
	if err := f.cart.Refresh(ctx); err != nil {
		logger.FromContext(ctx).Warn("refresh cart after order", zap.Error(err))
	}

	f.mu.Lock()
	if f.closed || attempt != f.attempt {
		f.mu.Unlock()
		return order, nil
	}
	f.status = StatusSucceeded
	f.order = order
	f.timerGen++
	gen := f.timerGen
	f.timer = time.AfterFunc(f.successDelay, func() { f.expire(gen) })
	f.mu.Unlock()
	f.notify()

	return order, nil
}

func (f *Flow) submit(ctx context.Context, method domain.PaymentMethod) (*domain.Order, error) {
	userID := f.identity.UserID()
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}

	user, err := f.api.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	addressID, ok := user.ShippingAddressID()
	if !ok {
		return nil, ErrNoShippingAddress
	}

	return f.api.CreateOrder(ctx, domain.OrderRequest{
		PaymentMethod:     method,
		ShippingAddressID: addressID,
	}, uuid.NewString())
}

// expire ends the success acknowledgment started by timer generation gen.
func (f *Flow) expire(gen uint64) {
	f.mu.Lock()
	if gen != f.timerGen || f.status != StatusSucceeded || f.closed {
		f.mu.Unlock()
		return
	}
	f.status = StatusIdle
	f.order = nil
	f.timer = nil
	f.mu.Unlock()
	f.notify()
}

// Dismiss closes the success acknowledgment or the failure alert early.
func (f *Flow) Dismiss() {
	f.mu.Lock()
	if !f.status.IsTerminal() {
		f.mu.Unlock()
		return
	}
	f.stopTimerLocked()
	f.status = StatusIdle
	f.order = nil
	f.err = ""
	f.mu.Unlock()
	f.notify()
}

// Reset returns to Idle and forgets the selected method, as after sign-out.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.stopTimerLocked()
	f.attempt++
	f.status = StatusIdle
	f.selected = ""
	f.err = ""
	f.order = nil
	f.mu.Unlock()
	f.notify()
}

// Close stops a pending success timer. Later calls to PlaceOrder fail.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimerLocked()
	f.closed = true
}

// finish ends placement attempt unless a Reset has superseded it.
func (f *Flow) finish(attempt uint64, status Status, errMsg string) {
	f.mu.Lock()
	if attempt != f.attempt {
		f.mu.Unlock()
		return
	}
	f.status = status
	f.err = errMsg
	f.order = nil
	f.mu.Unlock()
	f.notify()
}

func (f *Flow) stopTimerLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.timerGen++
}

func (f *Flow) notify() {
	f.mu.Lock()
	state := f.stateLocked()
	listeners := make([]func(State), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
