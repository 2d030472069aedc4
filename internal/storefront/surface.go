// Package storefront tracks which presentation surface is open over the
// shared cart: the list, one line's detail, the checkout, or the order
// acknowledgment.
package storefront

import (
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

type Kind string

const (
	KindList     Kind = "list"
	KindDetail   Kind = "detail"
	KindCheckout Kind = "checkout"
	KindSuccess  Kind = "success"
)

var (
	ErrLineNotFound = errors.New("cart line not found")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrClosed       = errors.New("surface closed")
)

// View is the open surface. LineID is set only for the detail view.
type View struct {
	Kind   Kind  `json:"view"`
	LineID int64 `json:"line_id,omitempty"`
}

type Cart interface {
	Subscribe() (<-chan cart.Event, func())
	Line(lineID int64) (cart.LineView, bool)
	Len() int
	Reset()
}

type Checkout interface {
	OnChange(fn func(checkout.State))
	Reset()
}

type Auth interface {
	OnInvalidate(fn session.Listener)
}

type Surface struct {
	cart Cart
	flow Checkout

	mu        sync.Mutex
	view      View
	listeners []func(View)
	closed    bool

	unsubscribe func()
	done        chan struct{}
	log         *zap.Logger
}

// New opens the list view and starts following cart, checkout and session
// changes. Close stops it.
func New(c Cart, flow Checkout, auth Auth) *Surface {
	events, unsubscribe := c.Subscribe()
	s := &Surface{
		cart:        c,
		flow:        flow,
		view:        View{Kind: KindList},
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
		log:         logger.Z().Named("storefront"),
	}

	flow.OnChange(s.checkoutChanged)
	if auth != nil {
		auth.OnInvalidate(s.signedOut)
	}

	go s.run(events)
	return s
}

func (s *Surface) run(events <-chan cart.Event) {
	defer close(s.done)
	for ev := range events {
		s.cartChanged(ev)
	}
}

func (s *Surface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// OnChange registers fn to be called with every new view.
func (s *Surface) OnChange(fn func(View)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Surface) OpenList() {
	s.set(View{Kind: KindList}, nil)
}

// OpenDetail opens the detail view of a line that is in the cart.
func (s *Surface) OpenDetail(lineID int64) error {
	if _, ok := s.cart.Line(lineID); !ok {
		return ErrLineNotFound
	}
	return s.open(View{Kind: KindDetail, LineID: lineID})
}

// OpenCheckout opens the checkout over a non-empty cart.
func (s *Surface) OpenCheckout() error {
	if s.cart.Len() == 0 {
		return ErrEmptyCart
	}
	return s.open(View{Kind: KindCheckout})
}

func (s *Surface) open(v View) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()
	s.set(v, nil)
	return nil
}

// set switches to v. When cond is not nil the switch only happens if cond
// holds for the current view.
func (s *Surface) set(v View, cond func(View) bool) {
	s.mu.Lock()
	if s.closed || (cond != nil && !cond(s.view)) || s.view == v {
		s.mu.Unlock()
		return
	}
	s.view = v
	listeners := make([]func(View), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.log.Debug("view changed", zap.String("view", string(v.Kind)), zap.Int64("line_id", v.LineID))
	for _, fn := range listeners {
		fn(v)
	}
}

// cartChanged closes the detail view once its line has left the cart.
func (s *Surface) cartChanged(ev cart.Event) {
	s.set(View{Kind: KindList}, func(cur View) bool {
		if cur.Kind != KindDetail {
			return false
		}
		switch ev.Kind {
		case cart.EventLineRemoved:
			return ev.LineID == cur.LineID
		case cart.EventRefreshed:
			return !slices.Contains(ev.Lines, cur.LineID)
		case cart.EventCleared:
			return true
		default:
			return false
		}
	})
}

func (s *Surface) checkoutChanged(st checkout.State) {
	switch st.Status {
	case checkout.StatusSucceeded:
		s.set(View{Kind: KindSuccess}, nil)
	case checkout.StatusIdle:
		s.set(View{Kind: KindList}, func(cur View) bool { return cur.Kind == KindSuccess })
	}
}

// signedOut drops everything tied to the ended session and returns to the
// list.
func (s *Surface) signedOut(reason session.Reason) {
	s.log.Info("session ended, resetting storefront", zap.String("reason", string(reason)))
	s.cart.Reset()
	s.flow.Reset()
	s.set(View{Kind: KindList}, nil)
}

// Close stops following the cart and waits for the event loop to exit.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.unsubscribe()
	<-s.done
}
