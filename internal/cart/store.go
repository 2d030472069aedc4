// Package cart keeps the local cart state in sync with the server.
//
// The server snapshot is authoritative. Quantity edits are applied locally
// first and confirmed or reverted per line; fetches cancel and replace each
// other so a late response never overwrites newer state.
package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

var (
	ErrLineNotFound    = errors.New("cart line not found")
	ErrLineBusy        = errors.New("cart line has a pending update")
	ErrRemovalPending  = errors.New("cart line removal already pending")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrClosed          = errors.New("cart store closed")
)

const (
	DefaultMinQty = 1
	DefaultMaxQty = 10
)

// Backend is the cart API.
type Backend interface {
	GetCart(ctx context.Context) (*domain.Snapshot, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) error
	UpdateCartItem(ctx context.Context, lineID int64, quantity int) error
	RemoveCartItem(ctx context.Context, lineID int64) error
}

// Joiner turns cart lines into display cards.
type Joiner interface {
	Join(ctx context.Context, items []domain.CartItem) ([]domain.Card, error)
}

type Options struct {
	MinQty  int
	MaxQty  int
	Metrics *metrics.Metrics
}

// line is one cart line. Without a pending edit it is Confirmed(confirmed);
// with one it is Pending(optimistic, confirmed).
type line struct {
	item       domain.CartItem
	card       domain.Card
	confirmed  int
	pending    bool
	optimistic int
	removing   bool
	err        string
}

func (l *line) quantity() int {
	if l.pending {
		return l.optimistic
	}
	return l.confirmed
}

func (l *line) subtotal() decimal.Decimal {
	if l.pending {
		return l.item.SubtotalFor(l.optimistic)
	}
	return l.item.Subtotal
}

type Store struct {
	backend Backend
	joiner  Joiner
	minQty  int
	maxQty  int
	metrics *metrics.Metrics
	log     *zap.Logger

	mu      sync.Mutex
	order   []int64
	lines   map[int64]*line
	total   decimal.Decimal
	loaded  bool
	loading bool
	lastErr error

	fetchGen    uint64
	fetchCancel context.CancelFunc

	subs    map[int]chan Event
	nextSub int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewStore(backend Backend, joiner Joiner, opts Options) *Store {
	minQty, maxQty := opts.MinQty, opts.MaxQty
	if minQty < 1 {
		minQty = DefaultMinQty
	}
	if maxQty < minQty {
		maxQty = DefaultMaxQty
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		backend: backend,
		joiner:  joiner,
		minQty:  minQty,
		maxQty:  maxQty,
		metrics: opts.Metrics,
		log:     logger.Z().Named("cart"),
		lines:   make(map[int64]*line),
		subs:    make(map[int]chan Event),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// scope derives a request context that is also cancelled by Close.
func (s *Store) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Refresh fetches the cart and rebuilds the cards. Starting a refresh cancels
// the one in flight; a superseded or cancelled refresh returns nil and leaves
// the state untouched, unless it ended the session with a 401. On failure the
// previous snapshot is kept.
func (s *Store) Refresh(ctx context.Context) error {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.fetchCancel != nil {
		s.fetchCancel()
	}
	s.fetchGen++
	gen := s.fetchGen
	s.fetchCancel = cancel
	s.loading = true
	s.mu.Unlock()

	snap, err := s.backend.GetCart(ctx)
	var cards []domain.Card
	if err == nil {
		cards, err = s.joiner.Join(ctx, snap.Items)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.fetchGen {
		// a 401 resets the store through the session listeners before we
		// get here; the caller still has to see it
		if api.KindOf(err) == api.KindUnauthorized {
			return err
		}
		return nil
	}
	s.fetchCancel = nil
	s.loading = false

	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		s.lastErr = err
		logger.FromContext(ctx).Warn("cart refresh failed", zap.Error(err))
		s.publish(Event{Kind: EventRefreshFailed, Err: err})
		return err
	}

	s.apply(snap, cards)
	s.loaded = true
	s.lastErr = nil
	s.publish(Event{Kind: EventRefreshed, Lines: s.lineIDs()})
	return nil
}

// apply replaces the lines with the snapshot. Pending edits and removals
// carry over; the server quantity becomes the confirmed one.
func (s *Store) apply(snap *domain.Snapshot, cards []domain.Card) {
	order := make([]int64, 0, len(snap.Items))
	lines := make(map[int64]*line, len(snap.Items))

	for i, item := range snap.Items {
		l := &line{item: item, card: cards[i], confirmed: item.Quantity}
		if old, ok := s.lines[item.ID]; ok {
			l.pending = old.pending
			l.optimistic = old.optimistic
			l.removing = old.removing
			l.err = old.err
		}
		order = append(order, item.ID)
		lines[item.ID] = l
	}

	s.order = order
	s.lines = lines
	s.total = snap.Total
}

// supersedeFetch cancels the fetch in flight. Its response predates a change
// the server has confirmed since. Must be called with s.mu held.
func (s *Store) supersedeFetch() {
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
	s.fetchGen++
	s.loading = false
}

// SetQuantity clamps qty to the allowed range and updates the line
// optimistically. Setting the current quantity is a no-op. On failure the
// line returns to its last confirmed quantity.
func (s *Store) SetQuantity(ctx context.Context, lineID int64, qty int) error {
	qty = s.clamp(qty)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	l, ok := s.lines[lineID]
	switch {
	case !ok:
		s.mu.Unlock()
		return ErrLineNotFound
	case l.removing:
		s.mu.Unlock()
		return ErrRemovalPending
	case l.pending:
		s.mu.Unlock()
		return ErrLineBusy
	case qty == l.confirmed:
		s.mu.Unlock()
		return nil
	}
	l.pending = true
	l.optimistic = qty
	l.err = ""
	s.publish(Event{Kind: EventLineUpdated, LineID: lineID})
	s.mu.Unlock()

	ctx, cancel := s.scope(ctx)
	defer cancel()
	err := s.backend.UpdateCartItem(ctx, lineID, qty)

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok = s.lines[lineID]
	if ok && l.pending && l.optimistic == qty {
		l.pending = false
		if err == nil {
			l.confirmed = qty
			l.item.Quantity = qty
			l.item.Subtotal = l.item.SubtotalFor(qty)
			l.card.Quantity = qty
			l.card.Subtotal = l.item.Subtotal
			s.total = s.sumConfirmed()
			s.supersedeFetch()
		} else if !api.IsCanceled(err) {
			l.err = api.Message(err)
		}
		s.publish(Event{Kind: EventLineUpdated, LineID: lineID, Err: err})
	}

	s.metrics.CartMutation("update", mutationOutcome(err))
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		logger.FromContext(ctx).Warn("cart line update failed",
			zap.Int64("line_id", lineID),
			zap.Int("quantity", qty),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Increment raises the displayed quantity by one, up to the maximum.
func (s *Store) Increment(ctx context.Context, lineID int64) error {
	qty, err := s.displayed(lineID)
	if err != nil {
		return err
	}
	return s.SetQuantity(ctx, lineID, qty+1)
}

// Decrement lowers the displayed quantity by one, down to the minimum.
func (s *Store) Decrement(ctx context.Context, lineID int64) error {
	qty, err := s.displayed(lineID)
	if err != nil {
		return err
	}
	return s.SetQuantity(ctx, lineID, qty-1)
}

func (s *Store) displayed(lineID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok {
		return 0, ErrLineNotFound
	}
	return l.quantity(), nil
}

// RemoveItem deletes a line. A second call while the first is pending fails
// with ErrRemovalPending. On failure the line stays and can be removed again.
func (s *Store) RemoveItem(ctx context.Context, lineID int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	l, ok := s.lines[lineID]
	if !ok {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	if l.removing {
		s.mu.Unlock()
		return ErrRemovalPending
	}
	l.removing = true
	l.err = ""
	s.publish(Event{Kind: EventLineUpdated, LineID: lineID})
	s.mu.Unlock()

	ctx, cancel := s.scope(ctx)
	defer cancel()
	err := s.backend.RemoveCartItem(ctx, lineID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.CartMutation("remove", mutationOutcome(err))
	if err != nil {
		if l, ok := s.lines[lineID]; ok {
			l.removing = false
			if !api.IsCanceled(err) {
				l.err = api.Message(err)
			}
			s.publish(Event{Kind: EventLineUpdated, LineID: lineID, Err: err})
		}
		if api.IsCanceled(err) {
			return nil
		}
		logger.FromContext(ctx).Warn("cart line removal failed", zap.Int64("line_id", lineID), zap.Error(err))
		return err
	}

	s.deleteLine(lineID)
	s.supersedeFetch()
	s.publish(Event{Kind: EventLineRemoved, LineID: lineID})
	return nil
}

func (s *Store) deleteLine(lineID int64) {
	if _, ok := s.lines[lineID]; !ok {
		return
	}
	delete(s.lines, lineID)
	for i, id := range s.order {
		if id == lineID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.total = s.sumConfirmed()
}

// AddItem adds a product to the server cart and refreshes.
func (s *Store) AddItem(ctx context.Context, productID int64, qty int) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}
	if qty < s.minQty || qty > s.maxQty {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	sctx, cancel := s.scope(ctx)
	err := s.backend.AddCartItem(sctx, productID, qty)
	cancel()

	s.metrics.CartMutation("add", mutationOutcome(err))
	if err != nil {
		if api.IsCanceled(err) {
			return nil
		}
		logger.FromContext(ctx).Warn("add to cart failed", zap.Int64("product_id", productID), zap.Error(err))
		return err
	}
	return s.Refresh(ctx)
}

// Clear empties the local cart after the server has emptied it, e.g. once an
// order is placed. A fetch in flight is superseded.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.lines = make(map[int64]*line)
	s.total = decimal.Zero
	s.lastErr = nil
	s.supersedeFetch()
	s.publish(Event{Kind: EventCleared})
}

// Reset forgets the cart entirely, as after sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.lines = make(map[int64]*line)
	s.total = decimal.Zero
	s.loaded = false
	s.lastErr = nil
	s.supersedeFetch()
	s.publish(Event{Kind: EventCleared})
}

// Close cancels every request in flight and ends all subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.supersedeFetch()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) clamp(qty int) int {
	if qty < s.minQty {
		return s.minQty
	}
	if qty > s.maxQty {
		return s.maxQty
	}
	return qty
}

func (s *Store) sumConfirmed() decimal.Decimal {
	sum := decimal.Zero
	for _, id := range s.order {
		sum = sum.Add(s.lines[id].item.Subtotal)
	}
	return sum
}

func (s *Store) lineIDs() []int64 {
	ids := make([]int64, len(s.order))
	copy(ids, s.order)
	return ids
}

func mutationOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case api.IsCanceled(err):
		return "canceled"
	default:
		return "error"
	}
}
