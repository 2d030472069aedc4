package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// fakeBackend is an in-memory cart server.
type fakeBackend struct {
	mu    sync.Mutex
	items []domain.CartItem
}

func (f *fakeBackend) GetCart(context.Context) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := &domain.Snapshot{Items: append([]domain.CartItem(nil), f.items...), Total: decimal.Zero}
	for _, it := range f.items {
		snap.Total = snap.Total.Add(it.Subtotal)
	}
	return snap, nil
}

func (f *fakeBackend) AddCartItem(context.Context, int64, int) error { return nil }

func (f *fakeBackend) UpdateCartItem(context.Context, int64, int) error { return nil }

func (f *fakeBackend) RemoveCartItem(_ context.Context, lineID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drop(lineID)
	return nil
}

func (f *fakeBackend) drop(lineID int64) {
	for i, it := range f.items {
		if it.ID == lineID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return
		}
	}
}

func (f *fakeBackend) empty() {
	f.mu.Lock()
	f.items = nil
	f.mu.Unlock()
}

type plainJoiner struct{}

func (plainJoiner) Join(_ context.Context, items []domain.CartItem) ([]domain.Card, error) {
	cards := make([]domain.Card, len(items))
	for i, it := range items {
		cards[i] = domain.Card{LineID: it.ID, ProductID: it.Product.ID, Quantity: it.Quantity, Subtotal: it.Subtotal, Price: it.Price()}
	}
	return cards, nil
}

type fakeOrders struct {
	backend *fakeBackend
}

func (f fakeOrders) GetUser(_ context.Context, id int64) (*domain.User, error) {
	addr := int64(9)
	return &domain.User{ID: id, AddressID: &addr}, nil
}

func (f fakeOrders) CreateOrder(context.Context, domain.OrderRequest, string) (*domain.Order, error) {
	f.backend.empty()
	return &domain.Order{ID: 1, Status: "PENDING"}, nil
}

func cartItem(lineID int64, qty int) domain.CartItem {
	return domain.CartItem{
		ID:       lineID,
		Product:  domain.ProductRef{ID: lineID * 10, Price: decimal.NewFromInt(5)},
		Quantity: qty,
		Subtotal: decimal.NewFromInt(int64(5 * qty)),
	}
}

type fixture struct {
	backend *fakeBackend
	store   *cart.Store
	flow    *checkout.Flow
	auth    *session.Auth
	surface *Surface
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	backend := &fakeBackend{items: []domain.CartItem{cartItem(1, 2), cartItem(2, 1)}}
	store := cart.NewStore(backend, plainJoiner{}, cart.Options{})
	auth := session.NewAuth(nil)
	require.NoError(t, auth.SignIn(context.Background(), "token", 4))
	flow := checkout.NewFlow(fakeOrders{backend: backend}, auth, store, checkout.Options{SuccessDelay: delay})
	surface := New(store, flow, auth)

	t.Cleanup(func() {
		surface.Close()
		flow.Close()
		store.Close()
	})

	require.NoError(t, store.Refresh(context.Background()))
	return &fixture{backend: backend, store: store, flow: flow, auth: auth, surface: surface}
}

func (f *fixture) viewIs(kind Kind) func() bool {
	return func() bool { return f.surface.View().Kind == kind }
}

func TestOpenDetail(t *testing.T) {
	f := newFixture(t, time.Hour)
	assert.Equal(t, View{Kind: KindList}, f.surface.View())

	require.NoError(t, f.surface.OpenDetail(1))
	assert.Equal(t, View{Kind: KindDetail, LineID: 1}, f.surface.View())

	assert.ErrorIs(t, f.surface.OpenDetail(42), ErrLineNotFound)
	assert.Equal(t, int64(1), f.surface.View().LineID)

	f.surface.OpenList()
	assert.Equal(t, KindList, f.surface.View().Kind)
}

func TestRemovingOpenLineClosesDetail(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.NoError(t, f.surface.OpenDetail(1))

	require.NoError(t, f.store.RemoveItem(context.Background(), 1))
	require.Eventually(t, f.viewIs(KindList), time.Second, 5*time.Millisecond)
}

func TestRemovingOtherLineKeepsDetail(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.NoError(t, f.surface.OpenDetail(1))

	var mu sync.Mutex
	var seen []View
	f.surface.OnChange(func(v View) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	})

	require.NoError(t, f.store.RemoveItem(context.Background(), 2))
	require.NoError(t, f.store.Refresh(context.Background()))

	// give the event loop a chance to act on both events
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, View{Kind: KindDetail, LineID: 1}, f.surface.View())
	mu.Lock()
	assert.Empty(t, seen)
	mu.Unlock()
}

func TestRefreshWithoutOpenLineClosesDetail(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.NoError(t, f.surface.OpenDetail(2))

	f.backend.mu.Lock()
	f.backend.drop(2)
	f.backend.mu.Unlock()

	require.NoError(t, f.store.Refresh(context.Background()))
	require.Eventually(t, f.viewIs(KindList), time.Second, 5*time.Millisecond)
}

func TestOrderSuccessShowsAcknowledgmentThenList(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	require.NoError(t, f.surface.OpenCheckout())
	assert.Equal(t, KindCheckout, f.surface.View().Kind)

	_, err := f.flow.PlaceOrder(context.Background(), domain.PaymentBlik)
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, f.surface.View().Kind)
	assert.Equal(t, 0, f.store.Len())

	require.Eventually(t, f.viewIs(KindList), time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, f.surface.OpenCheckout(), ErrEmptyCart)
}

func TestSignOutReturnsToListAndForgetsCart(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.NoError(t, f.flow.Select("CARD"))
	require.NoError(t, f.surface.OpenCheckout())

	f.auth.SignOut(context.Background())

	assert.Equal(t, KindList, f.surface.View().Kind)
	assert.False(t, f.store.Loaded())
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.flow.State().Method)
}

func TestSignInAsAnotherUserForgetsPreviousCart(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.NoError(t, f.flow.Select("CARD"))
	require.NoError(t, f.surface.OpenDetail(1))
	require.True(t, f.store.Loaded())

	require.NoError(t, f.auth.SignIn(context.Background(), "other-token", 5))

	assert.Equal(t, int64(5), f.auth.UserID())
	assert.Equal(t, KindList, f.surface.View().Kind)
	assert.False(t, f.store.Loaded())
	assert.Equal(t, 0, f.store.Len())
	_, ok := f.store.Line(1)
	assert.False(t, ok)
	assert.Empty(t, f.flow.State().Method)
}

func TestCloseStopsFollowingCart(t *testing.T) {
	f := newFixture(t, time.Hour)
	require.NoError(t, f.surface.OpenDetail(1))
	f.surface.Close()

	require.NoError(t, f.store.RemoveItem(context.Background(), 1))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, KindDetail, f.surface.View().Kind)
	assert.ErrorIs(t, f.surface.OpenDetail(2), ErrClosed)
}
