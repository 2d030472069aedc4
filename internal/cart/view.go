package cart

import (
	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// LineView is one card as displayed: the optimistic quantity and subtotal
// while an edit is pending, the confirmed ones otherwise.
type LineView struct {
	domain.Card
	ConfirmedQuantity int    `json:"confirmed_quantity"`
	Pending           bool   `json:"pending"`
	Removing          bool   `json:"removing"`
	Error             string `json:"error,omitempty"`
	CanDecrement      bool   `json:"can_decrement"`
	CanIncrement      bool   `json:"can_increment"`
}

// View is the list view model.
type View struct {
	Lines   []LineView      `json:"lines"`
	Total   decimal.Decimal `json:"total"`
	Count   int             `json:"count"`
	Loaded  bool            `json:"loaded"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Lines:   make([]LineView, 0, len(s.order)),
		Total:   s.displayTotal(),
		Loaded:  s.loaded,
		Loading: s.loading,
		Error:   api.Message(s.lastErr),
	}
	for _, id := range s.order {
		lv := s.lineView(s.lines[id])
		v.Count += lv.Quantity
		v.Lines = append(v.Lines, lv)
	}
	return v
}

// Line returns the view of one line; false when the cart has no such line.
func (s *Store) Line(lineID int64) (LineView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok {
		return LineView{}, false
	}
	return s.lineView(l), true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Total is the displayed total, including pending edits.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayTotal()
}

// Loaded reports whether a snapshot has ever been applied.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) lineView(l *line) LineView {
	card := l.card
	card.Quantity = l.quantity()
	card.Subtotal = l.subtotal()

	idle := !l.pending && !l.removing
	return LineView{
		Card:              card,
		ConfirmedQuantity: l.confirmed,
		Pending:           l.pending,
		Removing:          l.removing,
		Error:             l.err,
		CanDecrement:      idle && card.Quantity > s.minQty,
		CanIncrement:      idle && card.Quantity < s.maxQty,
	}
}

// displayTotal is the server total unless an edit is pending, in which case
// the subtotals are summed with the optimistic quantities.
func (s *Store) displayTotal() decimal.Decimal {
	pending := false
	for _, id := range s.order {
		if s.lines[id].pending {
			pending = true
			break
		}
	}
	if !pending {
		return s.total
	}

	sum := decimal.Zero
	for _, id := range s.order {
		sum = sum.Add(s.lines[id].subtotal())
	}
	return sum
}
