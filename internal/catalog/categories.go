package catalog

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const maxCategoryDepth = 8

var ErrCategoryTree = errors.New("failed to fetch category tree")

type CategoryAPI interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListSubcategories(ctx context.Context, parentID int64) ([]domain.Category, error)
}

// CategoryTree loads and holds the category tree. A new Load cancels the one
// in flight, and only the latest load may publish its result. Callers of a
// superseded load get the result of the load that replaced it.
type CategoryTree struct {
	api CategoryAPI

	mu      sync.Mutex
	tree    []domain.CategoryNode
	loaded  bool
	lastErr error
	gen     uint64
	cancel  context.CancelFunc
	current *treeLoad
}

// treeLoad is the outcome of one Load, available once done is closed.
type treeLoad struct {
	done chan struct{}
	tree []domain.CategoryNode
	err  error
}

func NewCategoryTree(categoryAPI CategoryAPI) *CategoryTree {
	return &CategoryTree{api: categoryAPI}
}

// Load fetches the root categories and all their subtrees.
func (t *CategoryTree) Load(ctx context.Context) ([]domain.CategoryNode, error) {
	l := &treeLoad{done: make(chan struct{})}
	tree, err := t.load(ctx, l)
	l.tree, l.err = tree, err
	close(l.done)
	return cloneNodes(tree), err
}

func (t *CategoryTree) load(ctx context.Context, l *treeLoad) ([]domain.CategoryNode, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	gen := t.gen
	t.cancel = cancel
	t.current = l
	t.mu.Unlock()

	tree, err := t.fetch(fetchCtx)

	t.mu.Lock()
	if gen != t.gen {
		next := t.current
		t.mu.Unlock()
		return t.follow(ctx, next)
	}
	defer t.mu.Unlock()
	t.cancel = nil
	t.current = nil
	if err != nil {
		if api.IsCanceled(err) {
			return nil, err
		}
		logger.FromContext(ctx).Warn("load category tree", zap.Error(err))
		t.lastErr = ErrCategoryTree
		return nil, ErrCategoryTree
	}
	t.tree = tree
	t.loaded = true
	t.lastErr = nil
	return tree, nil
}

// follow waits for the load that superseded ours. When that load's own
// caller went away, it loads again for ours.
func (t *CategoryTree) follow(ctx context.Context, next *treeLoad) ([]domain.CategoryNode, error) {
	if next == nil {
		// closed: serve what we have
		tree, loaded, _ := t.Tree()
		if !loaded {
			return nil, ErrCategoryTree
		}
		return tree, nil
	}

	select {
	case <-next.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if api.IsCanceled(next.err) {
		return t.Load(ctx)
	}
	return next.tree, next.err
}

// Tree returns the last loaded tree and the error of the last load.
func (t *CategoryTree) Tree() ([]domain.CategoryNode, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneNodes(t.tree), t.loaded, t.lastErr
}

// Close cancels a load in flight.
func (t *CategoryTree) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.current = nil
	t.gen++
}

func (t *CategoryTree) fetch(ctx context.Context) ([]domain.CategoryNode, error) {
	all, err := t.api.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	roots := make([]domain.Category, 0, len(all))
	for _, c := range all {
		if c.IsRoot() {
			roots = append(roots, c)
		}
	}
	return t.subtrees(ctx, roots, 1)
}

func (t *CategoryTree) subtrees(ctx context.Context, categories []domain.Category, depth int) ([]domain.CategoryNode, error) {
	nodes := make([]domain.CategoryNode, len(categories))
	g, gctx := errgroup.WithContext(ctx)

	for i, c := range categories {
		nodes[i].Category = c
		if depth >= maxCategoryDepth {
			continue
		}
		g.Go(func() error {
			children, err := t.api.ListSubcategories(gctx, c.ID)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				return nil
			}
			sub, err := t.subtrees(gctx, children, depth+1)
			if err != nil {
				return err
			}
			nodes[i].Subcategories = sub
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return nodes, nil
}

func cloneNodes(nodes []domain.CategoryNode) []domain.CategoryNode {
	if nodes == nil {
		return nil
	}
	out := make([]domain.CategoryNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].Subcategories = cloneNodes(n.Subcategories)
	}
	return out
}
