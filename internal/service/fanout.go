package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/repository"
)

const unknownName = "Unknown"

const defaultFanout = 8

// lookups runs bounded batches of independent reads. A failed lookup falls
// back to a default value and never aborts the rest of the batch.
type lookups struct {
	users repository.UserRepository
	items repository.ItemRepository
	limit int
	log   *slog.Logger
}

func (l lookups) batch(n int, fn func(i int)) {
	var g errgroup.Group
	limit := l.limit
	if limit <= 0 {
		limit = defaultFanout
	}
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// names resolves display names for uids. Missing or failed lookups yield
// "Unknown".
func (l lookups) names(ctx context.Context, uids []string) map[string]string {
	uniq := unique(uids)
	out := make([]string, len(uniq))
	l.batch(len(uniq), func(i int) {
		out[i] = unknownName
		u, err := l.users.FindByID(ctx, uniq[i])
		if err != nil {
			l.log.Warn("name lookup failed", "uid", uniq[i], "error", err)
			return
		}
		if u.Name != "" {
			out[i] = u.Name
		}
	})
	names := make(map[string]string, len(uniq))
	for i, id := range uniq {
		names[id] = out[i]
	}
	return names
}

// availability reports which item ids still exist. A failed lookup counts
// as available.
func (l lookups) availability(ctx context.Context, itemIDs []string) map[string]bool {
	uniq := unique(itemIDs)
	out := make([]bool, len(uniq))
	l.batch(len(uniq), func(i int) {
		out[i] = true
		_, err := l.items.FindByID(ctx, uniq[i])
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			out[i] = false
		case err != nil:
			l.log.Warn("item lookup failed", "item_id", uniq[i], "error", err)
		}
	})
	avail := make(map[string]bool, len(uniq))
	for i, id := range uniq {
		avail[id] = out[i]
	}
	return avail
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
