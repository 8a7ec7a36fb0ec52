package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/closetloop/catalog-harvester/internal/testutil"
	"github.com/closetloop/catalog-harvester/pkg/catalog"
	"github.com/closetloop/catalog-harvester/pkg/fetcher"
	"github.com/closetloop/catalog-harvester/pkg/stats"
)

// newTestPaginator wires a fetcher with millisecond backoffs and no
// inter-page delay.
func newTestPaginator(recorder *stats.Recorder, pageSize int) *Paginator {
	fcfg := fetcher.DefaultConfig()
	fcfg.InitialBackoff = 1 * time.Millisecond
	fcfg.MaxBackoff = 5 * time.Millisecond
	f := fetcher.New(fcfg, recorder)
	return New(f, Config{PageSize: pageSize, Delay: 0}, recorder)
}

func TestWalk_Termination(t *testing.T) {
	store := testutil.NewMockStore()
	defer store.Close()

	// 537 products paginate as [250, 250, 37, 0] at the platform limit.
	store.SetCatalog("/products.json", testutil.Products(1, 537))

	recorder := stats.NewRecorder()
	p := newTestPaginator(recorder, 250)

	total := 0
	pages := 0
	err := p.Walk(context.Background(), store.URL()+"/products.json",
		func(page int, products []catalog.RawProduct) error {
			pages++
			total += len(products)
			return nil
		})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if total != 537 {
		t.Errorf("total products = %d, want 537", total)
	}
	if pages != 3 {
		t.Errorf("non-empty pages = %d, want 3", pages)
	}
	// Three full/partial pages plus the terminating empty page.
	if got := store.PathCount("/products.json"); got != 4 {
		t.Errorf("page requests = %d, want 4", got)
	}

	snap := recorder.Snapshot()
	if snap.PagesFetched != 3 || snap.ProductsFetched != 537 {
		t.Errorf("stats = %d pages / %d products, want 3/537",
			snap.PagesFetched, snap.ProductsFetched)
	}
}

func TestWalk_ShortPageDoesNotTerminate(t *testing.T) {
	store := testutil.NewMockStore()
	defer store.Close()

	// 37 < limit on page 1; termination must still wait for the empty
	// page 2 rather than assume a short page is the last one.
	store.SetCatalog("/products.json", testutil.Products(1, 37))

	p := newTestPaginator(stats.NewRecorder(), 250)

	total := 0
	err := p.Walk(context.Background(), store.URL()+"/products.json",
		func(page int, products []catalog.RawProduct) error {
			total += len(products)
			return nil
		})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if total != 37 {
		t.Errorf("total products = %d, want 37", total)
	}
	if got := store.PathCount("/products.json"); got != 2 {
		t.Errorf("page requests = %d, want 2", got)
	}
}

func TestWalk_FatalErrorHalts(t *testing.T) {
	store := testutil.NewMockStore()
	defer store.Close()
	store.AlwaysStatus("/products.json", 404)

	p := newTestPaginator(stats.NewRecorder(), 250)

	calls := 0
	err := p.Walk(context.Background(), store.URL()+"/products.json",
		func(page int, products []catalog.RawProduct) error {
			calls++
			return nil
		})

	if err == nil {
		t.Fatal("expected fatal error, got nil")
	}
	var ferr *fetcher.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *fetcher.FetchError, got %T", err)
	}
	if ferr.StatusCode != 404 {
		t.Errorf("status = %d, want 404", ferr.StatusCode)
	}
	if calls != 0 {
		t.Errorf("page callback ran %d times, want 0", calls)
	}
	// A fatal error must not be retried with a different page number.
	if got := store.PathCount("/products.json"); got != 1 {
		t.Errorf("page requests = %d, want 1", got)
	}
}

func TestNew_PageSizeCapped(t *testing.T) {
	// New() must clamp oversized page sizes to the platform ceiling.
	p := New(fetcher.New(fetcher.DefaultConfig(), nil), Config{PageSize: 1000}, nil)
	if p.cfg.PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want %d", p.cfg.PageSize, MaxPageSize)
	}

	p = New(fetcher.New(fetcher.DefaultConfig(), nil), Config{PageSize: 0}, nil)
	if p.cfg.PageSize != MaxPageSize {
		t.Errorf("zero PageSize = %d, want %d", p.cfg.PageSize, MaxPageSize)
	}
}

func TestWalk_ContextCancelled(t *testing.T) {
	store := testutil.NewMockStore()
	defer store.Close()
	store.SetCatalog("/products.json", testutil.Products(1, 500))

	p := newTestPaginator(stats.NewRecorder(), 250)

	ctx, cancel := context.WithCancel(context.Background())
	err := p.Walk(ctx, store.URL()+"/products.json",
		func(page int, products []catalog.RawProduct) error {
			cancel() // stop after the first page is handed off
			return nil
		})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := store.PathCount("/products.json"); got != 1 {
		t.Errorf("page requests after cancel = %d, want 1", got)
	}
}

func TestWalk_MalformedRecordSkipped(t *testing.T) {
	store := testutil.NewMockStore()
	defer store.Close()

	// One record with numeric tags among nine good ones. The bad
	// record is dropped and recorded; the page and the walk continue.
	products := testutil.Products(1, 9)
	products = append(products, json.RawMessage(`{"id":10,"title":"Bad","handle":"bad","tags":5}`))
	store.SetCatalog("/products.json", products)

	recorder := stats.NewRecorder()
	p := newTestPaginator(recorder, 250)

	total := 0
	err := p.Walk(context.Background(), store.URL()+"/products.json",
		func(page int, products []catalog.RawProduct) error {
			total += len(products)
			return nil
		})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if total != 9 {
		t.Errorf("surviving products = %d, want 9", total)
	}

	snap := recorder.Snapshot()
	if snap.ProductsFailed != 1 {
		t.Errorf("products failed = %d, want 1", snap.ProductsFailed)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Source != "10" {
		t.Errorf("unexpected error records: %+v", snap.Errors)
	}
}
