package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(
		Module{ID: "routes/admin"},
		Module{ID: "routes/admin/users"},
		Module{ID: "routes/admin/dashboard"},
		Module{ID: "routes/page"},
	)
}

func TestRouteTable_Match(t *testing.T) {
	t.Parallel()

	table, err := newRouteTable([]Route{
		{Pattern: "/admin/users", Modules: []string{"routes/admin", "routes/admin/users"}},
		{Pattern: "/admin/*", Modules: []string{"routes/admin", "routes/admin/dashboard"}},
		{Pattern: "/", Modules: []string{"routes/page"}},
	}, testRegistry())
	require.NoError(t, err)

	tests := []struct {
		path    string
		pattern string
		ok      bool
	}{
		{"/admin/users", "/admin/users", true},
		{"/admin/users/", "/admin/users", true},
		{"/admin/users/edit", "/admin/*", true},
		{"/admin", "/admin/*", true},
		{"/admin/", "/admin/*", true},
		{"/administrator", "", false},
		{"/", "/", true},
		{"/about", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, ok := table.match(tt.path)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.pattern, r.Pattern)
			}
		})
	}
}

func TestRouteTable_ChainOrder(t *testing.T) {
	t.Parallel()

	table, err := newRouteTable([]Route{
		{Pattern: "/admin/users", Modules: []string{"routes/admin", "routes/admin/users"}},
	}, testRegistry())
	require.NoError(t, err)

	r, ok := table.match("/admin/users")
	require.True(t, ok)
	require.Len(t, r.chain, 2)
	assert.Equal(t, "routes/admin", r.chain[0].ID)
	assert.Equal(t, "routes/admin/users", r.chain[1].ID)
}

func TestRouteTable_Invalid(t *testing.T) {
	t.Parallel()

	_, err := newRouteTable([]Route{{Pattern: "/x", Modules: []string{"routes/missing"}}}, testRegistry())
	require.ErrorIs(t, err, ErrUnknownModule)

	_, err = newRouteTable([]Route{{Pattern: "x", Modules: []string{"routes/page"}}}, testRegistry())
	require.Error(t, err)

	_, err = newRouteTable([]Route{{Pattern: "/x"}}, testRegistry())
	require.Error(t, err)
}

func TestRuntimeTable_Match(t *testing.T) {
	t.Parallel()

	table := NewRuntimeTable()
	table.Replace([]RuntimeRoute{
		{Pattern: "/about", RecordID: "1", Modules: []string{"routes/page"}},
		{Pattern: "/about/", RecordID: "2", Modules: []string{"routes/page"}},
		{Pattern: "blog/hello/", RecordID: "3", Modules: []string{"routes/page"}},
	})

	require.Equal(t, 2, table.Len())

	r, redirect, ok := table.Match("/about/")
	require.True(t, ok)
	assert.False(t, redirect)
	assert.Equal(t, "1", r.RecordID, "first duplicate wins")

	r, redirect, ok = table.Match("/about")
	require.True(t, ok)
	assert.True(t, redirect)
	assert.Equal(t, "/about/", r.Pattern)

	_, _, ok = table.Match("/blog/hello/")
	assert.True(t, ok)

	_, _, ok = table.Match("/contact")
	assert.False(t, ok)
}

func TestRuntimeTable_Rebuild(t *testing.T) {
	t.Parallel()

	table := NewRuntimeTable()
	require.NoError(t, table.Rebuild(context.Background(), RuntimeSourceFunc(func(context.Context) ([]RuntimeRoute, error) {
		return []RuntimeRoute{{Pattern: "/about/", Modules: []string{"routes/page"}}}, nil
	})))
	require.Equal(t, 1, table.Len())

	err := table.Rebuild(context.Background(), RuntimeSourceFunc(func(context.Context) ([]RuntimeRoute, error) {
		return nil, errors.New("db down")
	}))
	require.Error(t, err)
	assert.Equal(t, 1, table.Len(), "failed rebuild keeps the current table")
}

func TestRuntimeTable_ConcurrentSwap(t *testing.T) {
	t.Parallel()

	table := NewRuntimeTable()
	generation := func(n int) []RuntimeRoute {
		routes := make([]RuntimeRoute, 0, 10)
		for i := range 10 {
			routes = append(routes, RuntimeRoute{
				Pattern:  fmt.Sprintf("/p%d/", i),
				RecordID: fmt.Sprintf("%d", n),
				Modules:  []string{"routes/page"},
			})
		}
		return routes
	}
	table.Replace(generation(0))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Every route of one snapshot belongs to the same generation.
				routes := table.Routes()
				for _, r := range routes {
					if r.RecordID != routes[0].RecordID {
						t.Errorf("mixed generations in one snapshot: %s vs %s", r.RecordID, routes[0].RecordID)
						return
					}
				}
				if _, _, ok := table.Match("/p3/"); !ok {
					t.Error("route missing during swap")
					return
				}
			}
		}()
	}

	for n := 1; n <= 200; n++ {
		table.Replace(generation(n))
	}
	close(stop)
	wg.Wait()
}
