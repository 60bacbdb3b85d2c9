package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/internal"
	"github.com/dmitrymomot/trellis/middlewares"
)

func newContext(r *http.Request) (internal.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return internal.NewContext(rec, r), rec
}

func TestRecover(t *testing.T) {
	t.Parallel()

	panicErr := errors.New("error panic")
	tests := []struct {
		name  string
		value any
	}{
		{"string", "test panic"},
		{"error", panicErr},
		{"integer", 42},
		{"struct", struct{ Code int }{Code: 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
			err := middlewares.Recover()(func(internal.Context) error {
				panic(tt.value)
			})(c)

			pe, ok := middlewares.AsPanicError(err)
			require.True(t, ok)
			assert.Equal(t, tt.value, pe.Value)
			assert.NotEmpty(t, pe.Stack)
		})
	}

	t.Run("error panic unwraps", func(t *testing.T) {
		t.Parallel()

		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		err := middlewares.Recover()(func(internal.Context) error {
			panic(panicErr)
		})(c)
		assert.ErrorIs(t, err, panicErr)
	})

	t.Run("passes through when no panic", func(t *testing.T) {
		t.Parallel()

		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		err := middlewares.Recover()(func(internal.Context) error { return nil })(c)
		require.NoError(t, err)
	})

	t.Run("disable stack", func(t *testing.T) {
		t.Parallel()

		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		err := middlewares.Recover(middlewares.WithRecoverDisablePrintStack())(func(internal.Context) error {
			panic("boom")
		})(c)

		pe, ok := middlewares.AsPanicError(err)
		require.True(t, ok)
		assert.Nil(t, pe.Stack)
	})

	t.Run("stack size limit", func(t *testing.T) {
		t.Parallel()

		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		err := middlewares.Recover(middlewares.WithRecoverStackSize(64))(func(internal.Context) error {
			panic("boom")
		})(c)

		pe, ok := middlewares.AsPanicError(err)
		require.True(t, ok)
		assert.LessOrEqual(t, len(pe.Stack), 64)
	})

	t.Run("abort handler is re-raised", func(t *testing.T) {
		t.Parallel()

		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			_ = middlewares.Recover()(func(internal.Context) error {
				panic(http.ErrAbortHandler)
			})(c)
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "panic: 42", (&middlewares.PanicError{Value: 42}).Error())
	assert.False(t, middlewares.IsPanicError(http.ErrNoCookie))
	assert.False(t, middlewares.IsTimeoutError(http.ErrNoCookie))
	_, ok := middlewares.AsTimeoutError(http.ErrNoCookie)
	assert.False(t, ok)
}
