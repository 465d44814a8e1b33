package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbreports/internal/browser"
	"wbreports/internal/browser/browsertest"
	apperrors "wbreports/internal/errors"
)

func TestLocator_Find(t *testing.T) {
	loc := browser.NewLocator("export button",
		browser.XPath("//button[.//span[contains(text(), 'Выгрузить в Excel')]]"),
		browser.CSS("button.export"),
	)

	tests := []struct {
		name     string
		setup    func(f *browsertest.Fake)
		wantKey  string
		wantType apperrors.ErrorType
	}{
		{
			name: "first strategy wins",
			setup: func(f *browsertest.Fake) {
				f.Add("//button[.//span[contains(text(), 'Выгрузить в Excel')]]", nil)
				f.Add("button.export", nil)
			},
			wantKey: "//button[.//span[contains(text(), 'Выгрузить в Excel')]]",
		},
		{
			name: "falls back to second strategy",
			setup: func(f *browsertest.Fake) {
				f.Add("button.export", nil)
			},
			wantKey: "button.export",
		},
		{
			name:     "exhausted strategies",
			setup:    func(f *browsertest.Fake) {},
			wantType: apperrors.ErrTypeElementNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := browsertest.New()
			tt.setup(f)

			el, err := loc.Find(context.Background(), f, time.Millisecond)
			if tt.wantType != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.wantType))
				assert.Contains(t, err.Error(), "export button")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, el.Describe())
		})
	}
}

func TestLocator_FindClickableSkipsHidden(t *testing.T) {
	f := browsertest.New()
	f.Add("#hidden", &browsertest.Element{Hidden: true})
	f.Add("#shown", nil)

	loc := browser.NewLocator("target", browser.ID("#hidden"), browser.ID("#shown"))

	el, err := loc.FindClickable(context.Background(), f, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "#shown", el.Describe())

	el, err = loc.Find(context.Background(), f, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "#hidden", el.Describe())
}

func TestLocator_Optional(t *testing.T) {
	f := browsertest.New()
	loc := browser.NewLocator("confirm dialog", browser.CSS(".confirm"))

	el, ok, err := loc.Optional(context.Background(), f, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, el)

	f.Add(".confirm", nil)
	el, ok, err = loc.Optional(context.Background(), f, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, el)
}

func TestLocator_CancelledContext(t *testing.T) {
	f := browsertest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := browser.NewLocator("x", browser.CSS(".x")).Optional(ctx, f, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocator_HonoredWaitBoundsDuration(t *testing.T) {
	f := browsertest.New()
	f.HonorWaits = true
	loc := browser.NewLocator("landmark", browser.CSS(".a"), browser.CSS(".b"))

	start := time.Now()
	_, err := loc.Find(context.Background(), f, 50*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestSelector_String(t *testing.T) {
	assert.Equal(t, "css=.a", browser.CSS(".a").String())
	assert.Equal(t, "id=startDate", browser.ID("startDate").String())
	assert.Equal(t, "xpath=//h1", browser.XPath("//h1").String())
}
