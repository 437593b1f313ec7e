package htmlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	require.Equal(t, "Mixed Nuts 1.13kg", CleanText("  Mixed\n  Nuts   1.13kg \t"))
	require.Equal(t, "", CleanText(" \n\t "))
	require.Equal(t, "a b", CleanText("a\u0000\u0007 b"))
}

func TestResolveHref(t *testing.T) {
	base, err := url.Parse("https://www.costco.co.jp/CatalogSearch?keyword=nuts")
	require.NoError(t, err)

	require.Equal(t,
		"https://www.costco.co.jp/p/123",
		ResolveHref(base, "/p/123"),
	)
	require.Equal(t,
		"https://example.com/abs",
		ResolveHref(base, "https://example.com/abs"),
	)
}
