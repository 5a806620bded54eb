package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_StripsBoilerplateAndCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<nav>Home | About</nav>
		<main>  Hello   World  </main>
		<footer class="site-footer">copyright</footer>
	</body></html>`

	got, err := canonicalize([]byte(html))
	require.NoError(t, err)

	assert.NotContains(t, got, "Home")
	assert.NotContains(t, got, "copyright")
	assert.Contains(t, got, "Hello World")
}

func TestCanonicalize_IsDeterministic(t *testing.T) {
	t.Parallel()

	html := `<html><body><p>Same content</p></body></html>`

	a, err := canonicalize([]byte(html))
	require.NoError(t, err)
	b, err := canonicalize([]byte(html))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, hashOf(a), hashOf(b))
}

func TestCanonicalize_WhitespaceOnlyChangeProducesSameHash(t *testing.T) {
	t.Parallel()

	a, err := canonicalize([]byte(`<body><p>one   two</p></body>`))
	require.NoError(t, err)
	b, err := canonicalize([]byte(`<body><p>one     two</p></body>`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestIsIgnoredContentType_ByExtension(t *testing.T) {
	t.Parallel()

	assert.True(t, isIgnoredContentType("", "https://example.com/report.pdf"))
	assert.False(t, isIgnoredContentType("", "https://example.com/index.html"))
}

func TestIsIgnoredContentType_ByMIME(t *testing.T) {
	t.Parallel()

	assert.True(t, isIgnoredContentType("application/pdf", "https://example.com/a"))
	assert.False(t, isIgnoredContentType("text/html; charset=utf-8", "https://example.com/a"))
	assert.False(t, isIgnoredContentType("application/xhtml+xml", "https://example.com/a"))
}

func hashOf(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
