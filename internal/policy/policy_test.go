package policy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histcore/internal/config"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRules_SchemeAllowlist(t *testing.T) {
	r := NewRules(config.DefaultConfig().Capture)

	assert.True(t, r.CanAddURL(mustParse(t, "https://example.com/")))
	assert.True(t, r.CanAddURL(mustParse(t, "file:///tmp/a.html")))
	assert.False(t, r.CanAddURL(mustParse(t, "javascript:alert(1)")))
	assert.False(t, r.CanAddURL(mustParse(t, "about:blank")))
	assert.False(t, r.CanAddURL(mustParse(t, "http:///no-host")))
	assert.False(t, r.CanAddURL(nil))
}

func TestRules_DenylistDomains(t *testing.T) {
	capture := config.DefaultConfig().Capture
	capture.DenylistDomains = []string{"bank.example"}
	r := NewRules(capture)

	assert.False(t, r.CanAddURL(mustParse(t, "https://bank.example/login")))
	assert.False(t, r.CanAddURL(mustParse(t, "https://www.bank.example/")))
	assert.True(t, r.CanAddURL(mustParse(t, "https://notbank.example/")))
}

func TestRules_DenylistRegex(t *testing.T) {
	capture := config.DefaultConfig().Capture
	capture.DenylistRegex = []string{`\.internal$`, "("}
	r := NewRules(capture)

	assert.False(t, r.CanAddURL(mustParse(t, "http://wiki.corp.internal/")))
	assert.True(t, r.CanAddURL(mustParse(t, "http://wiki.corp.example/")))
}

func TestAllowAll(t *testing.T) {
	assert.True(t, AllowAll.CanAddURL(mustParse(t, "chrome://settings")))
	assert.False(t, AllowAll.CanAddURL(mustParse(t, "relative/path")))
}
