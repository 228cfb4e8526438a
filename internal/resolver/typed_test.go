package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/histcore/internal/history"
)

func TestTypedCreditTarget(t *testing.T) {
	typed := history.TransitionTyped

	tests := []struct {
		name  string
		chain history.RedirectList
		t     history.Transition
		want  int
	}{
		{"no redirects", history.RedirectList{"https://x.com/"}, typed, 0},
		{"https upgrade moves credit", history.RedirectList{"http://x.com/", "https://x.com/"}, typed, 1},
		{"www added on upgrade", history.RedirectList{"http://x.com/", "https://www.x.com/"}, typed, 1},
		{"path change keeps credit on origin", history.RedirectList{"http://x.com/", "https://x.com/login"}, typed, 0},
		{"host change keeps credit on origin", history.RedirectList{"http://x.com/", "https://y.com/"}, typed, 0},
		{"downgrade keeps credit on origin", history.RedirectList{"https://x.com/", "http://x.com/"}, typed, 0},
		{"only the first hop counts", history.RedirectList{"http://x.com/", "https://x.com/", "http://x.com/"}, typed, 1},
		{"link earns nothing", history.RedirectList{"http://x.com/", "https://x.com/"}, history.TransitionLink, NoTypedCredit},
		{"back/forward earns nothing", history.RedirectList{"https://x.com/"}, typed | history.QualifierForwardBack, NoTypedCredit},
		{"keyword generated", history.RedirectList{"https://x.com/?q=a"}, history.TransitionKeywordGenerated, 0},
		{"empty chain", nil, typed, NoTypedCredit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypedCreditTarget(tt.chain, tt.t))
		})
	}
}

func TestShouldPromoteIntranet(t *testing.T) {
	link := history.TransitionLink

	assert.True(t, ShouldPromoteIntranet("http://intranet/", link))
	assert.True(t, ShouldPromoteIntranet("http://10.0.0.1/", link))
	assert.False(t, ShouldPromoteIntranet("https://example.com/", link))
	assert.False(t, ShouldPromoteIntranet("http://intranet/", history.TransitionTyped))
	assert.False(t, ShouldPromoteIntranet("http://intranet/", history.TransitionAutoSubframe))
	assert.False(t, ShouldPromoteIntranet("file:///tmp/x", link))
}
