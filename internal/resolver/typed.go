package resolver

import (
	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/urlutil"
)

// NoTypedCredit is returned by TypedCreditTarget when no hop earns credit.
const NoTypedCredit = -1

// TypedCreditTarget returns the index of the chain hop that receives typed
// credit for a navigation with transition t, or NoTypedCredit.
//
// Credit stays on the first hop unless the first redirect is the HTTPS
// upgrade of the same page, in which case it moves to the second hop. No
// other hop ever receives it.
func TypedCreditTarget(chain history.RedirectList, t history.Transition) int {
	if len(chain) == 0 || !history.IsTypedIncrement(t.StripQualifiers()) {
		return NoTypedCredit
	}
	if len(chain) >= 2 && urlutil.IsSchemeUpgrade(chain[0], chain[1]) {
		return 1
	}
	return 0
}

// ShouldPromoteIntranet reports whether a main-frame navigation to rawURL
// with transition t is a candidate for intranet promotion to TYPED. The
// caller still checks that the host has no typed URL yet.
func ShouldPromoteIntranet(rawURL string, t history.Transition) bool {
	if !t.IsMainFrame() {
		return false
	}
	if t.CoreIs(history.TransitionTyped) || t.CoreIs(history.TransitionKeywordGenerated) {
		return false
	}
	return urlutil.IsIntranetCandidate(rawURL)
}
