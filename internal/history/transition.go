package history

import (
	"fmt"
	"strings"
)

// Transition is a core navigation kind in the low byte plus qualifier bits.
type Transition uint32

// Core transition kinds.
const (
	TransitionLink Transition = iota
	TransitionTyped
	TransitionAutoBookmark
	TransitionAutoSubframe
	TransitionManualSubframe
	TransitionGenerated
	TransitionAutoToplevel
	TransitionFormSubmit
	TransitionReload
	TransitionKeyword
	TransitionKeywordGenerated
)

// Qualifier bits.
const (
	QualifierBlocked        Transition = 0x00800000
	QualifierForwardBack    Transition = 0x01000000
	QualifierFromAddressBar Transition = 0x02000000
	QualifierHomePage       Transition = 0x04000000
	QualifierFromAPI        Transition = 0x08000000
	QualifierChainStart     Transition = 0x10000000
	QualifierChainEnd       Transition = 0x20000000
	QualifierClientRedirect Transition = 0x40000000
	QualifierServerRedirect Transition = 0x80000000

	CoreMask          Transition = 0x000000FF
	QualifierMask     Transition = 0xFFFFFF00
	ChainMask         Transition = QualifierChainStart | QualifierChainEnd
	RedirectMask      Transition = QualifierClientRedirect | QualifierServerRedirect
	RedirectChainMask Transition = ChainMask | RedirectMask
)

var coreNames = [...]string{
	"link", "typed", "auto_bookmark", "auto_subframe", "manual_subframe",
	"generated", "auto_toplevel", "form_submit", "reload", "keyword",
	"keyword_generated",
}

// Core returns the core kind with all qualifiers removed.
func (t Transition) Core() Transition { return t & CoreMask }

// Qualifiers returns only the qualifier bits.
func (t Transition) Qualifiers() Transition { return t & QualifierMask }

// Has reports whether every bit of q is set on t.
func (t Transition) Has(q Transition) bool { return t&q == q }

// CoreIs reports whether the core kind of t equals core.
func (t Transition) CoreIs(core Transition) bool { return t.Core() == core.Core() }

// IsRedirect reports whether t carries a client or server redirect qualifier.
func (t Transition) IsRedirect() bool { return t&RedirectMask != 0 }

// IsChainStart reports whether t begins a redirect chain.
func (t Transition) IsChainStart() bool { return t&QualifierChainStart != 0 }

// IsChainEnd reports whether t ends a redirect chain.
func (t Transition) IsChainEnd() bool { return t&QualifierChainEnd != 0 }

// IsMainFrame reports whether t is a top-level navigation.
func (t Transition) IsMainFrame() bool {
	c := t.Core()
	return c != TransitionAutoSubframe && c != TransitionManualSubframe
}

// IsNewNavigation reports whether t is not a back/forward navigation.
func (t Transition) IsNewNavigation() bool { return t&QualifierForwardBack == 0 }

// IsVisible reports whether a visit with this transition is shown in history
// listings: the end of a main-frame chain that was not keyword generated.
func (t Transition) IsVisible() bool {
	return t.IsChainEnd() && t.IsMainFrame() && !t.CoreIs(TransitionKeywordGenerated)
}

// StripQualifiers returns t with chain and redirect qualifiers cleared.
func (t Transition) StripQualifiers() Transition { return t &^ RedirectChainMask }

var qualifierNames = []struct {
	bit  Transition
	name string
}{
	{QualifierForwardBack, "forward_back"},
	{QualifierFromAddressBar, "from_address_bar"},
	{QualifierChainStart, "chain_start"},
	{QualifierChainEnd, "chain_end"},
	{QualifierClientRedirect, "client_redirect"},
	{QualifierServerRedirect, "server_redirect"},
}

// String renders the core name followed by qualifier names.
func (t Transition) String() string {
	name := fmt.Sprintf("core(%d)", t.Core())
	if int(t.Core()) < len(coreNames) {
		name = coreNames[t.Core()]
	}
	for _, q := range qualifierNames {
		if t&q.bit != 0 {
			name += "|" + q.name
		}
	}
	return name
}

// ParseTransition is the inverse of String: a core name optionally followed
// by "|"-separated qualifier names. Used by the CLI and scenario files.
func ParseTransition(name string) (Transition, error) {
	parts := strings.Split(name, "|")
	t, ok := Transition(0), false
	for i, n := range coreNames {
		if n == parts[0] {
			t, ok = Transition(i), true
			break
		}
	}
	if !ok {
		return 0, fmt.Errorf("unknown transition %q", parts[0])
	}
	for _, part := range parts[1:] {
		found := false
		for _, q := range qualifierNames {
			if q.name == part {
				t |= q.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown transition qualifier %q", part)
		}
	}
	return t, nil
}

// IsTypedIncrement reports whether a visit with transition t earns typed
// credit: a new navigation that was typed without being a redirect, or that
// was generated from a keyword.
func IsTypedIncrement(t Transition) bool {
	if !t.IsNewNavigation() {
		return false
	}
	if t.CoreIs(TransitionTyped) && !t.IsRedirect() {
		return true
	}
	return t.CoreIs(TransitionKeywordGenerated)
}
