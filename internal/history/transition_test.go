package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_CoreAndQualifiers(t *testing.T) {
	tr := TransitionTyped | QualifierChainStart | QualifierServerRedirect

	assert.Equal(t, TransitionTyped, tr.Core())
	assert.True(t, tr.IsChainStart())
	assert.False(t, tr.IsChainEnd())
	assert.True(t, tr.IsRedirect())
	assert.Equal(t, TransitionTyped, tr.StripQualifiers())
}

func TestTransition_IsVisible(t *testing.T) {
	tests := []struct {
		name string
		tr   Transition
		want bool
	}{
		{"chain end link", TransitionLink | QualifierChainEnd, true},
		{"mid chain", TransitionLink | QualifierChainStart, false},
		{"subframe", TransitionAutoSubframe | QualifierChainEnd, false},
		{"keyword generated", TransitionKeywordGenerated | QualifierChainEnd, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tr.IsVisible())
		})
	}
}

func TestIsTypedIncrement(t *testing.T) {
	assert.True(t, IsTypedIncrement(TransitionTyped|QualifierChainStart))
	assert.True(t, IsTypedIncrement(TransitionKeywordGenerated))
	assert.False(t, IsTypedIncrement(TransitionTyped|QualifierServerRedirect))
	assert.False(t, IsTypedIncrement(TransitionTyped|QualifierForwardBack))
	assert.False(t, IsTypedIncrement(TransitionLink))
}

func TestParseTransition(t *testing.T) {
	tr, err := ParseTransition("form_submit")
	require.NoError(t, err)
	assert.Equal(t, TransitionFormSubmit, tr)

	tr, err = ParseTransition("link|client_redirect|chain_end")
	require.NoError(t, err)
	assert.Equal(t, TransitionLink|QualifierClientRedirect|QualifierChainEnd, tr)

	_, err = ParseTransition("teleport")
	assert.Error(t, err)
	_, err = ParseTransition("link|sideways")
	assert.Error(t, err)
}

func TestTransition_String(t *testing.T) {
	tr := TransitionLink | QualifierChainStart | QualifierChainEnd
	assert.Equal(t, "link|chain_start|chain_end", tr.String())

	back, err := ParseTransition(tr.String())
	require.NoError(t, err)
	assert.Equal(t, tr, back)
}

func TestContentAnnotations_Merge(t *testing.T) {
	score := 0.5
	title := "alt"
	base := ContentAnnotations{SearchTerms: "kept", Flags: ContentFlagTopicEligible}

	merged := base.Merge(ContentAnnotationsUpdate{
		VisibilityScore:  &score,
		AlternativeTitle: &title,
		Flags:            ContentFlagPageLanguageOK,
	})

	assert.Equal(t, 0.5, merged.VisibilityScore)
	assert.Equal(t, "alt", merged.AlternativeTitle)
	assert.Equal(t, "kept", merged.SearchTerms)
	assert.Equal(t, ContentFlagTopicEligible|ContentFlagPageLanguageOK, merged.Flags)
}
