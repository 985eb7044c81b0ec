package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceMoreMarkers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single marker",
			in:   "Intro #### Rest",
			want: "Intro <!--more--> Rest",
		},
		{
			name: "every occurrence converted",
			in:   "A #### B #### C",
			want: "A <!--more--> B <!--more--> C",
		},
		{
			name: "no surrounding whitespace",
			in:   "intro####rest",
			want: "intro <!--more--> rest",
		},
		{
			name: "no marker",
			in:   "plain body",
			want: "plain body",
		},
		{
			name: "marker at end",
			in:   "body ####",
			want: "body <!--more--> ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceMoreMarkers(tt.in))
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("**bold** text")
	require.NoError(t, err)
	assert.Equal(t, "<p><strong>bold</strong> text</p>", out)
}

func TestRenderMarkdownKeepsMoreTag(t *testing.T) {
	out, err := RenderMarkdown("above <!--more--> below")
	require.NoError(t, err)
	assert.Contains(t, out, "<!--more-->", "read-more comment must survive rendering")
}
