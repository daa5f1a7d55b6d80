package md_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	. "parsek.dev/pkg/md"
)

// The CommonMark spec tests assume one particular escaping scheme for text
// and attributes; these cases pin it down.
var escapeTestCases = []testCase{
	{
		Name:     "text escapes HTML syntax characters",
		Markdown: "\\<a\\> & \"q\"\n",
		HTML:     "<p>&lt;a&gt; &amp; &quot;q&quot;</p>\n",
	},
	{
		Name:     "code span content is escaped",
		Markdown: "`<a href=\"x\">`\n",
		HTML:     "<p><code>&lt;a href=&quot;x&quot;&gt;</code></p>\n",
	},
	{
		Name:     "spaces in destinations",
		Markdown: "[a](</u v>)\n",
		HTML:     "<p><a href=\"/u%20v\">a</a></p>\n",
	},
	{
		Name:     "quotes in destinations",
		Markdown: "[a](/\\\"q\\\")\n",
		HTML:     "<p><a href=\"/%22q%22\">a</a></p>\n",
	},
	{
		Name:     "non-ASCII in destinations",
		Markdown: "[a](/ö)\n",
		HTML:     "<p><a href=\"/%C3%B6\">a</a></p>\n",
	},
	{
		Name:     "backticks in destinations",
		Markdown: "[a](/`x`)\n",
		HTML:     "<p><a href=\"/%60x%60\">a</a></p>\n",
	},
	{
		Name:     "ampersands in titles",
		Markdown: "[a](/u \"x&y\")\n",
		HTML:     "<p><a href=\"/u\" title=\"x&amp;y\">a</a></p>\n",
	},
	{
		Name:     "quotes in titles",
		Markdown: "[a](/u 'x\"y')\n",
		HTML:     "<p><a href=\"/u\" title=\"x&quot;y\">a</a></p>\n",
	},
	{
		Name:     "quotes in image alt text",
		Markdown: "![\\\"q\\\"](/u)\n",
		HTML:     "<p><img src=\"/u\" alt=\"&quot;q&quot;\" /></p>\n",
	},
	{
		Name:     "raw HTML is not escaped",
		Markdown: "a <b class=\"x\"> c\n",
		HTML:     "<p>a <b class=\"x\"> c</p>\n",
	},
	{
		Name:     "code block content is escaped",
		Markdown: "```\n<x> & y\n```\n",
		HTML:     "<pre><code>&lt;x&gt; &amp; y\n</code></pre>\n",
	},
}

func TestRenderHTML_Escaping(t *testing.T) {
	for _, tc := range escapeTestCases {
		t.Run(tc.Name, func(t *testing.T) {
			got := RenderHTML(Parse(tc.Markdown))
			if diff := cmp.Diff(tc.HTML, got); diff != "" {
				t.Errorf("input:\n%sdiff (-want +got):\n%s", tc.Markdown, diff)
			}
		})
	}
}

// Rendering the same document twice gives the same output; the writer holds
// no state across calls.
func TestRenderHTML_Deterministic(t *testing.T) {
	doc := Parse("# a\n\n- x\n\n> y\n")
	if first, second := RenderHTML(doc), RenderHTML(doc); first != second {
		t.Errorf("two renders differ:\n%q\n%q", first, second)
	}
}
