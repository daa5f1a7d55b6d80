package md_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	. "parsek.dev/pkg/md"
)

func TestDump(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "leaf blocks and a tight list",
			markdown: "# a\n\n- x\n- y\n\n```go\nz\n```\n",
			want: dedent(`
				document
				  heading level=1
				    text "a"
				  blank-line
				  bullet-list marker='-' tight
				    item
				      paragraph
				        text "x"
				    item
				      paragraph
				        text "y"
				      blank-line
				  fenced-code info="go" "z\n"
				`),
		},
		{
			name:     "containers and a reference definition",
			markdown: "> quote\n\n3) x\n\n[a]: /u \"t\"\n",
			want: dedent(`
				document
				  block-quote
				    paragraph
				      text "quote"
				  blank-line
				  ordered-list start=3 delim=')' tight
				    item
				      paragraph
				        text "x"
				      blank-line
				  link-reference-definition label="a" dest="/u" title="t"
				`),
		},
		{
			name:     "inline constructs",
			markdown: "*a* `b` [c](/u) ![d](/v)  \ne\n",
			want: dedent(`
				document
				  paragraph
				    emphasis
				      text "a"
				    text " "
				    code-span "b"
				    text " "
				    link dest="/u"
				      text "c"
				    text " "
				    image dest="/v" alt="d"
				    hard-break
				    text "e"
				`),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Dump(Parse(test.markdown))
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("input:\n%sdiff (-want +got):\n%s", test.markdown, diff)
			}
		})
	}
}
