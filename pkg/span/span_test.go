package span_test

import (
	"reflect"
	"testing"

	"parsek.dev/pkg/comb"
	"parsek.dev/pkg/diag"
	. "parsek.dev/pkg/span"
)

func isA(r rune) bool { return r == 'a' }

func TestTagRecordsConsumedRange(t *testing.T) {
	var sink Sink
	p := Tag(Text, comb.Satisfy(isA))
	r := p(comb.NewWithContext("abc", &sink))
	if !r.OK() || r.Value != 'a' || r.Next.Pos() != 1 {
		t.Fatalf("tagged parser changed behavior: (%q, %d, ok=%v)",
			r.Value, r.Next.Pos(), r.OK())
	}
	want := []Span{{Text, diag.Ranging{From: 0, To: 1}}}
	if !reflect.DeepEqual(sink.Spans(), want) {
		t.Errorf("sink = %v, want %v", sink.Spans(), want)
	}
}

func TestTagRecordsNothingOnFailure(t *testing.T) {
	var sink Sink
	p := Tag(Text, comb.Satisfy(isA))
	r := p(comb.NewWithContext("xbc", &sink))
	if r.OK() {
		t.Fatal("parse succeeded, want failure")
	}
	if sink.Len() != 0 {
		t.Errorf("sink has %d spans after a failed parse, want 0", sink.Len())
	}
}

func TestTagWithoutSinkIsInert(t *testing.T) {
	p := Tag(Text, comb.Satisfy(isA))
	if r := p(comb.New("abc")); !r.OK() || r.Next.Pos() != 1 {
		t.Errorf("tagged parser misbehaves without a sink")
	}
}

func TestNestedTagsAppendInnerFirst(t *testing.T) {
	var sink Sink
	inner := Tag(CodeInfo, comb.String("go"))
	outer := Tag(CodeFence, comb.Seq2(comb.String("```"), inner,
		func(fence, info string) string { return fence + info }))
	r := outer(comb.NewWithContext("```go\n", &sink))
	if !r.OK() || r.Value != "```go" {
		t.Fatalf("parse = (%q, ok=%v)", r.Value, r.OK())
	}
	want := []Span{
		{CodeInfo, diag.Ranging{From: 3, To: 5}},
		{CodeFence, diag.Ranging{From: 0, To: 5}},
	}
	if !reflect.DeepEqual(sink.Spans(), want) {
		t.Errorf("sink = %v, want inner span before outer", sink.Spans())
	}
}

func TestTagDoesNotAffectChoice(t *testing.T) {
	var sink Sink
	p := comb.Or(
		Tag(StrongMarker, comb.String("**")),
		Tag(EmphasisMarker, comb.String("*")),
	)
	r := p(comb.NewWithContext("*x*", &sink))
	if r.Value != "*" {
		t.Fatalf("choice picked %q, want %q", r.Value, "*")
	}
	want := []Span{{EmphasisMarker, diag.Ranging{From: 0, To: 1}}}
	if !reflect.DeepEqual(sink.Spans(), want) {
		t.Errorf("sink = %v, want only the successful alternative", sink.Spans())
	}
}

func TestTokenTypeNames(t *testing.T) {
	for i := 0; i < NumTokenTypes; i++ {
		typ := TokenType(i)
		name := typ.String()
		if name == "" {
			t.Errorf("TokenType(%d) has no name", i)
			continue
		}
		back, ok := TokenTypeByName(name)
		if !ok || back != typ {
			t.Errorf("TokenTypeByName(%q) = (%v, %v), want (%v, true)",
				name, back, ok, typ)
		}
	}
	if _, ok := TokenTypeByName("NoSuchToken"); ok {
		t.Errorf("TokenTypeByName accepted an unknown name")
	}
	if got := TokenType(200).String(); got != "TokenType(200)" {
		t.Errorf("String of out-of-range value = %q", got)
	}
}
