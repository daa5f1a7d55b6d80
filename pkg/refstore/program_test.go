package refstore_test

import (
	"testing"

	. "parsek.dev/pkg/prog/progtest"
	"parsek.dev/pkg/refstore"
	"parsek.dev/pkg/testutil"
)

func TestProgram(t *testing.T) {
	testutil.InTempDir(t)
	testutil.ApplyDir(testutil.Dir{
		"docs": testutil.Dir{
			"a.md":      "[spec]: https://spec.commonmark.org \"CommonMark\"\n",
			"b.md":      "[home]: /index.html\n\nsome text\n",
			"notes.txt": "[skipped]: /not-markdown\n",
		},
	})

	Test(t, &refstore.Program{},
		ThatParsek("-index", "docs", "-db", "refs.db").
			WritesStdout("indexed 2 definitions from 2 files\n"),
		ThatParsek("-labels", "-db", "refs.db").
			WritesStdout("home\nspec\n"),
		ThatParsek("-lookup", "SPEC", "-db", "refs.db").
			WritesStdout("[spec]: https://spec.commonmark.org \"CommonMark\"\n"),
		ThatParsek("-lookup", "nope", "-db", "refs.db").
			WritesStderrContaining("no definition for label").
			ExitsWith(1),
		ThatParsek("-index", "nosuchdir", "-db", "refs.db").
			WritesStderrContaining("nosuchdir").
			ExitsWith(2),
		ThatParsek("-labels").
			WritesStderrContaining("-db is required").
			ExitsWith(2),
		ThatParsek("-labels", "-db", "refs.db", "extra").
			WritesStderrContaining("arguments are not allowed").
			ExitsWith(2),
	)
}

func TestProgram_DefersToNextProgram(t *testing.T) {
	testutil.InTempDir(t)

	// Without -index, -lookup or -labels the subprogram does not run.
	Test(t, &refstore.Program{},
		ThatParsek("-db", "refs.db").
			WritesStderrContaining("internal error: no suitable subprogram").
			ExitsWith(2),
	)
}
