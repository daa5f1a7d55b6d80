package refstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"parsek.dev/pkg/logutil"
	"parsek.dev/pkg/md"
	"parsek.dev/pkg/prog"
)

var logger = logutil.GetLogger("[refstore] ")

// Program is the reference database subprogram.
type Program struct {
	indexDir    string
	lookupLabel string
	listLabels  bool
	dbPath      *string
}

func (p *Program) RegisterFlags(fs *prog.FlagSet) {
	fs.StringVar(&p.indexDir, "index", "",
		"Index link reference definitions from .md files under the given directory")
	fs.StringVar(&p.lookupLabel, "lookup", "",
		"Print the definition stored for the given label")
	fs.BoolVar(&p.listLabels, "labels", false,
		"List all labels in the reference database")
	p.dbPath = fs.StorePath()
}

func (p *Program) Run(fds [3]*os.File, args []string) error {
	if p.indexDir == "" && p.lookupLabel == "" && !p.listLabels {
		return prog.ErrNextProgram
	}
	if len(args) > 0 {
		return prog.BadUsage("arguments are not allowed with -index, -lookup or -labels")
	}
	if *p.dbPath == "" {
		return prog.BadUsage("-db is required with -index, -lookup or -labels")
	}
	st, err := NewStore(*p.dbPath)
	if err != nil {
		return fmt.Errorf("cannot open %s: %v", *p.dbPath, err)
	}
	defer st.Close()

	if p.indexDir != "" {
		defs, files, err := indexDir(st, p.indexDir, fds[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(fds[1], "indexed %d definitions from %d files\n", defs, files)
	}
	if p.lookupLabel != "" {
		def, err := st.Lookup(p.lookupLabel)
		if err == ErrNoDef {
			fmt.Fprintf(fds[2], "no definition for label %q\n", p.lookupLabel)
			return prog.Exit(1)
		} else if err != nil {
			return err
		}
		fmt.Fprintln(fds[1], formatDef(md.NormalizeLabel(p.lookupLabel), def))
	}
	if p.listLabels {
		labels, err := st.Labels()
		if err != nil {
			return err
		}
		for _, label := range labels {
			fmt.Fprintln(fds[1], label)
		}
	}
	return nil
}

// indexDir parses every .md file under dir and stores the definitions found.
// Files that cannot be read produce a warning on stderr and are skipped.
func indexDir(st Store, dir string, stderr *os.File) (defs, files int, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			fmt.Fprintf(stderr, "warning: skip %s: %v\n", path, err)
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "warning: skip %s: %v\n", path, err)
			return nil
		}
		doc := md.Parse(string(content))
		if err := st.IndexDocument(path, doc); err != nil {
			return err
		}
		logger.Printf("indexed %s: %d definitions", path, len(doc.Refs))
		defs += len(doc.Refs)
		files++
		return nil
	})
	return defs, files, err
}

// formatDef renders a definition the way it would be written in a document.
func formatDef(label string, def Def) string {
	s := fmt.Sprintf("[%s]: %s", label, def.Dest)
	if def.Title != "" {
		s += fmt.Sprintf(" %q", def.Title)
	}
	return s
}
