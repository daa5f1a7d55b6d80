package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"parsek.dev/pkg/must"
)

// TempDir creates a unique temporary directory and returns its path, with
// symlinks resolved so that it is safe to compare against paths returned by
// other functions. The directory is removed when the test finishes.
func TempDir(c Cleanuper) string {
	dir := must.OK1(os.MkdirTemp("", ""))
	dir = must.OK1(filepath.EvalSymlinks(dir))
	c.Cleanup(func() {
		err := os.RemoveAll(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove temp dir %s: %v\n", dir, err)
		}
	})
	return dir
}

// Chdir changes into a directory, and restores the original working
// directory when the test finishes.
func Chdir(c Cleanuper, dir string) {
	oldWd := must.OK1(os.Getwd())
	must.OK(os.Chdir(dir))
	c.Cleanup(func() { must.OK(os.Chdir(oldWd)) })
}

// InTempDir is like TempDir, but also changes into the directory.
func InTempDir(c Cleanuper) string {
	dir := TempDir(c)
	Chdir(c, dir)
	return dir
}

// Dir describes the layout of a directory, for use in ApplyDir. The keys of
// the map are filenames. Each value can be a string (the content of a
// regular file), a File, or a nested Dir.
type Dir map[string]any

// File describes a file with custom permission bits.
type File struct {
	Perm    os.FileMode
	Content string
}

// ApplyDir creates the given filesystem layout in the current directory.
func ApplyDir(dir Dir) {
	applyDir(dir, "")
}

func applyDir(dir Dir, prefix string) {
	for name, file := range dir {
		path := filepath.Join(prefix, name)
		switch file := file.(type) {
		case string:
			must.OK(os.WriteFile(path, []byte(file), 0644))
		case File:
			must.OK(os.WriteFile(path, []byte(file.Content), file.Perm))
		case Dir:
			must.OK(os.MkdirAll(path, 0755))
			applyDir(file, path)
		default:
			panic(fmt.Sprintf("file is neither string, File nor Dir: %v", file))
		}
	}
}
