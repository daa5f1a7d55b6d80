package prog

import "flag"

// FlagSet wraps a [flag.FlagSet], and provides methods for registering flags
// shared by multiple subprograms. Shared flags are only registered once.
type FlagSet struct {
	*flag.FlagSet
	storePath *string
	json      *bool
}

// StorePath returns a pointer to the value of the shared -db flag, the path
// to the link reference database.
func (fs *FlagSet) StorePath() *string {
	if fs.storePath == nil {
		var path string
		fs.StringVar(&path, "db", "",
			"Path to the link reference database")
		fs.storePath = &path
	}
	return fs.storePath
}

// JSON returns a pointer to the value of the shared -json flag.
func (fs *FlagSet) JSON() *bool {
	if fs.json == nil {
		var json bool
		fs.BoolVar(&json, "json", false,
			"Show the output from -buildinfo or -version in JSON")
		fs.json = &json
	}
	return fs.json
}
