package app

import (
	"net/url"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileLoader fetches the contents of a file referenced by URL, such as a key
// list or blocklist.
type FileLoader interface {
	Load(u *url.URL) ([]byte, error)
}

// FileLoaderCtor constructs a FileLoader on demand.
type FileLoaderCtor func() (FileLoader, error)

var loaders sync.Map // scheme -> FileLoaderCtor

func init() {
	local := func() (FileLoader, error) { return LocalLoader{}, nil }
	RegisterFileLoaderCtor("", local)
	RegisterFileLoaderCtor("file", local)
}

// RegisterFileLoaderCtor makes ctor responsible for URLs with the given
// scheme. It panics if the scheme is already taken.
func RegisterFileLoaderCtor(scheme string, ctor FileLoaderCtor) {
	if _, loaded := loaders.LoadOrStore(scheme, ctor); loaded {
		panic("app: file loader already registered for scheme " + scheme)
	}
}

// LoadFile resolves fileURL's scheme to a registered loader and reads the
// file. Plain paths are read from the local filesystem.
func LoadFile(fileURL string) ([]byte, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileURL)
	}

	v, ok := loaders.Load(u.Scheme)
	if !ok {
		return nil, errors.Errorf("no file loader for scheme %q", u.Scheme)
	}

	loader, err := v.(FileLoaderCtor)()
	if err != nil {
		return nil, errors.Wrapf(err, "error creating loader for %s", fileURL)
	}
	return loader.Load(u)
}

// LocalLoader reads from the local filesystem. Both bare paths and file://
// URLs are accepted.
type LocalLoader struct{}

func (LocalLoader) Load(u *url.URL) ([]byte, error) {
	var path string
	switch {
	case u.Opaque != "":
		path = u.Opaque
	case u.Scheme == "file" && u.Host != "":
		path = u.Host + u.Path
	default:
		path = u.Path
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	return data, nil
}
