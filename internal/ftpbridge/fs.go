package ftpbridge

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"scangate/internal/fsutil"
)

// sessionFS is the per-session virtual filesystem ftpserverlib drives.
// It jails every device-supplied path under the user's staging
// subdirectory, reports each operation as session traffic, and emits a
// transfer-complete event when a file opened for writing is closed.
type sessionFS struct {
	root       string
	osfs       afero.Fs
	onTraffic  func()
	onComplete func(localPath, fileName string)
}

func newSessionFS(root string, onTraffic func(), onComplete func(localPath, fileName string)) *sessionFS {
	return &sessionFS{
		root:       root,
		osfs:       afero.NewOsFs(),
		onTraffic:  onTraffic,
		onComplete: onComplete,
	}
}

func (f *sessionFS) Create(name string) (afero.File, error) {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}
	file, err := f.osfs.Create(p)
	if err != nil {
		return nil, err
	}
	return &stagedFile{File: file, fs: f, local: p, name: path.Base(name), writing: true}, nil
}

func (f *sessionFS) Mkdir(name string, perm os.FileMode) error {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.osfs.Mkdir(p, perm)
}

func (f *sessionFS) MkdirAll(name string, perm os.FileMode) error {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.osfs.MkdirAll(p, perm)
}

func (f *sessionFS) Open(name string) (afero.File, error) {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	return f.osfs.Open(p)
}

func (f *sessionFS) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	if flag&os.O_CREATE != 0 {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, err
		}
	}
	file, err := f.osfs.OpenFile(p, flag, perm)
	if err != nil {
		return nil, err
	}
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		return &stagedFile{File: file, fs: f, local: p, name: path.Base(name), writing: true}, nil
	}
	return file, nil
}

func (f *sessionFS) Remove(name string) error {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.osfs.Remove(p)
}

func (f *sessionFS) RemoveAll(name string) error {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.osfs.RemoveAll(p)
}

func (f *sessionFS) Rename(oldname, newname string) error {
	f.onTraffic()
	oldp, err := f.local(oldname)
	if err != nil {
		return err
	}
	newp, err := f.local(newname)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newp), 0o700); err != nil {
		return err
	}
	return f.osfs.Rename(oldp, newp)
}

func (f *sessionFS) Stat(name string) (os.FileInfo, error) {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return nil, err
	}
	return f.osfs.Stat(p)
}

func (f *sessionFS) Name() string { return "stagingfs" }

func (f *sessionFS) Chmod(name string, mode os.FileMode) error {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.osfs.Chmod(p, mode)
}

func (f *sessionFS) Chown(name string, uid, gid int) error {
	return errors.New("chown not supported")
}

func (f *sessionFS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	f.onTraffic()
	p, err := f.local(name)
	if err != nil {
		return err
	}
	return f.osfs.Chtimes(p, atime, mtime)
}

func (f *sessionFS) local(name string) (string, error) {
	return fsutil.ResolveWithinRoot(f.root, name)
}

var _ afero.Fs = (*sessionFS)(nil)

// stagedFile wraps a file opened for writing. Closing it after at least
// one write marks the inbound transfer complete.
type stagedFile struct {
	afero.File
	fs      *sessionFS
	local   string
	name    string
	writing bool
	wrote   bool
	closed  bool
}

func (s *stagedFile) Write(p []byte) (int, error) {
	n, err := s.File.Write(p)
	if n > 0 {
		s.wrote = true
	}
	return n, err
}

func (s *stagedFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := s.File.WriteAt(p, off)
	if n > 0 {
		s.wrote = true
	}
	return n, err
}

func (s *stagedFile) WriteString(str string) (int, error) {
	n, err := s.File.WriteString(str)
	if n > 0 {
		s.wrote = true
	}
	return n, err
}

func (s *stagedFile) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.File.Close()
	if s.writing && s.wrote && err == nil {
		s.fs.onComplete(s.local, s.name)
	}
	return err
}
