package codec_test

import (
	"io"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// failingFS hands out files whose writes always fail
type failingFS struct {
	billy.Filesystem
}

func (f *failingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	file, err := f.Filesystem.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &failingFile{File: file}, nil
}

type failingFile struct {
	billy.File
}

func (f *failingFile) Write(_ []byte) (int, error) {
	return 0, io.ErrClosedPipe
}

// blockingFS hands out files whose writes wait until release is closed
type blockingFS struct {
	billy.Filesystem
	release chan struct{}
}

func (b *blockingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	file, err := b.Filesystem.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &blockingFile{File: file, release: b.release}, nil
}

type blockingFile struct {
	billy.File
	release chan struct{}
}

func (b *blockingFile) Write(p []byte) (int, error) {
	<-b.release
	return b.File.Write(p)
}
