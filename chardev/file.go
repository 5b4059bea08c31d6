// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package chardev

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Node is any of the adapters. Adapters that are read-only or write-only only implement one
// of the two interfaces.
type Node interface{}

// File is an open handle on a node.
type File struct {
	node Node
	mu   sync.Mutex
	off  int64
}

// Open returns a File reading from offset 0.
func Open(node Node) *File {
	return &File{node: node}
}

// Read reads at the current offset and advances it.
func (f *File) Read(p []byte) (int, error) {
	r, ok := f.node.(io.ReaderAt)
	if !ok {
		return 0, errors.New("chardev: node is not readable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := r.ReadAt(p, f.off)
	f.off += int64(n)
	return n, err
}

// Write writes p to the node.
func (f *File) Write(p []byte) (int, error) {
	w, ok := f.node.(io.Writer)
	if !ok {
		return 0, errors.New("chardev: node is not writable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return w.Write(p)
}

// Close resets the offset.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.off = 0
	return nil
}
