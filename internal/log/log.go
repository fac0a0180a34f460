// Package log provides the log file sink used by the binary. The file is
// reopened on SIGHUP so it can be rotated underneath a running process:
//
//	mv app.log app.log.1 && kill -HUP <pid>
package log

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// File is an io.Writer over a log file that can be reopened in place.
type File struct {
	mu   sync.Mutex
	path string
	fh   *os.File
	sigs chan os.Signal
	done chan struct{}
}

var _ io.WriteCloser = (*File)(nil)

func Open(path string) (*File, error) {
	fh, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &File{path: path, fh: fh}, nil
}

func openAppend(path string) (*os.File, error) {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return fh, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fh == nil {
		return 0, os.ErrClosed
	}
	return f.fh.Write(p)
}

// Reopen closes the current handle and opens path again. If the new open
// fails the old handle is kept.
func (f *File) Reopen() error {
	fh, err := openAppend(f.path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	old := f.fh
	if old == nil {
		f.mu.Unlock()
		_ = fh.Close()
		return os.ErrClosed
	}
	f.fh = fh
	f.mu.Unlock()
	return old.Close()
}

// WatchSIGHUP reopens the file on every SIGHUP until Close.
func (f *File) WatchSIGHUP() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sigs != nil {
		return
	}
	f.sigs = make(chan os.Signal, 1)
	f.done = make(chan struct{})
	signal.Notify(f.sigs, syscall.SIGHUP)
	go func(sigs <-chan os.Signal, done <-chan struct{}) {
		for {
			select {
			case <-sigs:
				if err := f.Reopen(); err != nil {
					fmt.Fprintf(os.Stderr, "could not reopen log file: %v\n", err)
				}
			case <-done:
				return
			}
		}
	}(f.sigs, f.done)
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sigs != nil {
		signal.Stop(f.sigs)
		close(f.done)
		f.sigs = nil
	}
	if f.fh == nil {
		return nil
	}
	err := f.fh.Close()
	f.fh = nil
	return err
}
