//////////////////////////////////////////////////////////////////////////////
//
// File media sink
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"io"
	"os"
)

// FileMediaSink writes codec output to a file, or to a pipe such as
// /dev/stdout.
type FileMediaSink struct {
	file    *os.File
	written int64
}

// NewFileMediaSink creates (or truncates) filename.
func NewFileMediaSink(filename string) (*FileMediaSink, error) {
	var f *os.File
	var err error
	if filename == "-" {
		f = os.Stdout
	} else if f, err = os.Create(filename); err != nil {
		return nil, err
	}
	return &FileMediaSink{file: f}, nil
}

// Close file sink
func (s *FileMediaSink) Close() error {
	log.Debug("Closing %s after %d bytes", s.file.Name(), s.written)
	if s.file == os.Stdout {
		return nil
	}
	return s.file.Close()
}

// Write buffer to file
func (s *FileMediaSink) Write(p []byte) (int, error) {
	n, err := s.file.Write(p)
	s.written += int64(n)
	return n, err
}

func init() {
	RegisterSinkType("file", func(path string) (io.WriteCloser, error) {
		return NewFileMediaSink(path)
	})
}
