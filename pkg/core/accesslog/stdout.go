//
//  Copyright © Manetu Inc. All rights reserved.
//

package accesslog

import (
	"encoding/json"
	"io"
	"os"
	"sync"
)

// AccessLogOptions configures the behavior of access log output.
type AccessLogOptions struct {
	// PrettyPrint enables indented multi-line JSON output.
	// When false (default), output is compact single-line JSON.
	PrettyPrint bool
}

// IoWriterFactory creates [Stream] instances that write to an [io.Writer].
type IoWriterFactory struct {
	writer  io.Writer
	options AccessLogOptions
}

// IoWriterStream writes access records as JSON to an [io.Writer], one record
// per line unless PrettyPrint is set.
//
// IoWriterStream is safe for concurrent use; each record is written with a
// single Write call under a mutex.
type IoWriterStream struct {
	mu      sync.Mutex
	writer  io.Writer
	options AccessLogOptions
}

// NewStdoutFactory creates a [Factory] that writes access records to stdout.
func NewStdoutFactory() Factory {
	return NewIoWriterFactory(os.Stdout)
}

// NewIoWriterFactory creates a [Factory] that writes access records to the
// specified [io.Writer].
func NewIoWriterFactory(w io.Writer) Factory {
	return NewIoWriterFactoryWithOptions(w, AccessLogOptions{})
}

// NewIoWriterFactoryWithOptions creates a [Factory] that writes access records to the
// specified [io.Writer] with the given options.
func NewIoWriterFactoryWithOptions(w io.Writer, opts AccessLogOptions) Factory {
	return &IoWriterFactory{
		writer:  w,
		options: opts,
	}
}

// NewStream creates a new [IoWriterStream] that writes to the configured writer.
func (f *IoWriterFactory) NewStream() (Stream, error) {
	return newStream(f.writer, f.options), nil
}

func newStream(w io.Writer, opts AccessLogOptions) Stream {
	return &IoWriterStream{
		writer:  w,
		options: opts,
	}
}

// Send marshals the access record to JSON and writes it to the configured writer.
//
// Write errors are ignored; the hub must not fail requests because of logging.
func (s *IoWriterStream) Send(record *AccessRecord) error {
	var (
		output []byte
		err    error
	)
	if s.options.PrettyPrint {
		output, err = json.MarshalIndent(record, "", "  ")
	} else {
		output, err = json.Marshal(record)
	}
	if err != nil {
		return err
	}
	output = append(output, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(output)
	return nil
}

// Close is a no-op for IoWriterStream.
//
// The underlying writer is not closed by this method; the caller is responsible
// for closing the writer if needed (except for stdout, which should not be closed).
func (s *IoWriterStream) Close() {}
