//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package accesslog provides a channel backed access log stream so tests can
// observe the records the hub emits.
package accesslog

import (
	"github.com/manetu/ocpihub/pkg/core/accesslog"
)

// ChannelFactory factory for ChannelStream
type ChannelFactory struct {
	ch chan *accesslog.AccessRecord
}

// ChannelStream implements the Stream interface by writing access records to a channel.
type ChannelStream struct {
	ch chan *accesslog.AccessRecord
}

// NewChannelLogger creates a new Factory for logging access records to a channel.
func NewChannelLogger(ch chan *accesslog.AccessRecord) accesslog.Factory {
	return &ChannelFactory{ch: ch}
}

// NewStream creates a new Stream to satisfy the Factory interface.
func (f *ChannelFactory) NewStream() (accesslog.Stream, error) {
	return &ChannelStream{ch: f.ch}, nil
}

// Send delivers a copy of the record to the channel.
func (s *ChannelStream) Send(m *accesslog.AccessRecord) error {
	c := *m
	s.ch <- &c

	return nil
}

// Close finalizes the access log by closing the underlying channel.
func (s *ChannelStream) Close() {
	if s.ch != nil {
		close(s.ch)
	}
}
