package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/interceptor"

	"github.com/martinpickett/Plex-Tools/pkg/source"
)

// FactoryOption configures the RecorderFactory.
type FactoryOption func(*RecorderFactory) error

// RecorderFactory creates a Recorder for each PeerConnection and keeps them
// so their recordings can be read by interceptor ID.
type RecorderFactory struct {
	idleTimeout time.Duration
	onStreamEnd func(ssrc uint32, log *source.FrameLog)

	mu        sync.Mutex
	recorders map[string]*Recorder
}

// WithFactoryIdleTimeout sets the idle timeout of created recorders.
// Default: DefaultIdleTimeout
func WithFactoryIdleTimeout(d time.Duration) FactoryOption {
	return func(f *RecorderFactory) error {
		if d < 0 {
			return errors.New("idle timeout must not be negative")
		}
		f.idleTimeout = d
		return nil
	}
}

// WithFactoryOnStreamEnd sets the stream-end callback of created recorders.
func WithFactoryOnStreamEnd(fn func(ssrc uint32, log *source.FrameLog)) FactoryOption {
	return func(f *RecorderFactory) error {
		f.onStreamEnd = fn
		return nil
	}
}

// NewRecorderFactory creates a new factory for Recorder instances.
func NewRecorderFactory(opts ...FactoryOption) (*RecorderFactory, error) {
	f := &RecorderFactory{
		idleTimeout: DefaultIdleTimeout,
		recorders:   make(map[string]*Recorder),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewInterceptor creates a new Recorder for a PeerConnection.
// This method is called by the interceptor registry when setting up a connection.
func (f *RecorderFactory) NewInterceptor(id string) (interceptor.Interceptor, error) {
	opts := []RecorderOption{WithIdleTimeout(f.idleTimeout)}
	if f.onStreamEnd != nil {
		opts = append(opts, WithOnStreamEnd(f.onStreamEnd))
	}
	r := NewRecorder(opts...)

	f.mu.Lock()
	f.recorders[id] = r
	f.mu.Unlock()
	return r, nil
}

// Recorder returns the recorder created for the interceptor ID.
func (f *RecorderFactory) Recorder(id string) (*Recorder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recorders[id]
	return r, ok
}
