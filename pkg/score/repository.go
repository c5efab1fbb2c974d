package score

import (
	"context"
	"fmt"
)

type (
	// Store looks up the latest model score of an IPv4 address, keyed by the
	// address' 32 bit integer form. Implementations are safe for concurrent use.
	Store interface {
		Score(ctx context.Context, key uint32) (float64, bool, error)
		Close() error
	}

	// Loader replaces the full contents of a score store
	Loader interface {
		Replace(ctx context.Context, entries []Entry) error
	}

	// Pinger is implemented by stores backed by a remote server
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Entry is a single scored address
	Entry struct {
		Key   uint32
		Score float64
	}
)

// ErrUnsupportedBackend is returned for unknown score store backends
type ErrUnsupportedBackend string

func (e ErrUnsupportedBackend) Error() string {
	return fmt.Sprintf("unsupported score store backend %q", string(e))
}
