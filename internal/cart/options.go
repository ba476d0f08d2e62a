package cart

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type options struct {
	logger *zap.Logger
	origin string
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOrigin sets the view identity stamped on every write. Components of
// one view must share it so they ignore their own change notifications.
func WithOrigin(origin string) Option {
	return func(o *options) {
		if origin != "" {
			o.origin = origin
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		origin: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
