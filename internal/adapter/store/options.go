package store

// Option configures the remote backends.
type Option func(*options)

type options struct {
	prefix string
}

// WithCollectionPrefix namespaces the physical collections, e.g. per test run.
func WithCollectionPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) physical(collection string) string {
	if o.prefix == "" {
		return collection
	}
	return o.prefix + "_" + collection
}
