package hitmerge

import (
	"runtime"

	"github.com/hupe1980/hitmerge/codec"
	"github.com/hupe1980/hitmerge/hit"
)

const (
	// DefaultPoolSize is the default node pool capacity per node.
	DefaultPoolSize = 1000

	// DefaultMessageLimit is the default soft byte limit per wire message.
	DefaultMessageLimit = codec.DefaultMessageLimit
)

type options struct {
	logger           *Logger
	metrics          MetricsCollector
	messageLimit     int
	compression      codec.Compression
	mergeKey         hit.MergeKey
	sendRateBytes    int
	validateOnInsert bool
	scanConcurrency  int
}

func defaultOptions() options {
	return options{
		logger:          NoopLogger(),
		metrics:         NoopMetrics{},
		messageLimit:    DefaultMessageLimit,
		compression:     codec.CompressionNone,
		mergeKey:        hit.KeyObjectID,
		scanConcurrency: runtime.GOMAXPROCS(0),
	}
}

// Option configures a WorkerNode or MasterNode.
type Option func(*options)

// WithLogger sets the logger. nil restores the silent default.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. nil restores the no-op default.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetrics{}
		}
		o.metrics = m
	}
}

// WithMessageLimit sets the soft byte limit per wire message. A message may
// exceed the limit by at most one record's encoded size minus one byte.
func WithMessageLimit(limit int) Option {
	return func(o *options) {
		o.messageLimit = limit
	}
}

// WithCompression selects the wire payload compression. Both sides decode
// whatever a frame declares, so this only needs to match operationally, not
// structurally.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMergeKey selects the key hits are ordered by in transport heaps and in
// the master's final walk. The structural merge is generic over the key; the
// default follows the positional (object ID) merge.
func WithMergeKey(k hit.MergeKey) Option {
	return func(o *options) {
		o.mergeKey = k
	}
}

// WithSendRateLimit caps worker send throughput in bytes per second.
// Zero means unlimited.
func WithSendRateLimit(bytesPerSec int) Option {
	return func(o *options) {
		o.sendRateBytes = bytesPerSec
	}
}

// WithValidateOnInsert enables the full structural walk after every chunk
// insert. Linear cost per insert; tests and diagnostics only.
func WithValidateOnInsert(v bool) Option {
	return func(o *options) {
		o.validateOnInsert = v
	}
}

// WithScanConcurrency bounds the number of concurrently scanned regions in
// RunRegions. Defaults to GOMAXPROCS.
func WithScanConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.scanConcurrency = n
		}
	}
}
