package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

const flushInterval = 30 * time.Second

// Metrics buffers counters and timings and flushes them to CloudWatch.
// All recording methods are safe for concurrent use and never block the
// request path on the CloudWatch API.
type Metrics struct {
	client    *cloudwatch.Client
	namespace string
	logger    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum

	done chan struct{}
	once sync.Once
}

// NewMetrics creates a metrics recorder flushing into the given namespace.
// A nil client yields a recorder that only logs, which is what local
// development and tests use.
func NewMetrics(client *cloudwatch.Client, namespace string, logger *zap.Logger) *Metrics {
	m := &Metrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		done:      make(chan struct{}),
	}
	if client != nil {
		go m.flushLoop()
	}
	return m
}

// IncrementCounter records a count of one for the named metric.
func (m *Metrics) IncrementCounter(name string, dimensions map[string]string) {
	m.record(types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: toDimensions(dimensions),
	})
}

// RecordDuration records an operation latency in milliseconds.
func (m *Metrics) RecordDuration(name string, d time.Duration, dimensions map[string]string) {
	m.record(types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       types.StandardUnitMilliseconds,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: toDimensions(dimensions),
	})
}

// Close flushes remaining data and stops the background loop.
func (m *Metrics) Close() {
	m.once.Do(func() {
		close(m.done)
		m.flush(context.Background())
	})
}

func (m *Metrics) record(datum types.MetricDatum) {
	if m.client == nil {
		m.logger.Debug("metric", zap.String("name", aws.ToString(datum.MetricName)), zap.Float64("value", aws.ToFloat64(datum.Value)))
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, datum)
	m.mu.Unlock()
}

func (m *Metrics) flushLoop() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.flush(context.Background())
		case <-m.done:
			return
		}
	}
}

func (m *Metrics) flush(ctx context.Context) {
	if m.client == nil {
		return
	}
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	// PutMetricData accepts at most 1000 datums per call
	for len(batch) > 0 {
		n := len(batch)
		if n > 1000 {
			n = 1000
		}
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: batch[:n],
		})
		if err != nil {
			m.logger.Warn("failed to flush metrics", zap.Error(err), zap.Int("dropped", n))
		}
		batch = batch[n:]
	}
}

func toDimensions(dims map[string]string) []types.Dimension {
	if len(dims) == 0 {
		return nil
	}
	out := make([]types.Dimension, 0, len(dims))
	for k, v := range dims {
		out = append(out, types.Dimension{Name: aws.String(k), Value: aws.String(v)})
	}
	return out
}
