package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanluwen/dataRetrieval/internal/adapter/nwis"
	"github.com/wanluwen/dataRetrieval/internal/observability"
	"github.com/wanluwen/dataRetrieval/internal/pipeline"
	"github.com/wanluwen/dataRetrieval/internal/waterml"
)

// --- mocks ---

type mockFetcher struct {
	mu      sync.Mutex
	calls   int
	payload []byte
	err     error
}

func (m *mockFetcher) Fetch(_ context.Context, q nwis.Query) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, "", m.err
	}
	return m.payload, fmt.Sprintf("https://example.test/nwis?sites=%s", q.Sites[0]), nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockSink struct {
	mu     sync.Mutex
	loaded []*waterml.Result
	err    error
}

func (m *mockSink) Load(_ context.Context, res *waterml.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, res)
	return nil
}

func (m *mockSink) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

const seriesDoc = `<?xml version="1.0" encoding="UTF-8"?>
<ns1:timeSeriesResponse xmlns:ns1="http://www.cuahsi.org/waterML/1.1/">
  <ns1:queryInfo>
    <ns1:note title="requestDT">2024-05-01T00:00:00Z</ns1:note>
  </ns1:queryInfo>
  <ns1:timeSeries name="USGS:01491000:00060:00003">
    <ns1:sourceInfo>
      <ns1:siteName>Choptank River</ns1:siteName>
      <ns1:siteCode agencyCode="USGS">01491000</ns1:siteCode>
      <ns1:timeZoneInfo>
        <ns1:defaultTimeZone zoneAbbreviation="EST"/>
      </ns1:timeZoneInfo>
      <ns1:geoLocation>
        <ns1:geogLocation srs="EPSG:4326">
          <ns1:latitude>38.99719444</ns1:latitude>
          <ns1:longitude>-75.78581667</ns1:longitude>
        </ns1:geogLocation>
      </ns1:geoLocation>
    </ns1:sourceInfo>
    <ns1:variable>
      <ns1:variableCode>00060</ns1:variableCode>
      <ns1:variableName>Streamflow</ns1:variableName>
      <ns1:unit><ns1:unitCode>ft3/s</ns1:unitCode></ns1:unit>
      <ns1:options>
        <ns1:option name="Statistic" optionCode="00003">Mean</ns1:option>
      </ns1:options>
      <ns1:noDataValue>-999999</ns1:noDataValue>
    </ns1:variable>
    <ns1:values>
      <ns1:value dateTime="2024-05-01T00:00:00" qualifiers="P">42.5</ns1:value>
    </ns1:values>
  </ns1:timeSeries>
</ns1:timeSeriesResponse>`

func testQueries() []nwis.Query {
	return []nwis.Query{{
		Service: "dv",
		Sites:   []string{"01491000"},
	}}
}

func newPipeline(f pipeline.Fetcher, sinks ...pipeline.Sink) *pipeline.Pipeline {
	return pipeline.New(f, sinks, testQueries(), waterml.Options{},
		0, slog.Default(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestPipeline_Run_OneShot(t *testing.T) {
	fetcher := &mockFetcher{payload: []byte(seriesDoc)}
	sink := &mockSink{}

	p := newPipeline(fetcher, sink)

	err := p.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, fetcher.callCount())
	require.Equal(t, 1, sink.loadCount())

	res := sink.loaded[0]
	assert.Equal(t, 1, res.SeriesCount)
	assert.Equal(t, 1, res.Table.Len())
	assert.Contains(t, res.Source, "sites=01491000")

	assert.NoError(t, p.CheckReadiness(context.Background()))
	at, ok := p.LastLoad()
	require.True(t, ok)
	assert.False(t, at.IsZero())
}

func TestPipeline_Run_OneShot_FetchError(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("upstream down")}
	sink := &mockSink{}

	p := newPipeline(fetcher, sink)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "upstream down")
	assert.Zero(t, sink.loadCount())
	assert.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.LastLoad()
	assert.False(t, ok)
}

func TestPipeline_Run_OneShot_SinkError(t *testing.T) {
	fetcher := &mockFetcher{payload: []byte(seriesDoc)}
	sink := &mockSink{err: errors.New("disk full")}

	p := newPipeline(fetcher, sink)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
}

func TestPipeline_Run_OneShot_MalformedDocument(t *testing.T) {
	fetcher := &mockFetcher{payload: []byte("not xml {{{")}
	sink := &mockSink{}

	p := newPipeline(fetcher, sink)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, sink.loadCount())
}

func TestPipeline_Run_Polling(t *testing.T) {
	fetcher := &mockFetcher{payload: []byte(seriesDoc)}
	sink := &mockSink{}

	p := pipeline.New(fetcher, []pipeline.Sink{sink}, testQueries(), waterml.Options{},
		time.Minute, slog.Default(), observability.NewMetricsForTesting())

	clock := clockwork.NewFakeClock()
	p.SetClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First cycle runs immediately, before any tick.
	require.Eventually(t, func() bool { return sink.loadCount() == 1 },
		time.Second, 5*time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return sink.loadCount() == 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestPipeline_Run_Polling_ContinuesAfterFailedCycle(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("upstream down")}
	sink := &mockSink{}

	p := pipeline.New(fetcher, []pipeline.Sink{sink}, testQueries(), waterml.Options{},
		time.Minute, slog.Default(), observability.NewMetricsForTesting())

	clock := clockwork.NewFakeClock()
	p.SetClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return fetcher.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return fetcher.callCount() == 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestPipeline_Run_MultipleSinks(t *testing.T) {
	fetcher := &mockFetcher{payload: []byte(seriesDoc)}
	first := &mockSink{}
	second := &mockSink{}

	p := newPipeline(fetcher, first, second)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 1, first.loadCount())
	assert.Equal(t, 1, second.loadCount())
}
