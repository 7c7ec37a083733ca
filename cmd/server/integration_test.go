package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/countwatch/countwatch/pkg/collector"
	"github.com/countwatch/countwatch/pkg/mockapi"
	"github.com/countwatch/countwatch/pkg/observe"
	"github.com/countwatch/countwatch/pkg/queue"
	"github.com/countwatch/countwatch/pkg/recorder"
	"github.com/countwatch/countwatch/pkg/sampler"
	"github.com/countwatch/countwatch/pkg/schedule"
	badgerstore "github.com/countwatch/countwatch/pkg/storage/badger"
)

// Full pipeline against the real mock API and a real badger store:
// schedule expansion -> queue -> collector -> idempotent record.
func TestPipeline_EndToEnd(t *testing.T) {
	api := httptest.NewServer(mockapi.NewRouter())
	defer api.Close()

	store, err := badgerstore.New(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	metrics := observe.NewForTest()
	coll := collector.New(
		sampler.New(api.URL, 5*time.Second),
		recorder.New(store),
		collector.Config{FetchTimeout: 5 * time.Second, StoreTimeout: 5 * time.Second},
		metrics,
		nil,
	)

	q := queue.New(64)
	consumer := queue.NewConsumer(q, coll.ProcessBatch, queue.ConsumerConfig{
		BatchSize:       10,
		MaxReceive:      3,
		RedeliveryDelay: 50 * time.Millisecond,
		PollInterval:    10 * time.Millisecond,
	}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	// Minute 4 so the mock counter yields a non-zero count (4 % 11).
	ref := time.Date(2025, 1, 1, 0, 4, 0, 0, time.UTC)
	plan := schedule.GenerateDelayedMessages(ref, 5, 12)
	entry := plan[3]
	require.Equal(t, 15, entry.DelaySeconds)

	body, err := json.Marshal(entry.Window)
	require.NoError(t, err)

	// Deliver immediately; the schedule delay is transport metadata, not
	// part of the message.
	_, err = q.Submit(body, 0)
	require.NoError(t, err)

	slotTime := time.Date(2025, 1, 1, 0, 4, 15, 0, time.UTC)
	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), recorder.MetricName, slotTime)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "record was not committed")

	rec, err := store.Get(context.Background(), recorder.MetricName, slotTime)
	require.NoError(t, err)
	require.Equal(t, int64(4), rec.Count)

	// Simulate redelivery of the same window: the duplicate is suppressed
	// and the stored count is untouched.
	_, err = q.Submit(body, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.Len() == 0
	}, 5*time.Second, 20*time.Millisecond, "duplicate was not consumed")

	rec, err = store.Get(context.Background(), recorder.MetricName, slotTime)
	require.NoError(t, err)
	require.Equal(t, int64(4), rec.Count)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.TotalRecords)
}
