package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventedge/pkg/model"
)

func TestRedisCache_BarsMissThenHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &fakeProvider{name: "inner", available: true, bars: testBars()}
	c := NewRedisCache(inner, db, time.Hour, zerolog.Nop())
	ctx := context.Background()

	key := "eventedge:bars:AAPL:1998-01-01"
	payload, err := json.Marshal(testBars())
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, time.Hour).SetVal("OK")

	bars, err := c.GetDailyBars(ctx, "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Equal(t, testBars(), bars)
	assert.Equal(t, 1, inner.barCalls)

	mock.ExpectGet(key).SetVal(string(payload))
	bars, err = c.GetDailyBars(ctx, "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Equal(t, testBars(), bars)
	assert.Equal(t, 1, inner.barCalls, "second call should be served by redis")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_AnchorsKeyedByKind(t *testing.T) {
	db, mock := redismock.NewClientMock()
	dates := []time.Time{day("2020-02-03"), day("2020-05-04")}
	inner := &fakeProvider{name: "inner", available: true, anchors: dates}
	c := NewRedisCache(inner, db, 0, zerolog.Nop())

	payload, err := json.Marshal(dates)
	require.NoError(t, err)

	mock.ExpectGet("eventedge:anchors:KO:dividend").RedisNil()
	mock.ExpectSet("eventedge:anchors:KO:dividend", payload, DefaultCacheTTL).SetVal("OK")

	got, err := c.GetAnchors(context.Background(), "KO", model.EventDividend)
	require.NoError(t, err)
	assert.Equal(t, dates, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_RedisDownFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &fakeProvider{name: "inner", available: true, bars: testBars()}
	c := NewRedisCache(inner, db, time.Hour, zerolog.Nop())

	// no Set is expected after a failed read
	mock.ExpectGet("eventedge:bars:AAPL:1998-01-01").SetErr(errors.New("connection refused"))

	bars, err := c.GetDailyBars(context.Background(), "AAPL", HistoryStart)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_CorruptEntryRefetched(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &fakeProvider{name: "inner", available: true, anchors: []time.Time{day("2020-02-03")}}
	c := NewRedisCache(inner, db, time.Hour, zerolog.Nop())

	key := "eventedge:anchors:AAPL:earnings"
	payload, err := json.Marshal(inner.anchors)
	require.NoError(t, err)

	mock.ExpectGet(key).SetVal("{not json")
	mock.ExpectSet(key, payload, time.Hour).SetVal("OK")

	got, err := c.GetAnchors(context.Background(), "AAPL", model.EventEarnings)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, inner.anchorCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_InnerErrorNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &fakeProvider{name: "inner", available: true, barsErr: errors.New("boom")}
	c := NewRedisCache(inner, db, time.Hour, zerolog.Nop())

	mock.ExpectGet("eventedge:bars:AAPL:1998-01-01").RedisNil()

	_, err := c.GetDailyBars(context.Background(), "AAPL", HistoryStart)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
