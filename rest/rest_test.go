package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
	"gaplessohlcv/httpx"
	"gaplessohlcv/marketerrs"
)

func klineJSON(openTimeMS int64) []interface{} {
	return []interface{}{
		openTimeMS, "42000.10", "42100.00", "41950.50", "42050.25", "123.456789",
		openTimeMS + 3_599_999, "5190000.00", 321, "60.0", "2500000.00", "0",
	}
}

func TestFetchRange_SingleChunkOrdering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vals, _ := url.ParseQuery(r.URL.RawQuery)
		start := vals.Get("startTime")
		require.NotEmpty(t, start)
		rows := []interface{}{
			klineJSON(1_704_067_200_000),
			klineJSON(1_704_070_800_000),
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	c := New(httpx.New(5*time.Second, 3), srv.URL, srv.URL, 1000, 1500)
	out, err := c.FetchRange(context.Background(), "BTCUSDT", bars.TF1h, bars.InstrumentSpot,
		1_704_067_200_000_000, 1_704_074_400_000_000)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Less(t, out[0].TimestampUS, out[1].TimestampUS)
}

func TestFetchRange_ChunksAtConfiguredLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		vals, _ := url.ParseQuery(r.URL.RawQuery)
		require.Equal(t, "2", vals.Get("limit"))
		json.NewEncoder(w).Encode([]interface{}{})
	}))
	defer srv.Close()

	c := New(httpx.New(5*time.Second, 3), srv.URL, srv.URL, 2, 1500)
	hour := int64(time.Hour / time.Microsecond)
	_, err := c.FetchRange(context.Background(), "BTCUSDT", bars.TF1h, bars.InstrumentSpot, 0, 5*hour)
	require.NoError(t, err)
	// 5 hourly bars at chunk size 2 => 3 chunk requests (2,2,1).
	require.Equal(t, 3, calls)
}

func TestFetchRange_TerminalStatusIsSourceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(httpx.New(5*time.Second, 3), srv.URL, srv.URL, 1000, 1500)
	_, err := c.FetchRange(context.Background(), "BTCUSDT", bars.TF1h, bars.InstrumentSpot, 0, int64(time.Hour/time.Microsecond))
	require.Error(t, err)
	var rejected *marketerrs.SourceRejectedError
	require.ErrorAs(t, err, &rejected)
	fmt.Sprint(err) // ensure Error() doesn't panic
}
