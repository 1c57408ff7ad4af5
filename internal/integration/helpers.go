//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	testRDB      *redis.Client
	testAsynqRDB *redis.Client
)

// resetTestData flushes both Redis databases.
func resetTestData(t *testing.T) {
	t.Helper()

	for _, rdb := range []*redis.Client{testRDB, testAsynqRDB} {
		if err := rdb.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("failed to flush redis: %v", err)
		}
	}
}

// testContext returns a context with a 30-second deadline tied to the test's cleanup.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// countingServer serves body with status and counts the requests it received.
func countingServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func fixerBody(ts int64, usd, gbp float64) string {
	return fmt.Sprintf(`{"success":true,"timestamp":%d,"base":"EUR","date":"2024-01-05","rates":{"USD":%v,"GBP":%v}}`, ts, usd, gbp)
}

func ecbBody(usd float64) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<Cube>
		<Cube time='2024-01-05'>
			<Cube currency='USD' rate='%v'/>
		</Cube>
	</Cube>
</gesmes:Envelope>`, usd)
}
