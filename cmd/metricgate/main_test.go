package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCurlHostForListenAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		listenAddr string
		want       string
	}{
		{name: "port only", listenAddr: ":8080", want: "localhost:8080"},
		{name: "ipv4 host and port", listenAddr: "127.0.0.1:8080", want: "127.0.0.1:8080"},
		{name: "wildcard ipv4", listenAddr: "0.0.0.0:8080", want: "localhost:8080"},
		{name: "wildcard ipv6", listenAddr: "[::]:8080", want: "localhost:8080"},
		{name: "ipv6 loopback", listenAddr: "[::1]:8080", want: "[::1]:8080"},
		{name: "trim host and port", listenAddr: " localhost:9090 ", want: "localhost:9090"},
		{name: "empty falls back", listenAddr: "", want: "localhost:8080"},
		{name: "whitespace falls back", listenAddr: "   ", want: "localhost:8080"},
		{name: "malformed passes through", listenAddr: "localhost", want: "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, curlHostForListenAddr(tt.listenAddr))
		})
	}
}

func TestCheckCatalog(t *testing.T) {
	out, err := run(t, "", "check-catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "revenue:v1")
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "ok: 3 definition(s)")
}

func TestCheckCatalog_Problems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [unclosed"), 0o600))

	out, err := run(t, "", "check-catalog", "--catalog-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "problem(s)")
	assert.Contains(t, out, "bad.yaml")
}

func TestExplain(t *testing.T) {
	out, err := run(t, `{"metric":"orders_count","time_range":"last_week"}`, "explain", "--sql")
	require.NoError(t, err)

	var resp struct {
		Plan struct {
			MetricName string `json:"metric_name"`
			FactTable  string `json:"fact_table"`
		} `json:"plan"`
		CacheKey string `json:"cache_key"`
		SQL      string `json:"sql"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "orders_count", resp.Plan.MetricName)
	assert.Equal(t, "orders", resp.Plan.FactTable)
	assert.True(t, strings.HasPrefix(resp.CacheKey, "orders_count:v1|last_week"))
	assert.Contains(t, resp.SQL, "COUNT(orders.order_id)")
	assert.Contains(t, resp.SQL, "LIMIT 100")
}

func TestExplain_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"metric":"revenue","version":"v2","time_range":"last_month"}`), 0o600))

	out, err := run(t, "", "explain", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"metric_version": "v2"`)
	assert.NotContains(t, out, `"sql"`)
}

func TestExplain_Rejected(t *testing.T) {
	_, err := run(t, `{"question":"how much revenue?"}`, "explain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FreeTextNotAccepted")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "metricgate dev (none)\n", out)
}
