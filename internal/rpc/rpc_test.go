package rpc_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/ignore"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/lang/typescript"
	"github.com/oxhq/indexchan/internal/rpc"
	"github.com/oxhq/indexchan/internal/store"
)

func newTestServer(t *testing.T) *rpc.Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte(
		"export function used() { helper(); }\nfunction helper() {}\nfunction dead() {}\n"), 0o644))

	cfg := config.Default()
	registry := lang.NewRegistry()
	require.NoError(t, registry.Register(typescript.New()))
	policy, err := ignore.Load(dir)
	require.NoError(t, err)

	s, err := store.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Refresh(registry, policy, cfg)
	require.NoError(t, err)

	return rpc.NewServer(dir, s, cfg, registry, policy, zap.NewNop())
}

// roundTrip sends a single request through Serve and decodes its response.
func roundTrip(t *testing.T, server *rpc.Server, req rpc.Request) rpc.Response {
	t.Helper()
	reqBytes, err := json.Marshal(req)
	require.NoError(t, err)

	var out bytes.Buffer
	err = server.Serve(bytes.NewReader(append(reqBytes, '\n')), &out)
	require.NoError(t, err)

	var resp rpc.Response
	require.NoError(t, json.NewDecoder(bufio.NewReader(&out)).Decode(&resp))
	return resp
}

func TestServe_SearchReturnsMatches(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := newTestServer(t)

	resp := roundTrip(t, server, rpc.Request{Method: "search", Params: json.RawMessage(`{"query":"used"}`), ID: 1})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)

	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "used")
}

func TestServe_UnknownMethod(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := newTestServer(t)

	resp := roundTrip(t, server, rpc.Request{Method: "no_such_method", ID: "x"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, 1, resp.Error.Code) // ECInput
	assert.Contains(t, resp.Error.Message, "no_such_method")
}

func TestServe_Stats(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := newTestServer(t)

	resp := roundTrip(t, server, rpc.Request{Method: "stats", ID: 1})
	require.Nil(t, resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "entities_by_kind")
}

func TestServe_PreviewThenApplyChanges(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := newTestServer(t)

	preview := roundTrip(t, server, rpc.Request{
		Method: "preview_changes",
		Params: json.RawMessage(`{"tiers":["DEFINITELY_SAFE"]}`),
		ID:     1,
	})
	require.Nil(t, preview.Error)

	applied := roundTrip(t, server, rpc.Request{
		Method: "apply_changes",
		Params: json.RawMessage(`{"tiers":["DEFINITELY_SAFE"]}`),
		ID:     2,
	})
	require.Nil(t, applied.Error)
	encoded, err := json.Marshal(applied.Result)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "ManifestID")
}

func TestServe_MultipleRequestsOnOneStream(t *testing.T) {
	defer goleak.VerifyNone(t)
	server := newTestServer(t)

	var in bytes.Buffer
	for i, method := range []string{"stats", "scan"} {
		req := rpc.Request{Method: method, ID: i}
		b, err := json.Marshal(req)
		require.NoError(t, err)
		in.Write(b)
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	require.NoError(t, server.Serve(strings.NewReader(in.String()), &out))

	dec := json.NewDecoder(bufio.NewReader(&out))
	var count int
	for {
		var resp rpc.Response
		if err := dec.Decode(&resp); err != nil {
			break
		}
		require.Nil(t, resp.Error)
		count++
	}
	assert.Equal(t, 2, count)
}
