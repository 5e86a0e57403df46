package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["watch"])

	migrate, _, err := root.Find([]string{"migrate", "status"})
	require.NoError(t, err)
	assert.Equal(t, "status", migrate.Name())
}

func statusServer(t *testing.T, statuses ...string) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(calls.Add(1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"status":%q,"dial_code":"*126#"}}`, statuses[i])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runWatch(t *testing.T, baseURL string) (string, error) {
	t.Helper()
	t.Setenv("LXP_STORAGE_DRIVER", "memory")
	t.Setenv("LXP_SERVER_MODE", "test")

	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"watch", uuid.NewString(), "--base-url", baseURL, "--interval", "1ms", "--max-attempts", "5"})
	err := root.Execute()
	return out.String(), err
}

func TestWatch_Completed(t *testing.T) {
	srv := statusServer(t, "pending", "processing", "completed")

	out, err := runWatch(t, srv.URL)

	require.NoError(t, err)
	assert.Contains(t, out, "[1] pending")
	assert.Contains(t, out, "[2] processing")
	assert.Contains(t, out, "[3] completed")
	assert.Contains(t, out, "dial *126# to confirm the payment")
	assert.Contains(t, out, `"status": "completed"`)
}

func TestWatch_FailedIsAnError(t *testing.T) {
	srv := statusServer(t, "processing", "failed")

	_, err := runWatch(t, srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestWatch_InvalidID(t *testing.T) {
	t.Setenv("LXP_STORAGE_DRIVER", "memory")
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"watch", "not-a-uuid"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transaction id")
}
