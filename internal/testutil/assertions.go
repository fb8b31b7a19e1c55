package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "read response body")
	return body
}

// AssertStatus fails with the response body attached so rejected requests are easy to read.
func AssertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode == want {
		return
	}
	assert.Equal(t, want, resp.StatusCode, "status for %s %s: %s", resp.Request.Method, resp.Request.URL.Path, readBody(t, resp))
}

func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	body := readBody(t, resp)
	require.NoError(t, json.Unmarshal(body, v), "decode %s", body)
}

// AssertPlainError checks an http.Error response: status, text content type and message.
func AssertPlainError(t *testing.T, resp *http.Response, wantStatus int, wantText string) {
	t.Helper()
	assert.Equal(t, wantStatus, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"), "content type %q", resp.Header.Get("Content-Type"))
	assert.Contains(t, strings.ToLower(string(readBody(t, resp))), strings.ToLower(wantText))
}

// DecodeActivation reads a create or update response and checks whether it went live.
func DecodeActivation(t *testing.T, resp *http.Response, wantStatus int, wantLive bool) service.ActivationResult {
	t.Helper()
	AssertStatus(t, resp, wantStatus)

	var result service.ActivationResult
	DecodeJSON(t, resp, &result)
	require.NotNil(t, result.Config, "activation result carries the saved config")
	assert.Equal(t, wantLive, result.Activated, "activated (message %q)", result.Message)
	if !wantLive {
		assert.Contains(t, result.Message, "saved but not live")
	}
	return result
}
