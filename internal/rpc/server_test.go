package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicholasJacob1990/iudex0-sub002/internal/errinfo"
)

func serveAndCollect(t *testing.T, server *Server, output *bytes.Buffer, wantLines int) []Response {
	t.Helper()
	require.NoError(t, server.Serve(context.Background()))
	var lines []string
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		lines = nil
		for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) >= wantLines {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Len(t, lines, wantLines)
	responses := make([]Response, 0, wantLines)
	for _, line := range lines {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServerHandlesRequest(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"Ping\",\"api_version\":\"1\"}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	server.Register("Ping", func(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
		return map[string]any{"pong": true}, nil
	})

	responses := serveAndCollect(t, server, &output, 1)
	require.Nil(t, responses[0].Error)
	assert.Equal(t, true, responses[0].Result.(map[string]any)["pong"])
}

func TestServerMapsErrorInfo(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":7,\"method\":\"Boom\"}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	server.Register("Boom", func(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
		return nil, errinfo.ValidationFailed(errinfo.PhaseChat, "bad input")
	})

	responses := serveAndCollect(t, server, &output, 1)
	resp := responses[0]
	require.NotNil(t, resp.Error)
	assert.Equal(t, "bad input", resp.Error.Message)
	data, err := json.Marshal(resp.Error.Data)
	require.NoError(t, err)
	var info errinfo.ErrorInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, errinfo.CodeValidationFailed, info.ErrorCode)
}

func TestServerRejectsIncompatibleAPIVersion(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":2,\"method\":\"Ping\",\"api_version\":\"99\"}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)
	server.Register("Ping", func(ctx context.Context, params json.RawMessage) (any, *errinfo.ErrorInfo) {
		return map[string]any{"pong": true}, nil
	})

	responses := serveAndCollect(t, server, &output, 1)
	require.NotNil(t, responses[0].Error)
	assert.Contains(t, responses[0].Error.Message, "api_version")
}

func TestServerMethodNotFound(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":3,\"method\":\"Missing\"}\n"
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(input), &output, nil)

	responses := serveAndCollect(t, server, &output, 1)
	require.NotNil(t, responses[0].Error)
	assert.Contains(t, responses[0].Error.Message, "Missing")
}

func TestServerNotify(t *testing.T) {
	var output bytes.Buffer
	server := NewServer("1", strings.NewReader(""), &output, nil)
	server.Notify("PipelineSnapshotUpdated", map[string]any{"job_id": "j-1"})

	var notification Notification
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(output.String())), &notification))
	assert.Equal(t, "2.0", notification.JSONRPC)
	assert.Equal(t, "PipelineSnapshotUpdated", notification.Method)
}
