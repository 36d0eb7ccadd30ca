package bridge

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriel-ai/harbor/pkg/logging"
	"github.com/oriel-ai/harbor/pkg/mcp"
	"github.com/oriel-ai/harbor/pkg/tools"
)

func startProvider(t *testing.T, srv *mcp.Server) *mcp.Client {
	t.Helper()

	serverSide, clientSide := mcp.NewLinkedTransports()
	serveCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(serveCtx, serverSide)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := mcp.NewClient(clientSide, mcp.ClientOptions{})
	_, err := client.Initialize(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close(context.Background())
	})
	return client
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, _ := logging.NewLogger("bridge-test")
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestBridgeRegistersProviderCatalogue(t *testing.T) {
	srv := mcp.NewServer("weather", "1.0.0")
	require.NoError(t, srv.RegisterTool(mcp.Tool{
		Name:        "get_forecast",
		Description: "Returns the forecast for a city.",
		InputSchema: tools.ObjectSchema(map[string]interface{}{
			"city": map[string]interface{}{"type": "string"},
		}, []string{"city"}),
	}, func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
		city, _ := args["city"].(string)
		return mcp.TextContent(fmt.Sprintf("Sunny in %s", city)), nil
	}))

	client := startProvider(t, srv)
	reg := tools.NewRegistry()

	count, err := Bridge(context.Background(), "weather", client, reg, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	def, ok := reg.Get("get_forecast")
	require.True(t, ok)
	assert.Equal(t, "[weather] Returns the forecast for a city.", def.Description)

	result, err := reg.Invoke(context.Background(), "get_forecast", map[string]interface{}{"city": "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, "Sunny in Oslo", result)
}

func TestBridgeEmptyCatalogue(t *testing.T) {
	srv := mcp.NewServer("empty", "1.0.0")
	client := startProvider(t, srv)
	reg := tools.NewRegistry()

	count, err := Bridge(context.Background(), "empty", client, reg, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, reg.Len())
}

func TestBridgeSkipsDuplicates(t *testing.T) {
	srv := mcp.NewServer("dup", "1.0.0")
	require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "taken"}, func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
		return mcp.TextContent("provider"), nil
	}))
	require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "fresh"}, func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
		return mcp.TextContent("fresh"), nil
	}))

	client := startProvider(t, srv)
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.Definition{
		Name: "taken",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return "manager", nil
		},
	}))

	count, err := Bridge(context.Background(), "dup", client, reg, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the non-colliding tool is bridged")

	// The earlier registration keeps the name.
	result, err := reg.Invoke(context.Background(), "taken", nil)
	require.NoError(t, err)
	assert.Equal(t, "manager", result)
}

func TestBridgeMissingSchemaGetsFallback(t *testing.T) {
	srv := mcp.NewServer("bare", "1.0.0")
	require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "no_schema"}, func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
		return mcp.TextContent("ok"), nil
	}))

	client := startProvider(t, srv)
	reg := tools.NewRegistry()

	_, err := Bridge(context.Background(), "bare", client, reg, testLogger(t))
	require.NoError(t, err)

	def, ok := reg.Get("no_schema")
	require.True(t, ok)
	require.NotNil(t, def.Schema)
	assert.Equal(t, "object", def.Schema["type"])
}

func TestBridgedToolFailureIsDispatchError(t *testing.T) {
	srv := mcp.NewServer("flaky", "1.0.0")
	require.NoError(t, srv.RegisterTool(mcp.Tool{Name: "explode"}, func(ctx context.Context, args map[string]interface{}) ([]mcp.ContentBlock, error) {
		return nil, fmt.Errorf("kaboom")
	}))

	client := startProvider(t, srv)
	reg := tools.NewRegistry()
	log := testLogger(t)

	_, err := Bridge(context.Background(), "flaky", client, reg, log)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "explode", nil)
	require.Error(t, err)

	var dispatchErr *ToolDispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "flaky", dispatchErr.Provider)
	assert.Equal(t, "explode", dispatchErr.Tool)
	assert.Contains(t, dispatchErr.Detail, "kaboom")

	// The failure is logged with the tool and provider names before being
	// returned to the caller.
	if path := log.LogPath(); path != "" {
		logged, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Contains(t, string(logged), "tool explode: provider flaky reported failure")
	}
}

func TestFlattenContent(t *testing.T) {
	out := flattenContent([]mcp.ContentBlock{
		{Type: "text", Text: "line one"},
		{Type: "image", Data: "aGVsbG8=", MimeType: "image/jpeg"},
		{Type: "text", Text: "line two"},
	})
	assert.Contains(t, out, "line one")
	assert.Contains(t, out, "line two")
	assert.Contains(t, out, "image/jpeg")
}
