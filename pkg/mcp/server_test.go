package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startLinkedServer serves srv over a linked pair and returns an
// initialized client for it.
func startLinkedServer(t *testing.T, srv *Server) *Client {
	t.Helper()

	serverSide, clientSide := NewLinkedTransports()
	serveCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(serveCtx, serverSide)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := NewClient(clientSide, ClientOptions{})
	_, err := client.Initialize(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close(context.Background())
	})
	return client
}

func TestRegisterToolValidation(t *testing.T) {
	srv := NewServer("test", "1.0.0")

	echo := func(ctx context.Context, args map[string]interface{}) ([]ContentBlock, error) {
		return TextContent("ok"), nil
	}

	assert.Error(t, srv.RegisterTool(Tool{Name: ""}, echo))
	assert.Error(t, srv.RegisterTool(Tool{Name: "no-fn"}, nil))
	assert.NoError(t, srv.RegisterTool(Tool{Name: "echo"}, echo))
	assert.Error(t, srv.RegisterTool(Tool{Name: "echo"}, echo), "duplicate names are rejected")
}

func TestClientServerEndToEnd(t *testing.T) {
	srv := NewServer("demo", "1.0.0")
	require.NoError(t, srv.RegisterTool(Tool{
		Name:        "greet",
		Description: "Greets a person by name.",
	}, func(ctx context.Context, args map[string]interface{}) ([]ContentBlock, error) {
		name, _ := args["name"].(string)
		return TextContent(fmt.Sprintf("Hello, %s!", name)), nil
	}))
	require.NoError(t, srv.RegisterTool(Tool{
		Name: "always_fails",
	}, func(ctx context.Context, args map[string]interface{}) ([]ContentBlock, error) {
		return nil, fmt.Errorf("intentional failure")
	}))

	client := startLinkedServer(t, srv)
	ctx := context.Background()

	listed, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, listed.Tools, 2)
	// Catalogue preserves registration order.
	assert.Equal(t, "greet", listed.Tools[0].Name)
	assert.Equal(t, "always_fails", listed.Tools[1].Name)

	result, err := client.CallTool(ctx, ToolsCallParams{
		Name:      "greet",
		Arguments: map[string]interface{}{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "Hello, Ada!", result.Content[0].Text)
}

func TestToolFailureTravelsAsErrorResult(t *testing.T) {
	srv := NewServer("demo", "1.0.0")
	require.NoError(t, srv.RegisterTool(Tool{Name: "boom"}, func(ctx context.Context, args map[string]interface{}) ([]ContentBlock, error) {
		return nil, fmt.Errorf("the tool broke")
	}))

	client := startLinkedServer(t, srv)

	result, err := client.CallTool(context.Background(), ToolsCallParams{Name: "boom"})
	// A failing tool is a successful protocol exchange.
	require.NoError(t, err)
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "the tool broke")
}

func TestUnknownToolAndMethod(t *testing.T) {
	srv := NewServer("demo", "1.0.0")
	client := startLinkedServer(t, srv)
	ctx := context.Background()

	_, err := client.CallTool(ctx, ToolsCallParams{Name: "does_not_exist"})
	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, codeInvalidParams, rpcErr.Code)
}

func TestEmptyCatalogue(t *testing.T) {
	srv := NewServer("empty", "1.0.0")
	client := startLinkedServer(t, srv)

	listed, err := client.ListTools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listed.Tools)
}

func TestInitializeIsIdempotent(t *testing.T) {
	srv := NewServer("demo", "2.3.4")
	client := startLinkedServer(t, srv)

	first, err := client.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo", first.ServerInfo.Name)
	assert.Equal(t, "2.3.4", first.ServerInfo.Version)

	second, err := client.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCloseNotificationStopsServe(t *testing.T) {
	srv := NewServer("demo", "1.0.0")

	serverSide, clientSide := NewLinkedTransports()
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background(), serverSide)
	}()

	client := NewClient(clientSide, ClientOptions{})
	_, err := client.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	assert.NoError(t, <-done, "close notification should end Serve cleanly")
}
