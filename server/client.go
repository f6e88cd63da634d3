package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a SelServer.
type Client struct {
	evaluate       *connect.Client[structpb.Struct, structpb.Struct]
	checkSyntax    *connect.Client[structpb.Struct, structpb.Struct]
	createSession  *connect.Client[structpb.Struct, structpb.Struct]
	destroySession *connect.Client[structpb.Struct, structpb.Struct]
	listSessions   *connect.Client[structpb.Struct, structpb.Struct]
	snapshot       *connect.Client[structpb.Struct, structpb.Struct]
	restore        *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a client for the server at baseURL. Pass
// connect.WithGRPC() to use the gRPC protocol instead of Connect.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	client := func(procedure string) *connect.Client[structpb.Struct, structpb.Struct] {
		return connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	return &Client{
		evaluate:       client(EvaluateProcedure),
		checkSyntax:    client(CheckSyntaxProcedure),
		createSession:  client(CreateSessionProcedure),
		destroySession: client(DestroySessionProcedure),
		listSessions:   client(ListSessionsProcedure),
		snapshot:       client(SnapshotProcedure),
		restore:        client(RestoreProcedure),
	}
}

func call(ctx context.Context, c *connect.Client[structpb.Struct, structpb.Struct], fields map[string]interface{}) (*structpb.Struct, error) {
	msg, err := newMessage(fields)
	if err != nil {
		return nil, err
	}
	resp, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Evaluate runs source in session ("" for the scratch session).
func (c *Client) Evaluate(ctx context.Context, session, source string) (*structpb.Struct, error) {
	return call(ctx, c.evaluate, map[string]interface{}{"session": session, "source": source})
}

// CheckSyntax parses source against the operators of session.
func (c *Client) CheckSyntax(ctx context.Context, session, source string) (*structpb.Struct, error) {
	return call(ctx, c.checkSyntax, map[string]interface{}{"session": session, "source": source})
}

// CreateSession creates a session and returns its id.
func (c *Client) CreateSession(ctx context.Context, name string) (string, error) {
	msg, err := call(ctx, c.createSession, map[string]interface{}{"name": name})
	if err != nil {
		return "", err
	}
	return stringField(msg, "id"), nil
}

// DestroySession destroys a session.
func (c *Client) DestroySession(ctx context.Context, id string) error {
	_, err := call(ctx, c.destroySession, map[string]interface{}{"id": id})
	return err
}

// ListSessions returns the ids of all sessions, oldest first.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	msg, err := call(ctx, c.listSessions, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, v := range msg.GetFields()["sessions"].GetListValue().GetValues() {
		ids = append(ids, stringField(v.GetStructValue(), "id"))
	}
	return ids, nil
}

// Snapshot returns a session's base64 CBOR snapshot.
func (c *Client) Snapshot(ctx context.Context, id string) (string, error) {
	msg, err := call(ctx, c.snapshot, map[string]interface{}{"id": id})
	if err != nil {
		return "", err
	}
	return stringField(msg, "snapshot"), nil
}

// Restore loads a snapshot into a session.
func (c *Client) Restore(ctx context.Context, id, snapshot string) error {
	_, err := call(ctx, c.restore, map[string]interface{}{"id": id, "snapshot": snapshot})
	return err
}
