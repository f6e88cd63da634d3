package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/sel/vm"
)

// SessionService implements the SessionService Connect handlers.
type SessionService struct {
	sessions *SessionStore
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions *SessionStore) *SessionService {
	return &SessionService{sessions: sessions}
}

// lookup fetches the session named by the request's "id" field.
func (s *SessionService) lookup(msg *structpb.Struct) (*Session, error) {
	id := stringField(msg, "id")
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("id is required"))
	}
	session, err := s.sessions.Get(id)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q: %w", id, err))
	}
	return session, nil
}

func respond(fields map[string]interface{}) (*connect.Response[structpb.Struct], error) {
	msg, err := newMessage(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// CreateSession creates a session with its own VM. Request: {name?}.
// Response: {id, name}.
func (s *SessionService) CreateSession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session := s.sessions.Create(stringField(req.Msg, "name"))
	return respond(map[string]interface{}{
		"id":   session.ID,
		"name": session.Name,
	})
}

// DestroySession destroys a session. Request: {id}.
func (s *SessionService) DestroySession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.lookup(req.Msg)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Destroy(session.ID); err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return respond(map[string]interface{}{})
}

// ListSessions returns {sessions: [{id, name, created}]}, oldest first.
func (s *SessionService) ListSessions(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	list := []interface{}{}
	for _, session := range s.sessions.List() {
		list = append(list, map[string]interface{}{
			"id":      session.ID,
			"name":    session.Name,
			"created": session.Created.UTC().Format(time.RFC3339),
		})
	}
	return respond(map[string]interface{}{"sessions": list})
}

// Snapshot returns the session's state. Request: {id}.
// Response: {snapshot} holding base64 CBOR.
func (s *SessionService) Snapshot(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.lookup(req.Msg)
	if err != nil {
		return nil, err
	}

	result, err := session.Worker().Do(ctx, func(v *vm.VM) interface{} {
		data, err := vm.MarshalSnapshot(v.Snapshot())
		if err != nil {
			return err
		}
		return data
	})
	if err == nil {
		if e, ok := result.(error); ok {
			err = e
		}
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return respond(map[string]interface{}{
		"snapshot": base64.StdEncoding.EncodeToString(result.([]byte)),
	})
}

// Restore replaces the session's state with a snapshot taken earlier.
// Request: {id, snapshot}. Response: {functions} with the number of
// restored functions.
func (s *SessionService) Restore(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.lookup(req.Msg)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(stringField(req.Msg, "snapshot"))
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("snapshot: %w", err))
	}
	snap, err := vm.UnmarshalSnapshot(data)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	result, err := session.Worker().Do(ctx, func(v *vm.VM) interface{} {
		if err := v.Restore(snap); err != nil {
			return err
		}
		return v.Funcs.Len()
	})
	if err == nil {
		if e, ok := result.(error); ok {
			err = connect.NewError(connect.CodeInvalidArgument, e)
		}
	}
	if err != nil {
		var cerr *connect.Error
		if errors.As(err, &cerr) {
			return nil, cerr
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return respond(map[string]interface{}{"functions": result.(int)})
}
