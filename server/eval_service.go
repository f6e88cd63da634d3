package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/sel/compiler"
	"github.com/chazu/sel/journal"
	"github.com/chazu/sel/vm"
)

// Recorder receives every evaluation. *journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// EvalService implements the EvaluationService Connect handlers.
type EvalService struct {
	sessions *SessionStore
	scratch  *Session // used when a request names no session
	journal  Recorder
	timeout  time.Duration
}

// NewEvalService creates an EvalService. rec may be nil; a zero timeout
// means evaluations run until they finish or the client goes away.
func NewEvalService(sessions *SessionStore, scratch *Session, rec Recorder, timeout time.Duration) *EvalService {
	return &EvalService{
		sessions: sessions,
		scratch:  scratch,
		journal:  rec,
		timeout:  timeout,
	}
}

// evalResult is what the worker hands back for one Evaluate call.
type evalResult struct {
	value  vm.Value
	output string
	err    error
}

// session resolves the optional "session" field of a request.
func (s *EvalService) session(msg *structpb.Struct) (*Session, error) {
	id := stringField(msg, "session")
	if id == "" {
		return s.scratch, nil
	}
	session, err := s.sessions.Get(id)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q: %w", id, err))
	}
	return session, nil
}

// Evaluate runs source in a session.
//
// Request: {session?, source, input?}. Response: {success, value, kind,
// output, diagnostics[]}. input feeds the input and inputch builtins.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	source := stringField(req.Msg, "source")
	if strings.TrimSpace(source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	input := stringField(req.Msg, "input")

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := session.Worker().Do(ctx, func(v *vm.VM) interface{} {
		var out bytes.Buffer
		v.SetOutput(&out)
		v.SetInput(strings.NewReader(input))
		defer v.SetOutput(io.Discard)

		value, evalErr := v.EvalStringContext(ctx, source)
		return evalResult{value: value, output: out.String(), err: evalErr}
	})
	var res evalResult
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		res = evalResult{value: vm.Errorf("interrupted")}
	case err != nil:
		return nil, connect.NewError(connect.CodeInternal, err)
	default:
		res = result.(evalResult)
	}
	elapsed := time.Since(start)

	success := res.err == nil && !res.value.IsError()
	if s.journal != nil {
		entry := journal.Entry{
			Session:  session.ID,
			Source:   source,
			Value:    res.value.String(),
			IsError:  !success,
			Duration: elapsed,
		}
		if _, jerr := s.journal.Record(context.WithoutCancel(ctx), entry); jerr != nil {
			log.Errorf("journal: %s", jerr)
		}
	}

	msg, err := newMessage(map[string]interface{}{
		"success":     success,
		"value":       res.value.String(),
		"kind":        kindName(res.value),
		"output":      res.output,
		"diagnostics": diagnostics(res.err),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// CheckSyntax parses source without running it.
//
// Request: {session?, source}. Operators declared in the session are
// known to the parser. Response: {valid, diagnostics[]}.
func (s *EvalService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	source := stringField(req.Msg, "source")
	if strings.TrimSpace(source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}

	ops, err := session.Worker().Do(ctx, func(v *vm.VM) interface{} {
		return v.Ops.Clone()
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	_, errs := compiler.ParseProgram(source, ops.(*compiler.OperatorTable))
	msg, err := newMessage(map[string]interface{}{
		"valid":       len(errs) == 0,
		"diagnostics": syntaxDiagnostics(errs),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}
