package server

import (
	"testing"

	"connectrpc.com/connect"
)

func TestSessionLifecycle(t *testing.T) {
	id, err := testClient.CreateSession(bg(), "lifecycle")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("session id %q is not a UUID", id)
	}

	ids, err := testClient.ListSessions(bg())
	if err != nil {
		t.Fatal(err)
	}
	if !contains(ids, id) {
		t.Errorf("ListSessions() = %v, missing %s", ids, id)
	}

	if err := testClient.DestroySession(bg(), id); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	ids, err = testClient.ListSessions(bg())
	if err != nil {
		t.Fatal(err)
	}
	if contains(ids, id) {
		t.Errorf("destroyed session %s still listed", id)
	}

	err = testClient.DestroySession(bg(), id)
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("second destroy code = %v, want NotFound", connect.CodeOf(err))
	}
}

func TestDestroySession_MissingID(t *testing.T) {
	err := testClient.DestroySession(bg(), "")
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestSnapshotRestore(t *testing.T) {
	src := newSession(t)
	if _, err := testClient.Evaluate(bg(), src, "func binary ^^ 5 (a, b) a * 10 + b\nfunc sq(n) n * n\nbase = 3"); err != nil {
		t.Fatal(err)
	}

	snap, err := testClient.Snapshot(bg(), src)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap == "" {
		t.Fatal("empty snapshot")
	}

	dst := newSession(t)
	if err := testClient.Restore(bg(), dst, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	resp, err := testClient.Evaluate(bg(), dst, "sq(base) + (1 ^^ 2)")
	if err != nil {
		t.Fatal(err)
	}
	if got := stringField(resp, "value"); got != "21" {
		t.Errorf("value after restore = %q, want 21", got)
	}
}

func TestSnapshot_UnknownSession(t *testing.T) {
	_, err := testClient.Snapshot(bg(), "missing")
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", connect.CodeOf(err))
	}
}

func TestRestore_BadSnapshot(t *testing.T) {
	id := newSession(t)
	tests := []string{"not base64!", "AAAA"}
	for _, snap := range tests {
		err := testClient.Restore(bg(), id, snap)
		if connect.CodeOf(err) != connect.CodeInvalidArgument {
			t.Errorf("Restore(%q) code = %v, want InvalidArgument", snap, connect.CodeOf(err))
		}
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
