package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roelfdiedericks/waclaw/internal/session"
)

func TestHTTPInvokeSuccess(t *testing.T) {
	var got bridgeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bridge" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(bridgeResponse{Response: "hello back", SessionID: "srv-1"})
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL + "/")
	res, err := inv.Invoke(context.Background(), Request{
		Identity: "27820001111",
		Name:     "Alice",
		Text:     "hello",
		Session:  &session.Session{ID: "local-1", Initialized: false},
	})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}

	if got.Identity != "27820001111" || got.Name != "Alice" || got.Message != "hello" {
		t.Errorf("unexpected request payload: %+v", got)
	}
	if got.SessionID != "" {
		t.Error("uninitialized session must not send a session id")
	}
	if res.Text != "hello back" || res.SessionID != "srv-1" || res.IsError {
		t.Errorf("unexpected result: %+v", res)
	}
	if !res.Initialized {
		t.Error("successful response must mark the session initialized")
	}
}

func TestHTTPInvokeEchoesEstablishedSession(t *testing.T) {
	var got bridgeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(bridgeResponse{Response: "ok", SessionID: "srv-1"})
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL)
	_, err := inv.Invoke(context.Background(), Request{
		Identity: "27820001111",
		Text:     "again",
		Session:  &session.Session{ID: "srv-1", Initialized: true},
	})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if got.SessionID != "srv-1" {
		t.Errorf("established session id not echoed: %q", got.SessionID)
	}
}

func TestHTTPInvokeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL)
	res, err := inv.Invoke(context.Background(), Request{
		Identity: "27820001111",
		Text:     "hello",
		Session:  &session.Session{ID: "x"},
	})
	if err != nil {
		t.Fatalf("error status must not be a transport error: %v", err)
	}
	if !res.IsError {
		t.Error("non-2xx status must be reported as an agent failure")
	}
	if res.Initialized {
		t.Error("failed turn must not mark the session initialized")
	}
}

func TestHTTPInvokeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL)
	res, err := inv.Invoke(context.Background(), Request{
		Identity: "27820001111",
		Text:     "hello",
		Session:  &session.Session{ID: "x"},
	})
	if err != nil {
		t.Fatalf("parse failure must not be a transport error: %v", err)
	}
	if !res.IsError {
		t.Error("unparseable body must be reported as an agent failure")
	}
	if res.Text != "<html>not json</html>" {
		t.Errorf("raw body should be surfaced: %q", res.Text)
	}
}

func TestHTTPInvokeConnectionRefused(t *testing.T) {
	inv := NewHTTPInvoker("http://127.0.0.1:1")
	_, err := inv.Invoke(context.Background(), Request{
		Identity: "27820001111",
		Text:     "hello",
		Session:  &session.Session{ID: "x"},
	})
	if err == nil {
		t.Fatal("expected a transport error when the backend is unreachable")
	}
}
