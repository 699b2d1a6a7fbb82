package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adamwoolhether/pacer/transport"
)

type widget struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestClient_GetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("exp GET; got %s", r.Method)
		}
		json.NewEncoder(w).Encode(widget{ID: 7, Name: "sprocket"})
	}))
	defer srv.Close()

	c, err := transport.NewClient(newPacer(t), transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	var got widget
	if err := c.Get(context.Background(), srv.URL, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != 7 || got.Name != "sprocket" {
		t.Errorf("exp {7 sprocket}; got %+v", got)
	}
}

func TestClient_PostEncodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in widget
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("exp json content type; got %q", ct)
		}

		in.ID = 1
		json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c, err := transport.NewClient(newPacer(t), transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	var got widget
	if err := c.Post(context.Background(), srv.URL, widget{Name: "gear"}, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != 1 || got.Name != "gear" {
		t.Errorf("exp {1 gear}; got %+v", got)
	}
}

func TestClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such widget", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := transport.NewClient(newPacer(t), transport.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	err = c.Get(context.Background(), srv.URL, nil)
	if !errors.Is(err, transport.ErrUnexpectedStatusCode) {
		t.Fatalf("exp ErrUnexpectedStatusCode; got %v", err)
	}

	var use *transport.UnexpectedStatusError
	if !errors.As(err, &use) {
		t.Fatalf("exp UnexpectedStatusError; got %T", err)
	}
	if use.StatusCode != http.StatusNotFound {
		t.Errorf("exp 404; got %d", use.StatusCode)
	}
	if use.Body == "" {
		t.Error("exp error body captured")
	}
}

func TestClient_UserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "pacer-test/1.0" {
			t.Errorf("exp custom user agent; got %q", ua)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := transport.NewClient(newPacer(t),
		transport.WithUserAgent("pacer-test/1.0"),
		transport.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Delete(context.Background(), srv.URL, nil); err != nil {
		t.Fatal(err)
	}
}

func TestClient_Validation(t *testing.T) {
	if _, err := transport.NewClient(nil); !errors.Is(err, transport.ErrNilPacer) {
		t.Errorf("exp ErrNilPacer; got %v", err)
	}

	if _, err := transport.NewClient(newPacer(t), transport.WithTimeout(-1)); err == nil {
		t.Error("exp error for negative timeout")
	}
}
