package profileclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), slog.New(slog.NewJSONHandler(io.Discard, nil)), srv.URL+"/api/")
}

func TestClient_GetProfile_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/users/profile" {
			t.Errorf("path = %s, want /api/users/profile", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-1")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"u1","timezone":"Asia/Tokyo","extra":true}`))
	})

	p, err := c.GetProfile(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q, want %q", p.Timezone, "Asia/Tokyo")
	}
}

func TestClient_GetProfile_MissingTimezone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_id":"u1"}`))
	})

	p, err := c.GetProfile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Timezone != "" {
		t.Errorf("Timezone = %q, want empty", p.Timezone)
	}
}

func TestClient_UpdateTimezone_SendsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if body["timezone"] != "Europe/Paris" {
			t.Errorf("timezone = %q, want Europe/Paris", body["timezone"])
		}
		json.NewEncoder(w).Encode(map[string]string{"timezone": body["timezone"]})
	})

	p, err := c.UpdateTimezone(context.Background(), "tok", "Europe/Paris")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Timezone != "Europe/Paris" {
		t.Errorf("Timezone = %q, want Europe/Paris", p.Timezone)
	}
}

func TestClient_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   ErrorKind
		wantStatus int
	}{
		{"unauthorized", http.StatusUnauthorized, `{"code":"UNAUTHORIZED"}`, KindAuth, 401},
		{"forbidden", http.StatusForbidden, "", KindAuth, 403},
		{"server error", http.StatusInternalServerError, `{"code":"INTERNAL_ERROR"}`, KindServer, 500},
		{"bad request", http.StatusBadRequest, `{"code":"INVALID_TIMEZONE"}`, KindServer, 400},
		{"malformed json", http.StatusOK, `{"timezone":`, KindServer, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GetProfile(context.Background(), "tok")
			if err == nil {
				t.Fatal("expected error")
			}

			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if apiErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", apiErr.Kind, tt.wantKind)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(&http.Client{Timeout: time.Second}, nil, url)
	_, err := c.GetProfile(context.Background(), "tok")

	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %q, want %q (err=%v)", KindOf(err), KindNetwork, err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(&http.Client{Timeout: 50 * time.Millisecond}, nil, srv.URL)
	_, err := c.UpdateTimezone(context.Background(), "tok", "UTC")

	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %q, want %q (err=%v)", KindOf(err), KindNetwork, err)
	}
}

func TestKindOf_NonClientError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf() = %q, want empty", got)
	}
}
