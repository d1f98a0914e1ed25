package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/detect-intent" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.BookingCode != "B1" || req.UserType != "driver" || req.UserInput != "tell them I arrived" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(detectResponse{
			Intent:     "send-message",
			Message:    "I arrived",
			Confidence: 0.93,
			Success:    true,
		})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	got, err := c.Classify(context.Background(), "B1", "driver", "tell them I arrived")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Action != ActionSendMessage || got.Message != "I arrived" || got.Confidence != 0.93 {
		t.Fatalf("intent = %+v", got)
	}
}

func TestClassifyFailures(t *testing.T) {
	cases := []struct {
		name string
		resp func(w http.ResponseWriter)
	}{
		{
			name: "service reports failure",
			resp: func(w http.ResponseWriter) {
				json.NewEncoder(w).Encode(detectResponse{Success: false, Error: "model offline"})
			},
		},
		{
			name: "unknown intent",
			resp: func(w http.ResponseWriter) {
				json.NewEncoder(w).Encode(detectResponse{Intent: "order-pizza", Success: true})
			},
		},
		{
			name: "non-200 status",
			resp: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			resp: func(w http.ResponseWriter) {
				w.Write([]byte("not json"))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tc.resp(w)
			}))
			defer srv.Close()

			c := &Client{BaseURL: srv.URL}
			if _, err := c.Classify(context.Background(), "B1", "driver", "hello"); err == nil {
				t.Fatal("classify succeeded")
			}
		})
	}
}

func TestClassifyRequiresBaseURL(t *testing.T) {
	c := &Client{}
	if _, err := c.Classify(context.Background(), "B1", "driver", "hello"); err == nil {
		t.Fatal("classify succeeded without a base url")
	}
}
