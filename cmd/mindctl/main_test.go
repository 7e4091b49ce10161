package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runCLI(t *testing.T, ts *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--server", ts.URL}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestActivateSendsBudget(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/concepts" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"term":"bird","budget":{"priority":0.8,"durability":0.4,"quality":0.5}}`))
	}))
	defer ts.Close()

	out, err := runCLI(t, ts, "activate", "bird", "-p", "0.8", "-d", "0.4")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got["term"] != "bird" || got["priority"] != 0.8 || got["durability"] != 0.4 {
		t.Errorf("request body = %v", got)
	}
	if !strings.Contains(out, "bird") || !strings.Contains(out, "p=0.800") {
		t.Errorf("output = %q", out)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"memory is empty"}`))
	}))
	defer ts.Close()

	_, err := runCLI(t, ts, "peek")
	if err == nil || !strings.Contains(err.Error(), "memory is empty") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestCycleCount(t *testing.T) {
	var got map[string]int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ran":7,"time":7}`))
	}))
	defer ts.Close()

	out, err := runCLI(t, ts, "cycle", "-n", "7")
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got["n"] != 7 || !strings.Contains(out, "ran 7 cycles") {
		t.Errorf("body = %v, output = %q", got, out)
	}
}
