package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelarena/modelarena/internal/registry"
)

func TestMidJourneyExecuteFetchesRenderedImage(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/image.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(image)
	})
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		var req midjourneyRequest
		if errDecode := json.NewDecoder(r.Body).Decode(&req); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		if req.Prompt != "a lighthouse" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if !req.UseNegativePrompt || req.NegativePrompt == "" {
			t.Error("negative prompt must be sent")
		}
		_ = json.NewEncoder(w).Encode(midjourneyResponse{URL: server.URL + "/image.png"})
	})

	m := NewMidJourneyModel(server.URL + "/run")
	out, err := m.Execute(context.Background(), registry.Input{Kind: registry.InputText, Text: "a lighthouse"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Kind != registry.OutputImage {
		t.Fatalf("kind = %v, want image", out.Kind)
	}
	if string(out.Data) != string(image) {
		t.Fatal("image bytes do not round-trip")
	}
}

func TestMidJourneyRemoteFailureYieldsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	m := NewMidJourneyModel(server.URL)
	out, err := m.Execute(context.Background(), registry.Input{Kind: registry.InputText, Text: "x"})
	if err != nil {
		t.Fatalf("remote failure must not raise: %v", err)
	}
	if out.Kind != registry.OutputNone {
		t.Fatalf("kind = %v, want absent", out.Kind)
	}
}

func TestMidJourneyRejectsNonTextInput(t *testing.T) {
	m := NewMidJourneyModel("http://unused.example")
	out, err := m.Execute(context.Background(), registry.Input{Kind: registry.InputAudio, Data: []byte{1}})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Kind != registry.OutputNone {
		t.Fatalf("kind = %v, want absent", out.Kind)
	}
}
