package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helixdesk/updater/internal/config"
)

func TestResolveGeneric(t *testing.T) {
	r := &Resolver{}
	got, err := r.Resolve(context.Background(), config.UpdateConfig{
		Provider: config.ProviderGeneric,
		URL:      "https://downloads.example.com/helixdesk/",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://downloads.example.com/helixdesk" {
		t.Fatalf("base = %s", got)
	}
}

func TestResolveGenericRequiresURL(t *testing.T) {
	r := &Resolver{}
	if _, err := r.Resolve(context.Background(), config.UpdateConfig{Provider: config.ProviderGeneric}); err == nil {
		t.Fatal("expected error without url")
	}
}

func TestResolveBucket(t *testing.T) {
	r := &Resolver{}
	got, err := r.Resolve(context.Background(), config.UpdateConfig{
		Provider: config.ProviderBucket,
		Bucket:   "helix-releases",
		Region:   "eu-west-1",
		Prefix:   "/stable/",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://helix-releases.s3.eu-west-1.amazonaws.com/stable" {
		t.Fatalf("base = %s", got)
	}
}

func TestResolveHostedIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/helixdesk/app/releases/latest" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"tag_name":"v2.3.0"}`))
	}))
	defer server.Close()

	r := &Resolver{
		Client:          server.Client(),
		IndexBaseURL:    server.URL,
		DownloadBaseURL: "https://dl.example.com",
	}
	got, err := r.Resolve(context.Background(), config.UpdateConfig{
		Provider: config.ProviderHostedIndex,
		Owner:    "helixdesk",
		Repo:     "app",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://dl.example.com/helixdesk/app/releases/download/v2.3.0" {
		t.Fatalf("base = %s", got)
	}
}

func TestResolveHostedIndexLookupFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	r := &Resolver{Client: server.Client(), IndexBaseURL: server.URL}
	_, err := r.Resolve(context.Background(), config.UpdateConfig{
		Provider: config.ProviderHostedIndex,
		Owner:    "helixdesk",
		Repo:     "app",
	})
	if err == nil {
		t.Fatal("expected error when latest-tag lookup fails")
	}
}

func TestResolveCustom(t *testing.T) {
	r := &Resolver{Custom: func(ctx context.Context) (string, error) {
		return "https://cdn.example.com/updates", nil
	}}
	got, err := r.Resolve(context.Background(), config.UpdateConfig{Provider: config.ProviderCustom})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://cdn.example.com/updates" {
		t.Fatalf("base = %s", got)
	}

	r = &Resolver{Custom: func(ctx context.Context) (string, error) {
		return "", errors.New("no feed today")
	}}
	if _, err := r.Resolve(context.Background(), config.UpdateConfig{Provider: config.ProviderCustom}); err == nil {
		t.Fatal("expected custom resolver error to propagate")
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	r := &Resolver{}
	if _, err := r.Resolve(context.Background(), config.UpdateConfig{Provider: "torrent"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
