package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretClient struct {
	accessFunc func(req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls      int
}

func (s *stubSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	return s.accessFunc(req)
}

func (s *stubSecretClient) Close() error { return nil }

func payload(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func writeFallbackFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.local")
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}
	return path
}

func TestResolveRemoteCachesValue(t *testing.T) {
	client := &stubSecretClient{
		accessFunc: func(req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/brewcoin-prod/secrets/telegram-bot-token/versions/latest" {
				t.Errorf("unexpected resource name %q", req.Name)
			}
			return payload("tok_remote"), nil
		},
	}
	fetcher, err := NewFetcher(context.Background(),
		WithEnvironment("production"),
		WithDefaultProject("brewcoin-prod"),
		WithFallbackFile(""),
		WithSecretManagerClient(client),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	for i := 0; i < 2; i++ {
		value, err := fetcher.Resolve(context.Background(), "secret://telegram-bot-token")
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i+1, err)
		}
		if value != "tok_remote" {
			t.Errorf("value = %q, want tok_remote", value)
		}
	}
	if client.calls != 1 {
		t.Errorf("secret manager called %d times, want 1", client.calls)
	}
}

func TestResolveVersionAndProjectOverrides(t *testing.T) {
	client := &stubSecretClient{
		accessFunc: func(req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/other-proj/secrets/oidc-client-secret/versions/7" {
				t.Errorf("unexpected resource name %q", req.Name)
			}
			return payload("cs_seven"), nil
		},
	}
	fetcher, err := NewFetcher(context.Background(),
		WithEnvironment("staging"),
		WithDefaultProject("brewcoin-staging"),
		WithFallbackFile(""),
		WithSecretManagerClient(client),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://oidc-client-secret?version=7&project=other-proj")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "cs_seven" {
		t.Errorf("value = %q, want cs_seven", value)
	}
}

func TestResolveLocalUsesFallbackFile(t *testing.T) {
	path := writeFallbackFile(t, "# local secrets\nsecret://telegram-bot-token=tok_local\nsm://oidc-client-secret=cs_local\n")
	client := &stubSecretClient{
		accessFunc: func(_ *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			t.Error("local environment must not reach secret manager")
			return nil, status.Error(codes.Internal, "unexpected")
		},
	}
	fetcher, err := NewFetcher(context.Background(),
		WithEnvironment("local"),
		WithDefaultProject("brewcoin-prod"),
		WithFallbackFile(path),
		WithSecretManagerClient(client),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://telegram-bot-token")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "tok_local" {
		t.Errorf("value = %q, want tok_local", value)
	}

	value, err = fetcher.Resolve(context.Background(), "secret://oidc-client-secret")
	if err != nil {
		t.Fatalf("Resolve sm:// key: %v", err)
	}
	if value != "cs_local" {
		t.Errorf("value = %q, want cs_local", value)
	}
}

func TestResolveFallsBackOnPermissionDenied(t *testing.T) {
	path := writeFallbackFile(t, "secret://telegram-bot-token=tok_backup\n")
	client := &stubSecretClient{
		accessFunc: func(_ *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.PermissionDenied, "denied")
		},
	}
	fetcher, err := NewFetcher(context.Background(),
		WithEnvironment("production"),
		WithDefaultProject("brewcoin-prod"),
		WithFallbackFile(path),
		WithSecretManagerClient(client),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://telegram-bot-token")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "tok_backup" {
		t.Errorf("value = %q, want tok_backup", value)
	}
}

func TestResolveSurfacesHardErrors(t *testing.T) {
	client := &stubSecretClient{
		accessFunc: func(_ *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.NotFound, "no such secret")
		},
	}
	fetcher, err := NewFetcher(context.Background(),
		WithEnvironment("production"),
		WithDefaultProject("brewcoin-prod"),
		WithFallbackFile(""),
		WithSecretManagerClient(client),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	if _, err := fetcher.Resolve(context.Background(), "secret://missing"); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestResolveRejectsBadReferences(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithFallbackFile(""), WithSecretManagerClient(&stubSecretClient{
		accessFunc: func(_ *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return payload("x"), nil
		},
	}))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	for _, ref := range []string{"", "   ", "vault://thing", "secret://"} {
		if _, err := fetcher.Resolve(context.Background(), ref); err == nil {
			t.Errorf("reference %q accepted", ref)
		}
	}
}
