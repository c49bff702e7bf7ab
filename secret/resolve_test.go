package secret

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("AGENTGATE_TEST_SECRET", "s3cret")

	got, err := Resolve("env://AGENTGATE_TEST_SECRET")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Resolve() = %q, want s3cret", got)
	}
}

func TestResolveEnvMissing(t *testing.T) {
	_, err := Resolve("env://AGENTGATE_TEST_DEFINITELY_UNSET")
	if !errors.Is(err, ErrMissingEnv) {
		t.Errorf("Resolve() error = %v, want ErrMissingEnv", err)
	}
}

func TestResolveEnvEmpty(t *testing.T) {
	t.Setenv("AGENTGATE_TEST_EMPTY", "   ")

	_, err := Resolve("env://AGENTGATE_TEST_EMPTY")
	if !errors.Is(err, ErrEmptySecret) {
		t.Errorf("Resolve() error = %v, want ErrEmptySecret", err)
	}
}

func TestResolveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client-secret")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve("file://" + path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "from-file" {
		t.Errorf("Resolve() = %q, want from-file (trimmed)", got)
	}
}

func TestResolveFileMissing(t *testing.T) {
	_, err := Resolve("file://" + filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Error("Resolve() error = nil, want read error")
	}
}

func TestResolveLiteral(t *testing.T) {
	got, err := Resolve("plain-value")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "plain-value" {
		t.Errorf("Resolve() = %q, want plain-value", got)
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("AGENTGATE_DOMAIN", "id.example.com")
	t.Setenv("AGENTGATE_SERVER", "aus123")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "no placeholders",
			in:   "https://id.example.com",
			want: "https://id.example.com",
		},
		{
			name: "single placeholder",
			in:   "https://${AGENTGATE_DOMAIN}/oauth2",
			want: "https://id.example.com/oauth2",
		},
		{
			name: "multiple placeholders",
			in:   "https://${AGENTGATE_DOMAIN}/oauth2/${AGENTGATE_SERVER}",
			want: "https://id.example.com/oauth2/aus123",
		},
		{
			name:    "missing variable",
			in:      "${AGENTGATE_TEST_NOPE}",
			wantErr: true,
		},
		{
			name: "escaped dollar",
			in:   "cost: $$5",
			want: "cost: $5",
		},
		{
			name: "empty string",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandEnvStrict(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandEnvStrictReportsAllMissingSorted(t *testing.T) {
	_, err := ExpandEnvStrict("${AGENTGATE_ZZZ_VAR}/${AGENTGATE_AAA_VAR}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "AGENTGATE_AAA_VAR") || !strings.Contains(msg, "AGENTGATE_ZZZ_VAR") {
		t.Errorf("error %q does not list both missing variables", msg)
	}
	if strings.Index(msg, "AGENTGATE_AAA_VAR") > strings.Index(msg, "AGENTGATE_ZZZ_VAR") {
		t.Errorf("error %q lists variables unsorted", msg)
	}
}
