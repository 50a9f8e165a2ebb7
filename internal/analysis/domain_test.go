package analysis

import (
	"errors"
	"testing"
)

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
		anyErr  bool
	}{
		{name: "bare domain", input: "example.com", want: "example.com"},
		{name: "subdomain", input: "https://www.example.com/path?q=1", want: "example.com"},
		{name: "multi-label suffix", input: "https://news.bbc.co.uk/", want: "bbc.co.uk"},
		{name: "upper case host", input: "HTTPS://CDN.Example.ORG", want: "example.org"},
		{name: "port is ignored", input: "http://api.example.com:8443/v1", want: "example.com"},
		{name: "trailing dot", input: "https://www.example.com./", want: "example.com"},
		{name: "ip address", input: "http://127.0.0.1:8080/", want: "127.0.0.1"},
		{name: "single label host", input: "http://localhost/", want: "localhost"},
		{name: "public suffix only", input: "https://co.uk/", wantErr: ErrNoRegistrableDomain},
		{name: "empty", input: "", wantErr: ErrNoHost},
		{name: "data url", input: "data:image/png;base64,AAAA", anyErr: true},
		{name: "no host", input: "https:///path", wantErr: ErrNoHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := RegistrableDomain(tt.input)
			if tt.anyErr {
				if err == nil {
					t.Errorf("expected an error for %q, got %q", tt.input, got)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v (%q)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
