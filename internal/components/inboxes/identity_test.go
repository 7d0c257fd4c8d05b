package inboxes

import (
	"errors"
	"testing"
)

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://alice.pod.example/profile/card#me", "https://alice.pod.example/profile/card#me", false},
		{"  https://Alice.Pod.Example/profile/card#me ", "https://alice.pod.example/profile/card#me", false},
		{"https://bücher.example/card#me", "https://xn--bcher-kva.example/card#me", false},
		{"http://localhost:3000/alice/profile/card#me", "http://localhost:3000/alice/profile/card#me", false},
		{"http://[::1]:3000/card#me", "http://[::1]:3000/card#me", false},
		{"http://127.0.0.1/card#me", "http://127.0.0.1/card#me", false},
		{"https://pod.example:443/card#me", "https://pod.example/card#me", false},
		{"http://pod.example:443/card#me", "http://pod.example:443/card#me", false},
		{"", "", true},
		{"alice", "", true},
		{"/profile/card#me", "", true},
		{"ftp://pod.example/card", "", true},
		{"https://user:pw@pod.example/card", "", true},
		{"https:///card", "", true},
		{"https://bad_host.example/card", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeIdentity(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentity) {
					t.Errorf("NormalizeIdentity(%q) error = %v, want ErrInvalidIdentity", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeIdentity(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
