package moderation

import "testing"

func TestFindLink(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		wantLink string
		wantHit  bool
	}{
		{"https url", "смотри https://example.com/promo", "https://example.com/promo", true},
		{"http url", "http://spam.example/win тут", "http://spam.example/win", true},
		{"bare domain", "пиши в t.me/somebot", "", false},
		{"ftp scheme", "get it at ftp://files.example.com/x", "", false},
		{"no link", "просто обычное сообщение", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			link, hit := FindLink(tt.text)
			if hit != tt.wantHit || link != tt.wantLink {
				t.Errorf("FindLink(%q) = (%q, %v), want (%q, %v)",
					tt.text, link, hit, tt.wantLink, tt.wantHit)
			}
		})
	}
}
