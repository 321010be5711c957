package bot

import "testing"

func TestValidateURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https watch link", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"http link", "http://example.com/video", false},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", false},
		{"empty", "", true},
		{"spaces only", "   ", true},
		{"missing scheme", "youtube.com/watch?v=abc", true},
		{"ftp scheme", "ftp://example.com/file", true},
		{"scheme without host", "https://", true},
		{"plain text", "watch this later", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateURL(tc.url)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateURL(%q) = %v, wantErr=%v", tc.url, err, tc.wantErr)
			}
		})
	}
}

func TestIsPlaylistURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"playlist path", "https://www.youtube.com/playlist?list=PLabc", true},
		{"list param without video", "https://www.youtube.com/watch?list=PLabc", true},
		{"watch link with list param", "https://www.youtube.com/watch?v=abc&list=PLabc", false},
		{"plain watch link", "https://www.youtube.com/watch?v=abc", false},
		{"short link", "https://youtu.be/abc", false},
		{"unparsable", "://bad", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsPlaylistURL(tc.url); got != tc.want {
				t.Fatalf("IsPlaylistURL(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}
