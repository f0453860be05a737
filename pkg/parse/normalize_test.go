package parse

import (
	"net/url"
	"testing"
)

func TestCanonicalURL_NilInput(t *testing.T) {
	result := CanonicalURL(nil)
	if result != "" {
		t.Errorf("CanonicalURL(nil) = %q, want empty string", result)
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UppercaseSchemeAndHost", "HTTP://EXAMPLE.COM/Path", "http://example.com/Path"},
		{"DefaultHTTPPort", "http://example.com:80/a", "http://example.com/a"},
		{"DefaultHTTPSPort", "https://example.com:443/a", "https://example.com/a"},
		{"NonDefaultPortKept", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"EmptyPath", "http://example.com", "http://example.com/"},
		{"TrailingSlashKept", "http://example.com/a/", "http://example.com/a/"},
		{"FragmentRemoved", "http://example.com/a#section", "http://example.com/a"},
		{"QuerySorted", "http://example.com/a?b=2&a=1", "http://example.com/a?a=1&b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q) error = %v", tt.input, err)
			}
			if got := CanonicalURL(parsed); got != tt.expected {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalURL_DoesNotModifyInput(t *testing.T) {
	parsed, _ := url.Parse("HTTP://Example.COM:80/a?b=1&a=2#frag")
	original := parsed.String()
	_ = CanonicalURL(parsed)
	if parsed.String() != original {
		t.Errorf("CanonicalURL modified its input: %q -> %q", original, parsed.String())
	}
}

func TestParseAndNormalize(t *testing.T) {
	got, parsed, err := ParseAndNormalize("http://Example.com:80/x?z=1&y=2")
	if err != nil {
		t.Fatalf("ParseAndNormalize() error = %v", err)
	}
	if got != "http://example.com/x?y=2&z=1" {
		t.Errorf("ParseAndNormalize() = %q", got)
	}
	if parsed.Host != "Example.com:80" {
		t.Errorf("parsed URL should be the raw parse, got host %q", parsed.Host)
	}

	if _, _, err := ParseAndNormalize("not a url"); err == nil {
		t.Errorf("expected error for relative input")
	}
}

func TestResolve(t *testing.T) {
	base, _ := url.Parse("http://example.com/a/b.html")
	tests := []struct {
		ref  string
		want string
	}{
		{"../c.css", "http://example.com/c.css"},
		{" img.png ", "http://example.com/a/img.png"},
		{"/root", "http://example.com/root"},
		{"//cdn.example.org/x.js", "http://cdn.example.org/x.js"},
		{"https://other.org/", "https://other.org/"},
		{"mailto:someone@example.com", "mailto:someone@example.com"},
	}
	for _, tt := range tests {
		got, err := Resolve(base, tt.ref)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestIsAcceptedLink(t *testing.T) {
	tests := []struct {
		link string
		want bool
	}{
		{"http://example.com/", true},
		{"https://example.com/", true},
		{"data:image/png;base64,iVBORw0KGgo=", true},
		{"mailto:someone@example.com", false},
		{"javascript:void(0)", false},
		{"ftp://example.com/file", false},
		{"tel:+33100000000", false},
	}
	for _, tt := range tests {
		if got := IsAcceptedLink(tt.link); got != tt.want {
			t.Errorf("IsAcceptedLink(%q) = %v, want %v", tt.link, got, tt.want)
		}
	}
}

func TestIsFetchable(t *testing.T) {
	if !IsFetchable("http://example.com/x") || !IsFetchable("https://example.com") {
		t.Errorf("http(s) URLs should be fetchable")
	}
	if IsFetchable("data:text/plain,hello") {
		t.Errorf("data: URLs are terminal")
	}
	if IsFetchable("http:///nohost") {
		t.Errorf("URL without host should not be fetchable")
	}
}

func TestFingerprints_IndexEquivalence(t *testing.T) {
	fpDir, fpDirIndex, err := Fingerprints("GET", "http://example.com/docs/")
	if err != nil {
		t.Fatal(err)
	}
	fpIndex, _, _ := Fingerprints("GET", "http://example.com/docs/index.html")
	if fpDirIndex != fpIndex {
		t.Errorf("index variant of '/docs/' should equal fingerprint of '/docs/index.html'")
	}
	if fpDir == fpIndex {
		t.Errorf("canonical fingerprints of '/docs/' and '/docs/index.html' must differ")
	}

	_, fpBareIndex, _ := Fingerprints("GET", "http://example.com/docs")
	if fpBareIndex != fpIndex {
		t.Errorf("index variant of '/docs' should equal fingerprint of '/docs/index.html'")
	}

	root, _, _ := Fingerprints("GET", "http://example.com")
	rootSlash, _, _ := Fingerprints("GET", "http://example.com/")
	if root != rootSlash {
		t.Errorf("empty path and '/' should fingerprint identically")
	}
}

func TestFingerprints_MethodMatters(t *testing.T) {
	get, _, _ := Fingerprints("get", "http://example.com/a")
	getUpper, _, _ := Fingerprints("GET", "http://example.com/a")
	head, _, _ := Fingerprints("HEAD", "http://example.com/a")
	if get != getUpper {
		t.Errorf("method should be case-insensitive")
	}
	if get == head {
		t.Errorf("different methods should fingerprint differently")
	}
}

func TestHostOf(t *testing.T) {
	if got := HostOf("http://WWW.Example.com:8080/x"); got != "www.example.com:8080" {
		t.Errorf("HostOf() = %q", got)
	}
	if got := HostOf("::bad"); got != "" {
		t.Errorf("HostOf(bad) = %q, want empty", got)
	}
}
