package registry

import "testing"

func TestDeriveSlug(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"MyService", "myservice"},
		{"Repo123", "repo123"},
		{"My_Service.Docs", "my-service-docs"},
		{"docs site", "docs-site"},
		{"--weird--name--", "weird-name"},
		{"café-API", "cafe-api"},
		{"héllo wörld", "hello-world"},
		{"ÅngströmDB", "angstromdb"},
		{"...", "repo"},
		{"", "repo"},
	}

	for _, tc := range cases {
		if got := DeriveSlug(tc.name); got != tc.want {
			t.Errorf("DeriveSlug(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDeriveSlugStable(t *testing.T) {
	// The same name always derives the same slug.
	first := DeriveSlug("Platform_Docs")
	second := DeriveSlug("Platform_Docs")
	if first != second {
		t.Errorf("derivation not stable: %q vs %q", first, second)
	}
}
