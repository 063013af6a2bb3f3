package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/pets/abc":                  "/v1/pets/:id",
		"/v1/applications/abc":          "/v1/applications/:id",
		"/v1/rescues/abc":               "/v1/rescues/:id",
		"/v1/users/abc":                 "/v1/users/:id",
		"/v1/pets/abc/extra/deep":       "/v1/pets/abc/extra/deep",
		"/v1/promotion-requests":        "/v1/promotion-requests",
		"/v1/pets":                      "/v1/pets",
		"/v1/pets/abc?species=capybara": "/v1/pets/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
