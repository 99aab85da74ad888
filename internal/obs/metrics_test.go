package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/dags":                  "/v1/dags",
		"/v1/dags/example_etl":      "/v1/dags/:id",
		"/v1/dags/example_etl/runs": "/v1/dags/:id/runs",
		"/v1/dags?methods=GET":      "/v1/dags",
		"/v1/whoami":                "/v1/whoami",
		"/auth/token":               "/auth/token",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
