package sqlite

import "testing"

func TestParseDSN(t *testing.T) {
	cases := map[string]struct {
		dsn  string
		want string
	}{
		"memory":       {"sqlite://:memory:", ":memory:"},
		"absolute":     {"sqlite:///var/lib/talekeeper.db", "/var/lib/talekeeper.db"},
		"relative":     {"sqlite://talekeeper.db", "./talekeeper.db"},
		"dot relative": {"sqlite://./data/talekeeper.db", "./data/talekeeper.db"},
		"with options": {"sqlite://talekeeper.db?cache=shared", "./talekeeper.db?cache=shared"},
		"escaped path": {"sqlite://my%20sessions.db", "./my sessions.db"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := parseDSN(tc.dsn)
			if err != nil {
				t.Fatalf("parseDSN(%q): %v", tc.dsn, err)
			}
			if got != tc.want {
				t.Fatalf("parseDSN(%q) = %q, want %q", tc.dsn, got, tc.want)
			}
		})
	}
}

func TestParseDSNRejectsForeignScheme(t *testing.T) {
	if _, err := parseDSN("postgres://localhost/talekeeper"); err == nil {
		t.Fatal("expected scheme error")
	}
}
