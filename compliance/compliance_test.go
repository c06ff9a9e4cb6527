package compliance

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want ComplianceMode
		ok   bool
	}{
		{"", Strict, true},
		{"strict", Strict, true},
		{"permissive", Permissive, true},
		{"lenient", 0, false},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if (err == nil) != tc.ok || (tc.ok && got != tc.want) {
			t.Fatalf("Parse(%q) = %v, %v", tc.in, got, err)
		}
		if tc.ok && got.String() != map[ComplianceMode]string{Strict: "strict", Permissive: "permissive"}[got] {
			t.Fatalf("String() = %q", got.String())
		}
	}
	if Permissive.VerifySignatures() || !Strict.VerifySignatures() {
		t.Fatalf("only Strict verifies signatures")
	}
	var zero ComplianceMode
	if zero != Strict {
		t.Fatalf("zero ComplianceMode = %v, want strict", zero)
	}
}
