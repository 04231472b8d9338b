package matches

import (
	"strings"
	"testing"
)

func TestValidatePlayerName_Length(t *testing.T) {
	if _, err := ValidatePlayerName("A"); err == nil {
		t.Fatalf("one character name must be rejected")
	}
	if _, err := ValidatePlayerName(strings.Repeat("a", 51)); err == nil {
		t.Fatalf("51 character name must be rejected")
	}
	if _, err := ValidatePlayerName("Al"); err != nil {
		t.Fatalf("two character name: %v", err)
	}
	if _, err := ValidatePlayerName(strings.Repeat("a", 50)); err != nil {
		t.Fatalf("50 character name: %v", err)
	}
}

func TestValidatePlayerName_Charset(t *testing.T) {
	if _, err := ValidatePlayerName("Mehmet Ali-2"); err != nil {
		t.Fatalf("letters, digits, space, dash allowed: %v", err)
	}
	if _, err := ValidatePlayerName("Alex<script>"); err == nil {
		t.Fatalf("angle brackets must be rejected")
	}
	if _, err := ValidatePlayerName("a;b"); err == nil {
		t.Fatalf("semicolon must be rejected")
	}
}

func TestValidatePlayerName_Sanitizes(t *testing.T) {
	name, err := ValidatePlayerName("  Alex  ")
	if err != nil {
		t.Fatalf("trimmed name should pass: %v", err)
	}
	if name != "Alex" {
		t.Fatalf("sanitized: %q", name)
	}
}

func TestSanitize_StripsScriptTags(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"hello <script>alert(1)</script>world", "hello world"},
		{`<SCRIPT src="x.js"></SCRIPT>clean`, "clean"},
		{"multi<script>\nalert(1)\n</script>line", "multiline"},
		{"a<script>1</script>b<script>2</script>c", "abc"},
		{"no tags here", "no tags here"},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidTeamAndPosition(t *testing.T) {
	if !ValidTeam("A") || !ValidTeam("B") {
		t.Fatalf("teams A and B must be valid")
	}
	if ValidTeam("C") || ValidTeam("") {
		t.Fatalf("unknown team accepted")
	}

	for _, p := range []string{"goalkeeper", "defense", "midfield", "attack"} {
		if !ValidPosition(p) {
			t.Fatalf("position %q must be valid", p)
		}
	}
	if ValidPosition("striker") {
		t.Fatalf("unknown position accepted")
	}
}

func TestFieldBounds(t *testing.T) {
	if !ValidTitle(strings.Repeat("t", 100)) || ValidTitle(strings.Repeat("t", 101)) {
		t.Fatalf("title bound is 100")
	}
	if !ValidDescription(strings.Repeat("d", 500)) || ValidDescription(strings.Repeat("d", 501)) {
		t.Fatalf("description bound is 500")
	}
	if !ValidLocation(strings.Repeat("l", 200)) || ValidLocation(strings.Repeat("l", 201)) {
		t.Fatalf("location bound is 200")
	}
	if !ValidPrice(0) || !ValidPrice(1000) || ValidPrice(-1) || ValidPrice(1001) {
		t.Fatalf("price bounds are 0..1000")
	}
	if !ValidMaxPlayers(2) || !ValidMaxPlayers(22) || ValidMaxPlayers(1) || ValidMaxPlayers(23) {
		t.Fatalf("max players bounds are 2..22")
	}
	if !ValidCoordinates(41.01, 28.97) || ValidCoordinates(91, 0) || ValidCoordinates(0, -181) {
		t.Fatalf("coordinate bounds")
	}
}
