package pagination

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c := Cursor{
		V:   1,
		Did: "ds-123",
		S:   "Revenue",
		Off: 50,
		Ps:  50,
	}
	tok, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	// token should be url-safe base64 (no '+', '/', '=')
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-url-safe chars: %q", tok)
	}
	out, err := Decode(tok)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if out.Did != c.Did || out.S != c.S || out.Off != c.Off || out.Ps != c.Ps {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, c)
	}
}

func TestDecode_Invalid(t *testing.T) {
	cases := []string{
		"",    // empty
		"!!!", // not base64
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		// missing required fields
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"did":"x","s":"","off":0,"ps":10}`),
		mustB64(`{"v":1,"did":"","s":"S","off":0,"ps":10}`),
		mustB64(`{"v":1,"did":"x","s":"S","off":-1,"ps":10}`),
		mustB64(`{"v":1,"did":"x","s":"S","off":0,"ps":0}`),
	}
	for i, tok := range cases {
		if _, err := Decode(tok); err == nil {
			t.Fatalf("case %d: expected error for token %q", i, tok)
		}
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(0, 50); got != 50 {
		t.Fatalf("NextOffset(0,50) = %d", got)
	}
	if got := NextOffset(-5, 0); got != 0 {
		t.Fatalf("NextOffset(-5,0) = %d", got)
	}
}

func FuzzDecode(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"did":"x"}`),
		mustB64(`{"v":1,"did":"ds","s":"S","off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = Decode(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
