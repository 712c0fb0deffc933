package signature_test

import (
	"testing"

	"earshot/internal/dispatch/signature"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"resource_url":"https://example.com/watch?v=abc"}`)
	sig := signature.Sign("topsecret", body)
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}
	if !signature.Verify("topsecret", body, sig) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"resource_url":"https://example.com/a"}`)
	sig := signature.Sign("topsecret", body)
	tampered := []byte(`{"resource_url":"https://example.com/b"}`)
	if signature.Verify("topsecret", tampered, sig) {
		t.Fatal("tampered body must not verify")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte("payload")
	sig := signature.Sign("topsecret", body)
	if signature.Verify("othersecret", body, sig) {
		t.Fatal("wrong secret must not verify")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	body := []byte("payload")
	for _, provided := range []string{"", "  ", "not-hex", "deadbeef"} {
		if signature.Verify("topsecret", body, provided) {
			t.Fatalf("malformed signature %q must not verify", provided)
		}
	}
}

func TestVerifyAcceptsUppercaseHex(t *testing.T) {
	body := []byte("payload")
	sig := signature.Sign("topsecret", body)
	upper := ""
	for _, r := range sig {
		if r >= 'a' && r <= 'f' {
			r = r - 'a' + 'A'
		}
		upper += string(r)
	}
	if !signature.Verify("topsecret", body, upper) {
		t.Fatal("uppercase hex signature should verify")
	}
}
