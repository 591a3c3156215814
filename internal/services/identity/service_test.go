package identity_test

import (
	"errors"
	"strings"
	"testing"

	"offrecord/internal/crypto"
	"offrecord/internal/services/identity"
	"offrecord/internal/store"
)

const strong = "Correct-Horse-9"

func TestGenerateAndFingerprint(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))

	id, fp, err := svc.GenerateIdentity(strong)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if fp != crypto.Fingerprint(id.EdPub) {
		t.Fatalf("fingerprint does not match public key")
	}
	got, err := svc.FingerprintIdentity(strong)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if got != fp {
		t.Fatalf("fingerprint changed after reload")
	}
}

func TestWeakPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	for _, p := range []string{"short1!A", "alllowercase123!", "NoDigitsHere!!!", "NoSymbols12345"} {
		if _, _, err := svc.GenerateIdentity(p); !errors.Is(err, identity.ErrWeakPassphrase) {
			t.Errorf("%q: err = %v, want ErrWeakPassphrase", p, err)
		}
	}
}

func TestWeakPassphrase_NamesMissingClasses(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))
	_, _, err := svc.GenerateIdentity("lowercaseonly")
	if err == nil {
		t.Fatal("weak passphrase accepted")
	}
	for _, want := range []string{"upper-case", "digit", "symbol"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if strings.Contains(err.Error(), "lower-case") {
		t.Errorf("error %q names a class that is present", err)
	}
}
