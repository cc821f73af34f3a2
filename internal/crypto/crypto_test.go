package crypto

import "testing"

func TestMasterKeyRoundTrip(t *testing.T) {
	defaultKey := "relaygate-default-master-key-32"
	newKey := "a-very-secret-key-that-is-32-byt"

	text := "mssql://host:1433;database=ops"
	enc1, err := Encrypt(text)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	dec1, err := Decrypt(enc1)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if dec1 != text {
		t.Errorf("expected %s, got %s", text, dec1)
	}

	SetMasterKey(newKey)

	enc2, err := Encrypt(text)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if enc1 == enc2 {
		t.Error("ciphertext should differ after changing master key")
	}

	dec2, err := Decrypt(enc2)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if dec2 != text {
		t.Errorf("expected %s, got %s", text, dec2)
	}

	SetMasterKey(defaultKey)
	if _, err := Decrypt(enc2); err == nil {
		t.Error("decrypt should fail with wrong master key")
	}
}
