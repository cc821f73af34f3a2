package logging

import "testing"

func TestMaskRedactsSensitiveKeys(t *testing.T) {
	if got := Mask("auth_secret", "shhh"); got != "***" {
		t.Errorf("Mask(auth_secret) = %v, want ***", got)
	}
	if got := Mask("signature", "abc123"); got != "***" {
		t.Errorf("Mask(signature) = %v, want ***", got)
	}
}

func TestMaskPartiallyMasksEmail(t *testing.T) {
	got := Mask("email", "jdoe@example.com")
	if got != "jd***@example.com" {
		t.Errorf("Mask(email) = %v", got)
	}
}

func TestMaskPartiallyMasksPhone(t *testing.T) {
	got := Mask("phone", "13812345678")
	if got != "138****5678" {
		t.Errorf("Mask(phone) = %v", got)
	}
}

func TestMaskLeavesOrdinaryValuesAlone(t *testing.T) {
	if got := Mask("status", "active"); got != "active" {
		t.Errorf("Mask(status) = %v, want unchanged", got)
	}
}
