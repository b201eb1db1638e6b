package support

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("IPSIFT_TEST_ENV", "value")
	if got := GetEnv("IPSIFT_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("GetEnv returned %s, want value", got)
	}

	if got := GetEnv("IPSIFT_TEST_ENV_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv returned %s, want fallback", got)
	}

	t.Setenv("IPSIFT_TEST_EMPTY", "")
	if got := GetEnv("IPSIFT_TEST_EMPTY", "fallback"); got != "" {
		t.Fatalf("GetEnv returned %q for a set but empty variable, want empty", got)
	}
}

func TestGetEnvTyped(t *testing.T) {
	t.Setenv("IPSIFT_TEST_INT", " 42 ")
	t.Setenv("IPSIFT_TEST_BAD_INT", "forty")
	t.Setenv("IPSIFT_TEST_INT64", "9000000000")
	t.Setenv("IPSIFT_TEST_DURATION", "90s")
	t.Setenv("IPSIFT_TEST_BAD_DURATION", "soon")
	t.Setenv("IPSIFT_TEST_BOOL", "true")
	t.Setenv("IPSIFT_TEST_BAD_BOOL", "maybe")

	if got := GetEnvInt("IPSIFT_TEST_INT", 1); got != 42 {
		t.Fatalf("GetEnvInt returned %d, want 42", got)
	}
	if got := GetEnvInt("IPSIFT_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt returned %d for malformed input, want fallback 7", got)
	}
	if got := GetEnvInt64("IPSIFT_TEST_INT64", 0); got != 9000000000 {
		t.Fatalf("GetEnvInt64 returned %d, want 9000000000", got)
	}
	if got := GetEnvDuration("IPSIFT_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("GetEnvDuration returned %s, want 1m30s", got)
	}
	if got := GetEnvDuration("IPSIFT_TEST_BAD_DURATION", time.Second); got != time.Second {
		t.Fatalf("GetEnvDuration returned %s for malformed input, want fallback", got)
	}
	if got := GetEnvBool("IPSIFT_TEST_BOOL", false); !got {
		t.Fatal("GetEnvBool returned false, want true")
	}
	if got := GetEnvBool("IPSIFT_TEST_BAD_BOOL", true); !got {
		t.Fatal("GetEnvBool returned false for malformed input, want fallback true")
	}
}
