package config

import (
	"context"
	"testing"
)

var _ SecretProvider = (*EnvVarProvider)(nil)

func TestEnvVarProvider(t *testing.T) {
	t.Setenv("REMINDERS_TEST_SECRET_A", "value-alpha")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(),
		[]string{"REMINDERS_TEST_SECRET_A", "REMINDERS_TEST_DEFINITELY_NOT_SET"})
	if err != nil {
		t.Fatalf("GetParametersBatch returned error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 result, got %v", result)
	}
	if result["REMINDERS_TEST_SECRET_A"] != "value-alpha" {
		t.Errorf("result = %v", result)
	}
}
