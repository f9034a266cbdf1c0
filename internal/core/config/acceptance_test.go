package config

import (
	"testing"
)

// TestAcceptanceCriteria verifies secret handling and source precedence.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: LK_HMAC_SECRET accessible via HMACSecrets and accepted by LoadConfig", func(t *testing.T) {
		t.Setenv("LK_HMAC_SECRET", testSecretID+":"+testSecretValue)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("AC1 FAIL: HMACSecrets error: %v", err)
		}
		if _, ok := secrets[testSecretID]; !ok {
			t.Fatal("AC1 FAIL: Secret not accessible")
		}
		if _, err := LoadConfig("", nil); err != nil {
			t.Fatalf("AC1 FAIL: environment secret rejected by LoadConfig: %v", err)
		}
	})

	t.Run("AC2: Config file with hmac_secret rejected with clear error", func(t *testing.T) {
		for _, content := range []string{
			"rules_api:\n  host: \"localhost\"\n  port: 8080\n  hmac_secret: \"should_be_rejected\"\n",
			"hmac_secret: \"should_be_rejected\"\n",
		} {
			_, err := LoadConfig(writeConfig(t, content), nil)
			if err == nil {
				t.Fatal("AC2 FAIL: Expected error for secret in config file")
			}
			if err.Error() != "HMAC secrets not allowed in config files (use LK_HMAC_SECRET environment variable)" {
				t.Fatalf("AC2 FAIL: Wrong error message: %v", err)
			}
		}
	})

	t.Run("AC3: Environment overrides config file", func(t *testing.T) {
		t.Setenv("LK_RULES_API_PORT", "8080")

		cfg, err := LoadConfig(writeConfig(t, "rules_api:\n  port: 9090\n"), nil)
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.RulesAPI.Port != 8080 {
			t.Fatalf("AC3 FAIL: Environment should override config file. Expected 8080, got %d", cfg.RulesAPI.Port)
		}
	})
}
