package config

import "context"

// SecretProvider resolves secret identifiers (SSM paths in deployed
// environments, variable names locally) into plaintext values. Keys that
// cannot be found are omitted from the result.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretProvider picks the provider for appEnv: environment lookups for
// local, SSM for everything else.
func NewSecretProvider(appEnv, region string) SecretProvider {
	if appEnv == localEnv {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region)
}
