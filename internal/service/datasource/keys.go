// Package datasource holds the client side of data-source management:
// collecting API keys to forward and testing source connections.
package datasource

import (
	"slices"
	"strings"

	"github.com/vertextoedge/stockfill/internal/domain"
)

const msgNoKeys = "请至少输入一个API密钥"

// envKeySuffix is appended to the upper-cased source name in env files,
// e.g. ALPHA_VANTAGE_API_KEY
const envKeySuffix = "_API_KEY"

// KeysFromEnv picks the keyed sources out of a parsed env file
func KeysFromEnv(env map[string]string) map[string]string {
	keys := make(map[string]string)
	for _, source := range domain.KeyedSources {
		if v, ok := env[strings.ToUpper(source)+envKeySuffix]; ok {
			keys[source] = v
		}
	}
	return keys
}

// CollectKeys merges key sets, later sets winning, and drops blank values.
// Unknown sources are rejected so a typo never reaches the server.
func CollectKeys(sets ...map[string]string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, set := range sets {
		for source, key := range set {
			if !slices.Contains(domain.KeyedSources, source) {
				return nil, domain.NewValidationError(domain.ErrInvalidInput,
					"unknown data source "+source+", expected one of "+strings.Join(domain.KeyedSources, ", "))
			}
			if key = strings.TrimSpace(key); key != "" {
				keys[source] = key
			}
		}
	}
	if len(keys) == 0 {
		return nil, domain.NewValidationError(domain.ErrInvalidInput, msgNoKeys)
	}
	return keys, nil
}
