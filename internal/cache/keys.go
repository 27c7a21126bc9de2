package cache

import "fmt"

func EntitlementKey(resourceKey string) string {
	return fmt.Sprintf("entitlement:%s", resourceKey)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
