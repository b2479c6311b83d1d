package instance

import "os"

// GetID names this gateway replica in logs: STOREFRONT_INSTANCE_ID, then the platform's
// DYNO or HOSTNAME, then "local".
func GetID() string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
