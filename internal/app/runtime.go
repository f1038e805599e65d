package app

import (
	"os"
	"sync"
)

const testModeEnv = "SITEBUDGET_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether SITEBUDGET_TEST_MODE=1 was set at first use.
// Test mode turns off request logging, rate limiting and `serve`.
func InTestMode() bool {
	return testMode()
}
