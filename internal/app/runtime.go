package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "MERIDIAN_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether the process runs under go test. main() exits
// early in that case so package tests never open real connections.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}
