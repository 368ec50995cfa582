// File: internal/driver/driver_test.go
package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewportOrDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1366, viewportOrDefault(0, 1366))
	assert.Equal(t, 1366, viewportOrDefault(-5, 1366))
	assert.Equal(t, 1920, viewportOrDefault(1920, 1366))
}

func TestStealthScriptEmbedded(t *testing.T) {
	t.Parallel()
	assert.NotEmpty(t, stealthInitScript)
	assert.Contains(t, stealthInitScript, "webdriver", "the init script must cover the primary automation marker")
	assert.Contains(t, stealthInitScript, "plugins")
}
