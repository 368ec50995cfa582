// File: internal/driver/stealth.go
package driver

import _ "embed"

// stealthInitScript runs before any page script on every new document and
// removes the headless automation markers the runtime would otherwise expose.
//
//go:embed stealth.js
var stealthInitScript string
