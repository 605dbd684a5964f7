//go:build windows

package service

import (
	"bytes"
	"strings"
	"testing"
)

// TestPrintGuidance tests that the operator commands carry the configured values
func TestPrintGuidance(t *testing.T) {
	var buf bytes.Buffer
	PrintGuidance(&buf, "Cache", `C:\redis\redis-service.exe`, `C:\redis\cache.conf`)
	out := buf.String()

	want := []string{
		"it cannot be started directly",
		"  net start Cache\n",
		`  sc create Cache binPath= "C:\redis\redis-service.exe Cache C:\redis\cache.conf"`,
		"  sc delete Cache\n",
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("guidance missing %q:\n%s", w, out)
		}
	}
}
