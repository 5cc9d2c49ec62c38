// internal/antidetect/stealth.go
package antidetect

import (
	"fmt"

	"github.com/inquilabee/browsertabs/internal/scripts"
)

// StealthScript is registered to run in every new document before page
// scripts execute. It hides the automation flag and fills in properties
// headless Chrome leaves empty. Complete concealment is not achievable;
// this covers the checks commodity detection scripts actually run.
const StealthScript = `
Object.defineProperty(navigator, 'webdriver', {
	get: () => undefined,
});
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', {
	get: () => ['en-US', 'en'],
});
Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3, 4, 5],
});
`

// ScriptRunner is the slice of a tab the probe needs.
type ScriptRunner interface {
	RunJS(js string, out any) error
}

// DetectAutomation reports whether the page can still see the automation
// flag. True means the session is detectable, either because stealth is
// disabled or because the concealment script did not take effect.
func DetectAutomation(runner ScriptRunner) (bool, error) {
	var flagged bool
	if err := runner.RunJS(scripts.WebdriverFlag, &flagged); err != nil {
		return false, fmt.Errorf("probing automation flag: %w", err)
	}
	return flagged, nil
}
