package browser

import (
	"encoding/json"
	"fmt"

	"github.com/applyflow/ds160-runner/internal/engine"
)

// jsString safely embeds a Go string as a JS string literal.
func jsString(v string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

// dispatchEventsScript fires the named DOM events on the selected element.
// ASP.NET pages hang their postback triggers off these handlers, so edits
// made via CDP must replay them.
func dispatchEventsScript(selector string, events ...string) string {
	evs, _ := json.Marshal(events)
	return fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return false;
		for (const name of %s) {
			el.dispatchEvent(new Event(name, { bubbles: true }));
		}
		return true;
	})()`, jsString(selector), string(evs))
}

// checkedStateScript reads a checkbox/radio checked state.
func checkedStateScript(selector string) string {
	return fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		return !!(el && el.checked);
	})()`, jsString(selector))
}

// textAllScript collects innerText for every match, in document order.
func textAllScript(selector string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(el => el.innerText)`, jsString(selector))
}

// errNavigationTimeout tags a load failure with the engine's taxonomy so
// Classify grades it step-fatal.
func errNavigationTimeout(cause error) error {
	return fmt.Errorf("%w: %v", engine.ErrNavigationTimeout, cause)
}
