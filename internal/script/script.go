// Package script holds the JavaScript evaluated against the rendering
// surface. Every script is a function expression; arguments are passed by
// the controller, never spliced into the source.
package script

import (
	"fmt"

	"github.com/hazyhaar/viswatch/locator"
)

// FrameOffset sums the client-rect origins of every frame element between
// the current window and window.top. It runs as one evaluation because each
// step reads the parent document of the window it is currently visiting.
const FrameOffset = `() => {
	let win = window;
	let x = 0, y = 0;
	while (win !== window.top) {
		const parent = win.parent;
		const owners = [
			...parent.document.getElementsByTagName("frame"),
			...parent.document.getElementsByTagName("iframe"),
		];
		for (const el of owners) {
			if (el.contentWindow === win) {
				const r = el.getBoundingClientRect();
				x += r.x;
				y += r.y;
			}
		}
		win = parent;
	}
	return {x: x, y: y};
}`

// DevicePixelRatio reads the surface density.
const DevicePixelRatio = `() => window.devicePixelRatio || 1`

// Rect returns a script resolving the locator's first match in the current
// document and returning its client rect. It expects the raw selector as
// its single argument and throws when nothing matches.
func Rect(s locator.Strategy) string {
	return fmt.Sprintf(`(v) => {
	const e = %s;
	const r = e.getBoundingClientRect();
	return {left: r.left, top: r.top, right: r.right, bottom: r.bottom};
}`, s.Query())
}

// Find returns a script resolving the locator's first match, or null.
func Find(s locator.Strategy) string {
	return fmt.Sprintf(`(v) => %s || null`, s.Query())
}

// ClientRect returns the receiver element's client rect.
const ClientRect = `function() {
	const r = this.getBoundingClientRect();
	return {left: r.left, top: r.top, right: r.right, bottom: r.bottom};
}`
