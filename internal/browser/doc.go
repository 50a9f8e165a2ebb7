// Package browser is the boundary between the crawler and a controllable
// web browser.
//
// Automation, Session and Element describe the capabilities the crawler
// needs: open a session, navigate, capture network exchanges, take a
// screenshot, enumerate and switch frames, find elements by text and click
// them. The chrome subpackage implements them with the Chrome DevTools
// Protocol; browsertest implements them over static HTML fixtures.
//
// Controller wraps an Automation with bounded waits and turns navigation
// failures into NavigationError values instead of plain errors.
package browser
