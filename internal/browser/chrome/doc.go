// Package chrome implements browser.Automation on top of chromedp.
//
// Each session starts its own Chrome process with network capture enabled.
// Request and response headers are collected from the Network domain,
// including the ExtraInfo events that carry cookie and set-cookie headers.
// Site isolation is disabled so that cross-origin iframes are reachable
// from the top-level DOM tree.
package chrome
