// Package browsertest provides an in-memory browser.Automation backed by
// static HTML documents, for testing code that drives a browser.
//
// Frames are declared with a data-frame attribute naming another document
// of the fixture:
//
//	<iframe data-frame="cmp"></iframe>
//
// Elements are hidden by the hidden attribute or an inline display:none /
// visibility:hidden style on the element or any ancestor. An element with
// data-click-error="message" fails when clicked.
package browsertest
