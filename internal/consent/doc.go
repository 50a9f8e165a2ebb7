// Package consent dismisses cookie-consent banners.
//
// The Engine searches a page for a control whose visible text matches one of
// a prioritized list of consent words ("Accept all", "Alle akzeptieren", ...)
// and clicks the first visible match. Nested frames are searched before the
// top-level document, because most consent management platforms render
// their banner inside an iframe.
package consent
