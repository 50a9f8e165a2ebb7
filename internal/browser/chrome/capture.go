package chrome

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/nao1215/cookiecrawl/internal/model"
)

// exchangeState accumulates the events belonging to one request hop.
// The ExtraInfo events carry the headers the browser actually sent and
// received, including cookie and set-cookie, and may arrive before or
// after their main event.
type exchangeState struct {
	requestID    network.RequestID
	url          string
	method       string
	timestamp    time.Time
	request      network.Headers
	requestExtra network.Headers
	response     network.Headers
	respExtra    network.Headers
	hasResponse  bool
	statusCode   int
}

// capture records network events. It is written from the chromedp event
// goroutine and read by CapturedExchanges.
type capture struct {
	mu        sync.Mutex
	exchanges []*exchangeState
	latest    map[network.RequestID]*exchangeState
	pendReq   map[network.RequestID]network.Headers
	pendResp  map[network.RequestID]network.Headers
}

func newCapture() *capture {
	return &capture{
		latest:   make(map[network.RequestID]*exchangeState),
		pendReq:  make(map[network.RequestID]network.Headers),
		pendResp: make(map[network.RequestID]network.Headers),
	}
}

func (c *capture) requestWillBeSent(ev *network.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// A redirect reuses the request ID; the response that caused it
	// belongs to the previous hop.
	if prev, ok := c.latest[ev.RequestID]; ok && ev.RedirectResponse != nil {
		prev.response = ev.RedirectResponse.Headers
		prev.statusCode = int(ev.RedirectResponse.Status)
		prev.hasResponse = true
		if h, ok := c.pendResp[ev.RequestID]; ok && prev.respExtra == nil {
			prev.respExtra = h
			delete(c.pendResp, ev.RequestID)
		}
	}

	ts := time.Now()
	if ev.WallTime != nil {
		ts = ev.WallTime.Time()
	}
	st := &exchangeState{
		requestID: ev.RequestID,
		url:       ev.Request.URL,
		method:    ev.Request.Method,
		timestamp: ts,
		request:   ev.Request.Headers,
	}
	if h, ok := c.pendReq[ev.RequestID]; ok {
		st.requestExtra = h
		delete(c.pendReq, ev.RequestID)
	}
	c.exchanges = append(c.exchanges, st)
	c.latest[ev.RequestID] = st
}

func (c *capture) requestExtraInfo(ev *network.EventRequestWillBeSentExtraInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.latest[ev.RequestID]; ok && st.requestExtra == nil {
		st.requestExtra = ev.Headers
		return
	}
	c.pendReq[ev.RequestID] = ev.Headers
}

func (c *capture) responseReceived(ev *network.EventResponseReceived) {
	if ev.Response == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.latest[ev.RequestID]
	if !ok {
		return
	}
	st.response = ev.Response.Headers
	st.statusCode = int(ev.Response.Status)
	st.hasResponse = true
	if h, ok := c.pendResp[ev.RequestID]; ok && st.respExtra == nil {
		st.respExtra = h
		delete(c.pendResp, ev.RequestID)
	}
}

func (c *capture) responseExtraInfo(ev *network.EventResponseReceivedExtraInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.latest[ev.RequestID]; ok && st.respExtra == nil {
		st.respExtra = ev.Headers
		st.hasResponse = true
		if st.statusCode == 0 {
			st.statusCode = int(ev.StatusCode)
		}
		return
	}
	c.pendResp[ev.RequestID] = ev.Headers
}

// snapshot converts the recorded state into exchanges, in request order.
func (c *capture) snapshot() []model.NetworkExchange {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.NetworkExchange, 0, len(c.exchanges))
	for _, st := range c.exchanges {
		ex := model.NetworkExchange{
			RequestID:      string(st.requestID),
			RequestURL:     st.url,
			Method:         st.method,
			Timestamp:      st.timestamp,
			RequestHeaders: mergeHeaders(st.requestExtra, st.request),
			StatusCode:     st.statusCode,
		}
		if st.hasResponse {
			h := mergeHeaders(st.respExtra, st.response)
			ex.ResponseHeaders = &h
		}
		out = append(out, ex)
	}
	return out
}

// mergeHeaders stores every header of primary, then the headers of
// fallback whose names primary lacks.
func mergeHeaders(primary, fallback network.Headers) model.Headers {
	var h model.Headers
	for _, name := range slices.Sorted(maps.Keys(primary)) {
		h.Set(name, fmt.Sprint(primary[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(fallback)) {
		if _, exists := h.Get(name); exists {
			continue
		}
		h.Set(name, fmt.Sprint(fallback[name]))
	}
	return h
}
