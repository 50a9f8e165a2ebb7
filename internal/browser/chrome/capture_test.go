package chrome

import (
	"strings"
	"testing"

	"github.com/chromedp/cdproto/network"

	"github.com/nao1215/cookiecrawl/internal/model"
)

func request(id, url string, headers network.Headers) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Request:   &network.Request{URL: url, Method: "GET", Headers: headers},
	}
}

func redirect(id, url string, status int64, headers network.Headers) *network.EventRequestWillBeSent {
	ev := request(id, url, nil)
	ev.RedirectResponse = &network.Response{Status: status, Headers: headers}
	return ev
}

func response(id string, status int64, headers network.Headers) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Response:  &network.Response{Status: status, Headers: headers},
	}
}

func responseExtra(id string, status int64, headers network.Headers) *network.EventResponseReceivedExtraInfo {
	return &network.EventResponseReceivedExtraInfo{
		RequestID:  network.RequestID(id),
		StatusCode: status,
		Headers:    headers,
	}
}

func requestExtra(id string, headers network.Headers) *network.EventRequestWillBeSentExtraInfo {
	return &network.EventRequestWillBeSentExtraInfo{
		RequestID: network.RequestID(id),
		Headers:   headers,
	}
}

func header(t *testing.T, h *model.Headers, name string) string {
	t.Helper()

	if h == nil {
		t.Fatalf("no response headers, wanted %s", name)
	}
	v, _ := h.Get(name)
	return v
}

func TestCaptureExtraInfoOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		feed  func(c *capture)
		wantC string
		wantS string
	}{
		{
			name: "extra info after the main events",
			feed: func(c *capture) {
				c.requestWillBeSent(request("1", "https://example.com/", network.Headers{"Accept": "*/*"}))
				c.requestExtraInfo(requestExtra("1", network.Headers{"Cookie": "a=1"}))
				c.responseReceived(response("1", 200, network.Headers{"Content-Type": "text/html"}))
				c.responseExtraInfo(responseExtra("1", 200, network.Headers{"Set-Cookie": "b=2"}))
			},
			wantC: "a=1",
			wantS: "b=2",
		},
		{
			name: "extra info before the main events",
			feed: func(c *capture) {
				c.requestExtraInfo(requestExtra("1", network.Headers{"Cookie": "a=1"}))
				c.responseExtraInfo(responseExtra("1", 200, network.Headers{"Set-Cookie": "b=2"}))
				c.requestWillBeSent(request("1", "https://example.com/", network.Headers{"Accept": "*/*"}))
				c.responseReceived(response("1", 200, network.Headers{"Content-Type": "text/html"}))
			},
			wantC: "a=1",
			wantS: "b=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newCapture()
			tt.feed(c)
			got := c.snapshot()
			if len(got) != 1 {
				t.Fatalf("got %d exchanges, want 1", len(got))
			}
			ex := got[0]
			if v, _ := ex.RequestHeaders.Get("cookie"); v != tt.wantC {
				t.Errorf("cookie = %q, want %q", v, tt.wantC)
			}
			if v, _ := ex.RequestHeaders.Get("accept"); v != "*/*" {
				t.Errorf("accept = %q, want */*", v)
			}
			if v := header(t, ex.ResponseHeaders, "set-cookie"); v != tt.wantS {
				t.Errorf("set-cookie = %q, want %q", v, tt.wantS)
			}
			if v := header(t, ex.ResponseHeaders, "content-type"); v != "text/html" {
				t.Errorf("content-type = %q, want text/html", v)
			}
			if ex.StatusCode != 200 {
				t.Errorf("status = %d, want 200", ex.StatusCode)
			}
		})
	}
}

func TestCaptureExtraInfoTakesPrecedence(t *testing.T) {
	t.Parallel()

	c := newCapture()
	c.requestWillBeSent(request("1", "https://example.com/", nil))
	c.responseReceived(response("1", 200, network.Headers{"Set-Cookie": "filtered=1"}))
	c.responseExtraInfo(responseExtra("1", 200, network.Headers{"set-cookie": "raw=1"}))

	ex := c.snapshot()[0]
	if got := ex.ResponseHeaders.Values("set-cookie"); len(got) != 1 || got[0] != "raw=1" {
		t.Errorf("set-cookie values = %v, want [raw=1]", got)
	}
}

func TestCaptureRedirectHops(t *testing.T) {
	t.Parallel()

	c := newCapture()
	c.requestWillBeSent(request("7", "https://example.com/", nil))
	c.responseExtraInfo(responseExtra("7", 302, network.Headers{
		"Location":   "https://www.example.com/",
		"Set-Cookie": "hop=1; Path=/",
	}))
	c.requestWillBeSent(redirect("7", "https://www.example.com/", 302, network.Headers{
		"Location": "https://www.example.com/",
	}))
	c.responseReceived(response("7", 200, network.Headers{"Content-Type": "text/html"}))
	c.responseExtraInfo(responseExtra("7", 200, network.Headers{"Set-Cookie": "final=1"}))

	got := c.snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d exchanges, want 2", len(got))
	}

	first, second := got[0], got[1]
	if first.RequestURL != "https://example.com/" || second.RequestURL != "https://www.example.com/" {
		t.Fatalf("unexpected hop order %q, %q", first.RequestURL, second.RequestURL)
	}
	if first.StatusCode != 302 {
		t.Errorf("first hop status = %d, want 302", first.StatusCode)
	}
	if v := header(t, first.ResponseHeaders, "location"); v != "https://www.example.com/" {
		t.Errorf("first hop location = %q", v)
	}
	if v := header(t, first.ResponseHeaders, "set-cookie"); v != "hop=1; Path=/" {
		t.Errorf("first hop set-cookie = %q", v)
	}
	if second.StatusCode != 200 {
		t.Errorf("second hop status = %d, want 200", second.StatusCode)
	}
	if v := header(t, second.ResponseHeaders, "set-cookie"); v != "final=1" {
		t.Errorf("second hop set-cookie = %q", v)
	}
	if _, ok := second.ResponseHeaders.Get("location"); ok {
		t.Error("second hop should not carry the redirect location")
	}
}

func TestCaptureRedirectExtraInfoBeforeRequest(t *testing.T) {
	t.Parallel()

	c := newCapture()
	c.responseExtraInfo(responseExtra("7", 302, network.Headers{"Set-Cookie": "hop=1"}))
	c.requestWillBeSent(request("7", "https://example.com/", nil))
	c.requestWillBeSent(redirect("7", "https://www.example.com/", 302, nil))
	c.responseReceived(response("7", 200, nil))
	c.responseExtraInfo(responseExtra("7", 200, network.Headers{"Set-Cookie": "final=1"}))

	got := c.snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d exchanges, want 2", len(got))
	}
	if v := header(t, got[0].ResponseHeaders, "set-cookie"); v != "hop=1" {
		t.Errorf("first hop set-cookie = %q, want hop=1", v)
	}
	if v := header(t, got[1].ResponseHeaders, "set-cookie"); v != "final=1" {
		t.Errorf("second hop set-cookie = %q, want final=1", v)
	}
}

func TestCaptureNoResponse(t *testing.T) {
	t.Parallel()

	c := newCapture()
	c.requestWillBeSent(request("1", "https://blocked.example/", nil))
	c.requestWillBeSent(&network.EventRequestWillBeSent{RequestID: "2"})

	got := c.snapshot()
	if len(got) != 1 {
		t.Fatalf("got %d exchanges, want 1", len(got))
	}
	if got[0].HasResponse() {
		t.Error("exchange without a response should have nil response headers")
	}
}

func TestCaptureMultipleSetCookies(t *testing.T) {
	t.Parallel()

	names := []string{"a", "b", "c", "d"}
	lines := make([]string, 0, len(names))
	for _, n := range names {
		lines = append(lines, n+"="+strings.Repeat("x", 200)+"; Path=/")
	}

	c := newCapture()
	c.requestWillBeSent(request("1", "https://tracker.example/pixel", nil))
	c.responseExtraInfo(responseExtra("1", 200, network.Headers{"set-cookie": strings.Join(lines, "\n")}))
	c.responseReceived(response("1", 200, nil))

	values := c.snapshot()[0].ResponseHeaders.Values("set-cookie")
	if len(values) != len(lines) {
		t.Fatalf("got %d set-cookie values, want %d", len(values), len(lines))
	}
	for i, v := range values {
		if v != lines[i] {
			t.Errorf("value %d = %.20q..., want %.20q...", i, v, lines[i])
		}
	}
}

func TestMergeHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		primary  network.Headers
		fallback network.Headers
		want     map[string]string
	}{
		{
			name:     "primary wins on conflicting names",
			primary:  network.Headers{"Cookie": "raw=1"},
			fallback: network.Headers{"cookie": "filtered=1", "Accept": "*/*"},
			want:     map[string]string{"cookie": "raw=1", "accept": "*/*"},
		},
		{
			name:     "fallback only",
			fallback: network.Headers{"User-Agent": "ua"},
			want:     map[string]string{"user-agent": "ua"},
		},
		{
			name: "both empty",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := mergeHeaders(tt.primary, tt.fallback)
			if h.Len() != len(tt.want) {
				t.Errorf("got %d headers, want %d", h.Len(), len(tt.want))
			}
			for name, want := range tt.want {
				if got, _ := h.Get(name); got != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
			}
		})
	}
}
