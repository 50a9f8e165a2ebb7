package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTruncateHeaderValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantLen int
	}{
		{name: "empty value", value: "", wantLen: 0},
		{name: "short value", value: "text/html", wantLen: 9},
		{name: "exactly the limit", value: strings.Repeat("a", MaxHeaderValueLength), wantLen: MaxHeaderValueLength},
		{name: "one over the limit", value: strings.Repeat("a", MaxHeaderValueLength+1), wantLen: MaxHeaderValueLength},
		{name: "far over the limit", value: strings.Repeat("b", 10*MaxHeaderValueLength), wantLen: MaxHeaderValueLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := TruncateHeaderValue(tt.value)
			if len(got) != tt.wantLen {
				t.Errorf("expected length %d, got %d", tt.wantLen, len(got))
			}
			if !strings.HasPrefix(tt.value, got) {
				t.Error("truncated value is not a prefix of the input")
			}
			if again := TruncateHeaderValue(got); again != got {
				t.Error("truncation is not idempotent")
			}
			if len(tt.value) <= MaxHeaderValueLength && got != tt.value {
				t.Error("value within the limit was modified")
			}
		})
	}
}

func TestHeaders(t *testing.T) {
	t.Parallel()

	t.Run("names are lower-cased on insertion", func(t *testing.T) {
		t.Parallel()

		var h Headers
		h.Set("Content-Type", "text/html")

		if v, ok := h.Get("content-type"); !ok || v != "text/html" {
			t.Errorf("expected text/html, got %q (ok=%v)", v, ok)
		}
		if v, ok := h.Get("CONTENT-TYPE"); !ok || v != "text/html" {
			t.Errorf("expected case-insensitive lookup, got %q (ok=%v)", v, ok)
		}
		for name := range h.All() {
			if name != "content-type" {
				t.Errorf("expected stored name content-type, got %q", name)
			}
		}
	})

	t.Run("repeated names are joined with a newline", func(t *testing.T) {
		t.Parallel()

		var h Headers
		h.Set("Set-Cookie", "a=1")
		h.Set("set-cookie", "b=2")

		if h.Len() != 1 {
			t.Fatalf("expected 1 entry, got %d", h.Len())
		}
		values := h.Values("set-cookie")
		if len(values) != 2 || values[0] != "a=1" || values[1] != "b=2" {
			t.Errorf("unexpected values %v", values)
		}
	})

	t.Run("long values are truncated when stored", func(t *testing.T) {
		t.Parallel()

		var h Headers
		h.Set("x-long", strings.Repeat("x", 2000))

		v, _ := h.Get("x-long")
		if len(v) != MaxHeaderValueLength {
			t.Errorf("expected %d bytes, got %d", MaxHeaderValueLength, len(v))
		}
	})

	t.Run("each value is capped on its own and none is lost", func(t *testing.T) {
		t.Parallel()

		var h Headers
		h.Set("set-cookie", strings.Repeat("a", 400))
		h.Set("set-cookie", strings.Repeat("b", 400)+"\n"+strings.Repeat("c", 2*MaxHeaderValueLength))
		h.Set("Set-Cookie", "d=1")

		values := h.Values("set-cookie")
		if len(values) != 4 {
			t.Fatalf("expected 4 values, got %d", len(values))
		}
		wantLens := []int{400, 400, MaxHeaderValueLength, 3}
		for i, v := range values {
			if len(v) != wantLens[i] {
				t.Errorf("value %d: expected %d bytes, got %d", i, wantLens[i], len(v))
			}
		}
		if values[2][0] != 'c' || values[3] != "d=1" {
			t.Errorf("values out of order: %.10q, %q", values[2], values[3])
		}
	})

	t.Run("newline joined values are split on insertion", func(t *testing.T) {
		t.Parallel()

		var h Headers
		h.Set("set-cookie", "a=1\nb=2")

		values := h.Values("set-cookie")
		if len(values) != 2 || values[0] != "a=1" || values[1] != "b=2" {
			t.Errorf("unexpected values %v", values)
		}
		if v, _ := h.Get("set-cookie"); v != "a=1\nb=2" {
			t.Errorf("expected joined value, got %q", v)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		var h Headers
		if _, ok := h.Get("location"); ok {
			t.Error("expected missing header to report ok=false")
		}
		if h.Values("location") != nil {
			t.Error("expected nil values for missing header")
		}
	})

	t.Run("NewHeaders sorts map keys", func(t *testing.T) {
		t.Parallel()

		h := NewHeaders(map[string]string{"B": "2", "a": "1", "C": "3"})
		var names []string
		for name := range h.All() {
			names = append(names, name)
		}
		if strings.Join(names, ",") != "a,b,c" {
			t.Errorf("expected a,b,c got %v", names)
		}
	})
}

func TestHeadersJSON(t *testing.T) {
	t.Parallel()

	var h Headers
	h.Set("Location", "https://example.org/")
	h.Set("Cookie", "a=1; b=2")

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"location":"https://example.org/","cookie":"a=1; b=2"}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	var decoded Headers
	if err := json.Unmarshal([]byte(`{"Z":"1","A":"2"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var names []string
	for name := range decoded.All() {
		names = append(names, name)
	}
	if strings.Join(names, ",") != "z,a" {
		t.Errorf("expected document order z,a got %v", names)
	}

	var multi Headers
	multi.Set("set-cookie", "a=1")
	multi.Set("set-cookie", "b=2")
	data, err = json.Marshal(multi)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var roundTrip Headers
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := roundTrip.Values("set-cookie"); len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Errorf("repeated values lost in JSON: %v", got)
	}

	if err := json.Unmarshal([]byte(`[1,2]`), &decoded); err == nil {
		t.Error("expected error for non-object JSON")
	}
}
