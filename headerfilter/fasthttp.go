package headerfilter

import "github.com/valyala/fasthttp"

// FromFastHTTPRequest copies the headers of a fasthttp request in wire order
func FromFastHTTPRequest(h *fasthttp.RequestHeader) *Headers {
	out := NewHeaders()
	h.VisitAll(func(key, value []byte) {
		out.Add(string(key), string(value))
	})
	return out
}

// ApplyToFastHTTPRequest replaces the headers of a fasthttp request with headers
func ApplyToFastHTTPRequest(h *fasthttp.RequestHeader, headers *Headers) {
	var existing []string
	h.VisitAll(func(key, _ []byte) {
		existing = append(existing, string(key))
	})
	for _, key := range existing {
		h.Del(key)
	}
	for _, e := range headers.Entries() {
		for _, v := range e.Values {
			h.Add(e.Name, v)
		}
	}
}

// FastHTTPHandler applies the chain to request headers before calling next
func (c *Chain) FastHTTPHandler(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !c.skips(string(ctx.Path())) {
			filtered := c.Run(FromFastHTTPRequest(&ctx.Request.Header))
			ApplyToFastHTTPRequest(&ctx.Request.Header, filtered)
		}
		next(ctx)
	}
}
