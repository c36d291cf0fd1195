package headerfilter

import (
	"context"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
)

// Handler applies the chain to the request headers before calling next
func (c *Chain) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.skips(r.URL.Path) {
			r.Header = ToHTTPHeader(c.Run(FromHTTPHeader(r.Header)))
		}
		next.ServeHTTP(w, r)
	})
}

// MetadataAnnotator creates a grpc-gateway annotator that forwards the
// filtered request headers as metadata. With no names every header is
// forwarded.
func (c *Chain) MetadataAnnotator(names ...string) func(context.Context, *http.Request) metadata.MD {
	return func(ctx context.Context, req *http.Request) metadata.MD {
		if c.skips(req.URL.Path) {
			return nil
		}
		md := ToMetadata(c.Run(FromHTTPHeader(req.Header)), names...)
		if c.debug {
			c.logger.Debug("Annotated metadata: ", md)
		}
		return md
	}
}

// GatewayAnnotator creates a grpc-gateway annotator that runs the chain on
// the full request headers and names the output the way HeaderMatcher does:
// the passthrough names (Forwarded by default) as lower-case keys and every
// other header through runtime.DefaultHeaderMatcher. Use it with an incoming
// header matcher that rejects everything, otherwise raw and filtered values
// are both sent upstream.
func (c *Chain) GatewayAnnotator(names ...string) func(context.Context, *http.Request) metadata.MD {
	match := c.HeaderMatcher(names...)
	return func(ctx context.Context, req *http.Request) metadata.MD {
		if c.skips(req.URL.Path) {
			return nil
		}
		md := metadata.MD{}
		for _, e := range c.Run(FromHTTPHeader(req.Header)).Entries() {
			if key, ok := match(e.Name); ok {
				md.Append(key, e.Values...)
			}
		}
		if c.debug {
			c.logger.Debug("Annotated metadata: ", md)
		}
		return md
	}
}

// rejectHeaders is an incoming header matcher that forwards nothing
func rejectHeaders(string) (string, bool) {
	return "", false
}

// HeaderMatcher creates a header matcher for grpc-gateway that passes the
// named headers through as lower-case metadata keys. Forwarded is passed when
// no names are given.
func (c *Chain) HeaderMatcher(names ...string) func(string) (string, bool) {
	if len(names) == 0 {
		names = []string{ForwardedHeader}
	}
	passthrough := make(map[string]bool, len(names))
	for _, name := range names {
		passthrough[strings.ToLower(name)] = true
	}

	return func(key string) (string, bool) {
		lower := strings.ToLower(key)
		if passthrough[lower] {
			return lower, true
		}
		return runtime.DefaultHeaderMatcher(key)
	}
}

// ResponseModifier creates a forward-response option that applies the chain
// to the response headers
func (c *Chain) ResponseModifier() func(context.Context, http.ResponseWriter, proto.Message) error {
	return func(ctx context.Context, w http.ResponseWriter, _ proto.Message) error {
		replaceHTTPHeader(w.Header(), c.Run(FromHTTPHeader(w.Header())))
		return nil
	}
}

// UnaryServerInterceptor creates a gRPC unary server interceptor that applies
// the chain to the incoming metadata
func (c *Chain) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if c.skips(info.FullMethod) {
			return handler(ctx, req)
		}
		return handler(c.processIncomingMetadata(ctx), req)
	}
}

// StreamServerInterceptor creates a gRPC stream server interceptor that
// applies the chain to the incoming metadata
func (c *Chain) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if c.skips(info.FullMethod) {
			return handler(srv, ss)
		}
		wrappedStream := &wrappedServerStream{
			ServerStream: ss,
			ctx:          c.processIncomingMetadata(ss.Context()),
		}
		return handler(srv, wrappedStream)
	}
}

func (c *Chain) processIncomingMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return metadata.NewIncomingContext(ctx, ToMetadata(c.Run(FromMetadata(md))))
}

// wrappedServerStream wraps a grpc.ServerStream to provide custom context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// CreateGatewayMux creates a grpc-gateway ServeMux that filters request
// headers with request and response headers with response. Either chain may be nil.
//
// Incoming headers reach the backend only through the request chain's
// GatewayAnnotator. grpc-gateway still copies a raw Authorization header as
// "authorization" metadata; wrap the mux with request.Handler when a filter
// has to change or drop it.
func CreateGatewayMux(request, response *Chain, opts ...runtime.ServeMuxOption) *runtime.ServeMux {
	var allOpts []runtime.ServeMuxOption
	if request != nil {
		allOpts = append(allOpts,
			runtime.WithIncomingHeaderMatcher(rejectHeaders),
			runtime.WithMetadata(request.GatewayAnnotator()),
		)
	}
	if response != nil {
		allOpts = append(allOpts, runtime.WithForwardResponseOption(response.ResponseModifier()))
	}

	allOpts = append(allOpts, opts...)

	return runtime.NewServeMux(allOpts...)
}

func replaceHTTPHeader(dst http.Header, headers *Headers) {
	for key := range dst {
		delete(dst, key)
	}
	for key, values := range ToHTTPHeader(headers) {
		dst[key] = values
	}
}
