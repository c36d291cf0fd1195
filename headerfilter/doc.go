// Package headerfilter provides an ordered pipeline of header filters for
// reverse proxies, gateways and grpc-gateway.
//
// A filter receives a header set and returns a new one. A Chain runs its
// filters in ascending order, each filter seeing only the output of the one
// before it.
//
// # Basic Usage
//
//	chain, err := headerfilter.NewBuilder().
//		AddForwarded().
//		RemoveHeaders("X-Internal-Token").
//		Build()
//
//	filtered := chain.Run(headerfilter.FromHTTPHeader(req.Header))
//
// # Forwarded
//
// ForwardedHeadersFilter parses every Forwarded value into a hop record and
// writes it back as "key=value; key=value", one header value per record.
// Values that contain no key=value pair are dropped. Every other header is
// copied unchanged.
//
// # Configuration
//
// Chains can be declared in YAML or JSON and built with BuildChains:
//
//	request:
//	  - type: forwarded
//	  - type: remove
//	    hop_by_hop: true
//	  - type: mapping
//	    mappings:
//	      - from: X-User
//	        to: X-User-ID
//	        transforms:
//	          - name: trim_space
//
// # Integration
//
// A Chain can be used as net/http middleware (Handler), as fasthttp
// middleware (FastHTTPHandler), as gRPC interceptors, or plugged into a
// grpc-gateway mux with CreateGatewayMux.
package headerfilter
