package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"

	"github.com/bhatti/gateway-header-filter/headerfilter"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server is a reverse proxy that runs the request chain on outbound headers
// and the response chain on upstream response headers. Chains can be swapped
// while serving.
type Server struct {
	router   chi.Router
	target   *url.URL
	request  atomic.Pointer[headerfilter.Chain]
	response atomic.Pointer[headerfilter.Chain]
	logger   *logrus.Entry
}

// New creates a proxy for upstream. Metrics from gatherer are served on /metrics.
func New(upstream string, gatherer prometheus.Gatherer, logger *logrus.Logger) (*Server, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid upstream %q", upstream)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.Errorf("upstream %q must be an absolute URL", upstream)
	}

	s := &Server{
		target: target,
		logger: logger.WithField("upstream", target.String()),
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		director(req)
		req.Header = headerfilter.ToHTTPHeader(s.request.Load().Run(headerfilter.FromHTTPHeader(req.Header)))
	}
	rp.ModifyResponse = func(resp *http.Response) error {
		resp.Header = headerfilter.ToHTTPHeader(s.response.Load().Run(headerfilter.FromHTTPHeader(resp.Header)))
		return nil
	}
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("upstream request failed")
		w.WriteHeader(http.StatusBadGateway)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/*", rp)
	s.router = r

	return s, nil
}

// SetChains replaces the request and response chains. A nil chain passes
// headers through unchanged.
func (s *Server) SetChains(request, response *headerfilter.Chain) {
	s.request.Store(request)
	s.response.Store(response)
	s.logger.WithFields(logrus.Fields{
		"request_filters":  request.Len(),
		"response_filters": response.Len(),
	}).Info("header filter chains updated")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
