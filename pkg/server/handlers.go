package server

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/techop/httpmetrics/pkg/httputil"
	"github.com/techop/httpmetrics/pkg/metricsjson"
)

// Query parameters accepted by /metrics.
const (
	ParamPretty      = "pretty"
	ParamFullSamples = "full-samples"
	ParamFilter      = "filter"
)

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Metrics</title></head>
<body>
<h1>Operational Menu</h1>
<ul>
<li><a href="./metrics?pretty=true">Metrics</a></li>
<li><a href="./threads">Threads</a></li>
</ul>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	httputil.NoCache(w)
	httputil.WriteHTML(w, http.StatusOK, []byte(indexPage))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	httputil.NoCache(w)

	q := r.URL.Query()
	opts := metricsjson.Options{
		Pretty:      isTrue(q.Get(ParamPretty)),
		FullSamples: s.fullSamples,
		Filter:      q.Get(ParamFilter),
	}
	if q.Has(ParamFullSamples) {
		opts.FullSamples = isTrue(q.Get(ParamFullSamples))
	}

	body, err := s.serializer.Serialize(s.registry, opts)
	if errors.Is(err, metricsjson.ErrBadFilter) {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	if err != nil {
		s.log.Warn("failed to serialize metrics", "error", err)
		httputil.WriteInternalError(w, "serialize_failed", "metrics could not be encoded")
		return
	}
	httputil.WriteJSONBytes(w, http.StatusOK, body)
}

func (s *Server) handleThreads(w http.ResponseWriter, _ *http.Request) {
	httputil.NoCache(w)

	if s.dumpLimit != nil && !s.dumpLimit.Allow() {
		stats := s.dumpLimit.Stats()
		s.log.Debug("goroutine dump rate limited", "available", stats.Available, "burst", stats.Max, "rate", stats.Rate)
		retry := math.Ceil(s.dumpLimit.RetryAfter().Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(int(max(retry, 1))))
		httputil.WriteError(w, http.StatusTooManyRequests, "rate_limited", "goroutine dumps are rate limited")
		return
	}

	var buf bytes.Buffer
	if err := s.collector.Collect().WriteText(&buf); err != nil {
		s.log.Warn("failed to render goroutine dump", "error", err)
		httputil.WriteInternalError(w, "thread_dump_failed", "goroutine dump could not be rendered")
		return
	}
	httputil.WriteText(w, http.StatusOK, buf.Bytes())
}

// isTrue follows the lenient boolean parsing of query flags: only "true",
// in any case, enables a flag.
func isTrue(v string) bool {
	return strings.EqualFold(v, "true")
}
