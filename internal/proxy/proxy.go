package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Headers removed from proxied HTML so the upstream page can be framed
// inside the canvas. Stripping them is a deliberate trust trade-off of
// the embedding feature; deployments wanting a URL policy should front
// this endpoint with one.
var strippedHeaders = []string{
	"X-Frame-Options",
	"Content-Security-Policy",
	"Content-Security-Policy-Report-Only",
}

const defaultFetchTimeout = 30 * time.Second

type ServiceConfig struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Service fetches external pages server-side so they can be embedded
// cross-origin in the canvas, rewriting framing headers and injecting a
// navigation tracking script into HTML responses.
type Service struct {
	client *http.Client
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) *Service {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}
}

// Handle serves GET ?url=<target>. A missing target is a 404; an
// upstream fetch failure surfaces as a 500 carrying the error text.
func (s *Service) Handle(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.Status(http.StatusNotFound)
		return
	}

	request, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target, nil)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	response, err := s.client.Do(request)
	if err != nil {
		s.logger.Warn("upstream fetch failed", zap.String("url", target), zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer response.Body.Close()

	contentType := response.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		s.serveHTML(c, response, target, contentType)
		return
	}
	s.servePassthrough(c, response)
}

func (s *Service) serveHTML(c *gin.Context, response *http.Response, target, contentType string) {
	body, err := io.ReadAll(response.Body)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	copyHeaders(c, response, true)
	applyCORSHeaders(c)
	c.Data(response.StatusCode, contentType, injectNavigationScript(body, target, c.Request.URL.Path))
}

func (s *Service) servePassthrough(c *gin.Context, response *http.Response) {
	copyHeaders(c, response, false)
	applyCORSHeaders(c)
	c.Status(response.StatusCode)
	if _, err := io.Copy(c.Writer, response.Body); err != nil {
		s.logger.Debug("proxy stream interrupted", zap.Error(err))
	}
}

func copyHeaders(c *gin.Context, response *http.Response, html bool) {
	for name, values := range response.Header {
		if html && isStrippedHeader(name) {
			continue
		}
		// Recomputed by the response writer after script injection.
		if strings.EqualFold(name, "Content-Length") {
			continue
		}
		for _, value := range values {
			c.Writer.Header().Add(name, value)
		}
	}
}

func isStrippedHeader(name string) bool {
	for _, stripped := range strippedHeaders {
		if strings.EqualFold(name, stripped) {
			return true
		}
	}
	return false
}

func applyCORSHeaders(c *gin.Context) {
	header := c.Writer.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "*")
}

// injectNavigationScript places the navigation tracker before </head>.
// The script reports the embedded page's upstream URL to the parent
// frame and reroutes link clicks and GET form submissions back through
// the proxy so navigation stays inside the embedded frame.
func injectNavigationScript(body []byte, target, proxyPath string) []byte {
	script := buildNavigationScript(target, proxyPath)
	if index := findCloseTag(body, "</head>"); index >= 0 {
		return spliceAt(body, index, script)
	}
	if index := findCloseTag(body, "</body>"); index >= 0 {
		return spliceAt(body, index, script)
	}
	return append(body, script...)
}

func buildNavigationScript(target, proxyPath string) []byte {
	upstreamJSON, err := json.Marshal(target)
	if err != nil {
		upstreamJSON = []byte(`""`)
	}
	pathJSON, err := json.Marshal(proxyPath)
	if err != nil {
		pathJSON = []byte(`"/proxy"`)
	}
	return []byte(fmt.Sprintf(navigationScriptTemplate, upstreamJSON, pathJSON))
}

const navigationScriptTemplate = `<script data-embed="navigation">(function () {
  var upstream = %s;
  var proxyPath = %s;
  if (window.parent !== window) {
    window.parent.postMessage({ source: "canvas-embed", event: "navigation", url: upstream }, "*");
  }
  function reroute(href) {
    var absolute = new URL(href, upstream).href;
    return proxyPath + "?url=" + encodeURIComponent(absolute);
  }
  document.addEventListener("click", function (event) {
    var anchor = event.target && event.target.closest ? event.target.closest("a[href]") : null;
    if (!anchor) { return; }
    event.preventDefault();
    window.location.href = reroute(anchor.getAttribute("href"));
  }, true);
  document.addEventListener("submit", function (event) {
    var form = event.target;
    if (!form || (form.method || "get").toLowerCase() !== "get") { return; }
    event.preventDefault();
    var destination = new URL(form.getAttribute("action") || upstream, upstream);
    destination.search = new URLSearchParams(new FormData(form)).toString();
    window.location.href = reroute(destination.href);
  }, true);
})();</script>`

func findCloseTag(body []byte, tag string) int {
	return bytes.Index(bytes.ToLower(body), []byte(tag))
}

func spliceAt(body []byte, index int, insert []byte) []byte {
	combined := make([]byte, 0, len(body)+len(insert))
	combined = append(combined, body[:index]...)
	combined = append(combined, insert...)
	combined = append(combined, body[index:]...)
	return combined
}
