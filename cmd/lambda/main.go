package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/discovery-widget/cmd/mainconfig"
	"github.com/wolfman30/discovery-widget/internal/app/bootstrap"
	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

func main() {
	ctx := context.Background()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	deps := bootstrap.Deps{}
	if awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg); err == nil {
		deps.AWSConfig = &awsCfg
	} else {
		logger.Warn("AWS config unavailable", "error", err)
	}
	app, err := bootstrap.BuildApp(ctx, cfg, deps, logger)
	if err != nil {
		panic(err)
	}

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, app.Handler, evt)
	})
}

// handle replays an API Gateway HTTP event through the router.
func handle(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: `{"error":"Invalid request body"}`}, nil
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest}, nil
	}
	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	if ip := evt.RequestContext.HTTP.SourceIP; ip != "" {
		req.Header.Set("X-Real-Ip", ip)
	}

	rw := newResponseWriter()
	h.ServeHTTP(rw, req)
	return rw.event(), nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: http.Header{}}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *responseWriter) event() events.APIGatewayV2HTTPResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(map[string]string, len(w.header))
	for k := range w.header {
		headers[strings.ToLower(k)] = w.header.Get(k)
	}
	resp := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    headers,
	}
	// API Gateway only passes text bodies through; compressed or binary
	// payloads must be base64 encoded.
	if headers["content-encoding"] != "" || !utf8.Valid(w.body.Bytes()) {
		resp.Body = base64.StdEncoding.EncodeToString(w.body.Bytes())
		resp.IsBase64Encoded = true
		return resp
	}
	resp.Body = w.body.String()
	return resp
}
