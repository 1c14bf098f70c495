package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/trailwatch/internal/adapter/pii"
	"github.com/V4T54L/trailwatch/internal/classifier"
	"github.com/V4T54L/trailwatch/internal/decoder"
	"github.com/V4T54L/trailwatch/internal/domain"
	"github.com/V4T54L/trailwatch/internal/domain/mocks"
	"github.com/V4T54L/trailwatch/internal/usecase"
)

type fakeSourceFactory struct {
	source domain.LogSource
	err    error

	accessKey, secretKey, region string
}

func (f *fakeSourceFactory) ForCredentials(ctx context.Context, accessKey, secretKey, region string) (domain.LogSource, error) {
	f.accessKey, f.secretKey, f.region = accessKey, secretKey, region
	return f.source, f.err
}

type staticRules domain.RuleSet

func (s staticRules) Snapshot() domain.RuleSet { return domain.RuleSet(s) }

func newAnalysisHandler(factory SourceFactory, opts AnalysisOptions) *AnalysisHandler {
	engine := classifier.NewEngine(staticRules{
		Predefined: predefined,
		Custom:     []domain.Rule{{Name: "list", Risk: domain.RiskMedium, Match: map[string]any{"eventName": "ListBuckets"}}},
	}, "IN")
	svc := usecase.NewAnalyzeService(engine, decoder.New(discardLogger()), nil, 2, nil, discardLogger())
	return NewAnalysisHandler(svc, factory, opts, discardLogger())
}

func bucketSource() *mocks.MockLogSource {
	return &mocks.MockLogSource{
		Objects: []domain.ObjectInfo{{Key: "logs/a.json"}, {Key: "logs/bad.json"}},
		Blobs: map[string][]byte{
			"logs/a.json":   []byte(`{"Records":[{"eventName":"StopLogging","requestParameters":{"password":"hunter2"}},{"eventName":"ListBuckets","userIdentity":{"type":"AssumedRole"}}]}`),
			"logs/bad.json": []byte(`{not json`),
		},
	}
}

func TestAnalysisHandler_ConnectAWS(t *testing.T) {
	factory := &fakeSourceFactory{source: bucketSource()}
	h := newAnalysisHandler(factory, AnalysisOptions{
		Redactor: pii.NewRedactor([]string{"requestParameters.password"}, nil),
	})

	rr := serve(h.ConnectAWS, http.MethodPost, "/api/connect-aws",
		`{"accessKey":"AK","secretKey":"SK","region":"eu-west-1","logPath":"s3://trail-bucket/logs/"}`, "a@example.com")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "AK", factory.accessKey)
	assert.Equal(t, "SK", factory.secretKey)
	assert.Equal(t, "eu-west-1", factory.region)

	var resp struct {
		Logs []struct {
			Log     map[string]any `json:"log"`
			Risk    string         `json:"risk"`
			Reasons []string       `json:"reasons"`
		} `json:"logs"`
		Summary map[string]int `json:"summary"`
		Errors  []blobFailure  `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	require.Len(t, resp.Logs, 2)
	assert.Equal(t, "High", resp.Logs[0].Risk)
	assert.Equal(t, []string{"Predefined rule matched: stop"}, resp.Logs[0].Reasons)
	assert.Equal(t, map[string]any{"password": pii.RedactedPlaceholder}, resp.Logs[0].Log["requestParameters"])
	assert.Equal(t, "Medium", resp.Logs[1].Risk)
	assert.Equal(t, []string{"Custom rule matched: list"}, resp.Logs[1].Reasons)
	assert.Equal(t, map[string]int{"Low": 0, "Medium": 1, "High": 1}, resp.Summary)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "logs/bad.json", resp.Errors[0].Key)
	assert.Equal(t, usecase.StageDecode, resp.Errors[0].Stage)
}

func TestAnalysisHandler_ConnectAWSErrors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		factory        *fakeSourceFactory
		expectedStatus int
	}{
		{
			name:           "Missing keys",
			body:           `{"logPath":"bucket/logs"}`,
			factory:        &fakeSourceFactory{source: bucketSource()},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing bucket",
			body:           `{"accessKey":"AK","secretKey":"SK","logPath":"s3://"}`,
			factory:        &fakeSourceFactory{source: bucketSource()},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Empty prefix",
			body:           `{"accessKey":"AK","secretKey":"SK","logPath":"bucket/none"}`,
			factory:        &fakeSourceFactory{source: &mocks.MockLogSource{}},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Listing denied",
			body:           `{"accessKey":"AK","secretKey":"SK","logPath":"bucket/logs"}`,
			factory:        &fakeSourceFactory{source: &mocks.MockLogSource{ListErr: fmt.Errorf("%w: list bucket: %w", domain.ErrSource, errors.New("AccessDenied"))}},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "Client construction fails",
			body:           `{"accessKey":"AK","secretKey":"SK","logPath":"bucket/logs"}`,
			factory:        &fakeSourceFactory{err: errors.New("bad region")},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAnalysisHandler(tt.factory, AnalysisOptions{})
			rr := serve(h.ConnectAWS, http.MethodPost, "/api/connect-aws", tt.body, "a@example.com")
			assert.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	h := newAnalysisHandler(&fakeSourceFactory{source: bucketSource()}, AnalysisOptions{})

	rr := serve(h.Analyze, http.MethodPost, "/api/analyze",
		`{"key":"AK","secret":"SK","s3_path":"trail-bucket/logs/"}`, "a@example.com")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{
		"results": [
			{"eventTime":"","eventName":"StopLogging","sourceIP":"","riskLevel":"High","reason":"critical service manipulation"},
			{"eventTime":"","eventName":"ListBuckets","sourceIP":"","riskLevel":"Medium","reason":"role-based access"}
		],
		"summary": {"Low":0,"Medium":1,"High":1},
		"errors": [{"key":"logs/bad.json","stage":"decode","error":"decode logs/bad.json: no line holds valid JSON"}]
	}`, rr.Body.String())
}

func TestAnalysisHandler_AnalyzeUnknownStrategy(t *testing.T) {
	h := newAnalysisHandler(&fakeSourceFactory{source: bucketSource()}, AnalysisOptions{})

	rr := serve(h.Analyze, http.MethodPost, "/api/analyze",
		`{"key":"AK","secret":"SK","s3_path":"trail-bucket/logs/","strategy":"ml"}`, "a@example.com")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAnalysisHandler_Classify(t *testing.T) {
	h := newAnalysisHandler(nil, AnalysisOptions{DefaultStrategy: classifier.StrategyRules})

	rr := serve(h.Classify, http.MethodPost, "/api/classify",
		`{"events":[{"eventName":"ListBuckets"},{"eventName":"PutObject"}]}`, "a@example.com")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{
		"results": [
			{"log":{"eventName":"ListBuckets"},"risk":"Medium","reasons":["Custom rule matched: list"]},
			{"log":{"eventName":"PutObject"},"risk":"Low","reasons":[]}
		],
		"summary": {"Low":1,"Medium":1,"High":0},
		"errors": []
	}`, rr.Body.String())

	rr = serve(h.Classify, http.MethodPost, "/api/classify",
		`{"events":[{"eventName":"TerminateInstances"}],"strategy":"heuristic"}`, "a@example.com")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"reason":"terminating compute instance"`)
}

func TestAnalysisHandler_ClassifyKeepsLargeIntegers(t *testing.T) {
	engine := classifier.NewEngine(staticRules{
		Custom: []domain.Rule{{Name: "prod account", Risk: domain.RiskHigh, Match: map[string]any{"accountId": "123456789012345678"}}},
	}, "IN")
	svc := usecase.NewAnalyzeService(engine, decoder.New(discardLogger()), nil, 2, nil, discardLogger())
	h := NewAnalysisHandler(svc, nil, AnalysisOptions{DefaultStrategy: classifier.StrategyRules}, discardLogger())

	rr := serve(h.Classify, http.MethodPost, "/api/classify",
		`{"events":[{"accountId":123456789012345678}]}`, "a@example.com")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{
		"results": [
			{"log":{"accountId":123456789012345678},"risk":"High","reasons":["Custom rule matched: prod account"]}
		],
		"summary": {"Low":0,"Medium":0,"High":1},
		"errors": []
	}`, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"accountId":123456789012345678`)
}

func TestAnalysisHandler_FetchLogs(t *testing.T) {
	now := time.Now()
	source := &mocks.MockLogSource{
		Objects: []domain.ObjectInfo{
			{Key: "AWSLogs/old.json", LastModified: now.Add(-time.Hour)},
			{Key: "AWSLogs/new.json", LastModified: now},
		},
		Blobs: map[string][]byte{
			"AWSLogs/new.json": []byte(`{"Records":[{"eventName":"ConsoleLogin","eventTime":"2024-05-01T10:00:00Z","sourceIPAddress":"198.51.100.7"}]}`),
		},
	}
	h := newAnalysisHandler(nil, AnalysisOptions{ServerSource: source, ServerBucket: "trail", ServerPrefix: "AWSLogs/"})

	rr := serve(h.FetchLogs, http.MethodGet, "/api/fetch_logs", "", "a@example.com")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `[{"eventTime":"2024-05-01T10:00:00Z","eventName":"ConsoleLogin","sourceIP":"198.51.100.7","riskLevel":"High","reason":"console login from foreign IP"}]`, rr.Body.String())
	assert.Equal(t, []string{"AWSLogs/new.json"}, source.Fetched)
}

func TestAnalysisHandler_FetchLogsErrors(t *testing.T) {
	h := newAnalysisHandler(nil, AnalysisOptions{ServerSource: &mocks.MockLogSource{}, ServerBucket: "trail"})
	rr := serve(h.FetchLogs, http.MethodGet, "/api/fetch_logs", "", "a@example.com")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"No logs found in the specified prefix."}`, rr.Body.String())

	h = newAnalysisHandler(nil, AnalysisOptions{})
	rr = serve(h.FetchLogs, http.MethodGet, "/api/fetch_logs", "", "a@example.com")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"error":"Server-side log bucket is not configured."}`, rr.Body.String())

	broken := &mocks.MockLogSource{
		Objects: []domain.ObjectInfo{{Key: "x.json.gz"}},
		Blobs:   map[string][]byte{"x.json.gz": []byte("plain text")},
	}
	h = newAnalysisHandler(nil, AnalysisOptions{ServerSource: broken, ServerBucket: "trail"})
	rr = serve(h.FetchLogs, http.MethodGet, "/api/fetch_logs", "", "a@example.com")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to read or parse log")
}
