package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/viswatch"
	"github.com/hazyhaar/viswatch/controller"
	"github.com/hazyhaar/viswatch/internal/ledger"
	"github.com/hazyhaar/viswatch/kit"
	"github.com/hazyhaar/viswatch/match"
)

type backend struct {
	requestID string
	lastFind  viswatch.FindRequest
	lastRes   viswatch.ResultsRequest
	noLedger  bool
}

func (b *backend) CaptureFull(ctx context.Context, req viswatch.CaptureRequest) (*viswatch.CaptureResponse, error) {
	b.requestID = kit.GetRequestID(ctx)
	return &viswatch.CaptureResponse{Path: "out/" + req.Name}, nil
}

func (b *backend) CaptureElement(_ context.Context, req viswatch.CaptureRequest) (*viswatch.CaptureResponse, error) {
	if req.Selector == "" {
		return nil, fmt.Errorf("%w: selector is required", viswatch.ErrInvalid)
	}
	return nil, fmt.Errorf("capture: element %q: %w", req.Selector, controller.ErrNotFound)
}

func (b *backend) FindImage(_ context.Context, req viswatch.FindRequest) (*match.Result, error) {
	b.lastFind = req
	return &match.Result{Kind: match.KindScreen, Verdict: match.Fail, Attempts: 3, Template: req.Template}, nil
}

func (b *backend) CompareElement(_ context.Context, req viswatch.CompareRequest) (*match.Result, error) {
	score := 0.5
	return &match.Result{Kind: match.KindElement, Verdict: match.Pass, Attempts: 1, Selector: req.Selector, Score: &score}, nil
}

func (b *backend) Results(_ context.Context, req viswatch.ResultsRequest) ([]*match.Report, error) {
	b.lastRes = req
	if b.noLedger {
		return nil, viswatch.ErrNoLedger
	}
	return []*match.Report{{ID: "r1", Result: match.Result{Kind: match.KindElement}}}, nil
}

func (b *backend) Stats(context.Context) ([]ledger.Stats, error) {
	return []ledger.Stats{{Template: "ref.png", Passed: 2, Failed: 1}}, nil
}

func serve(t *testing.T, b *backend) *httptest.Server {
	t.Helper()
	n := 0
	srv := httptest.NewServer(New(Config{
		Backend:    b,
		RequestIDs: func() string { n++; return fmt.Sprintf("req%d", n) },
	}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp, decode(t, resp)
}

func get(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv := serve(t, &backend{})
	resp, body := get(t, srv.URL+"/health")
	if resp.StatusCode != 200 || body["status"] != "ok" {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
}

func TestCaptureFull_RequestID(t *testing.T) {
	b := &backend{}
	srv := serve(t, b)

	resp, body := post(t, srv.URL+"/capture/full", `{"name":"a.png"}`)
	if resp.StatusCode != 200 || body["path"] != "out/a.png" {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
	if b.requestID != "req1" || resp.Header.Get("X-Request-Id") != "req1" {
		t.Fatalf("request id: ctx %q header %q", b.requestID, resp.Header.Get("X-Request-Id"))
	}

	req, _ := http.NewRequest("POST", srv.URL+"/capture/full", strings.NewReader(`{}`))
	req.Header.Set("X-Request-Id", "client-7")
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	r2.Body.Close()
	if b.requestID != "client-7" {
		t.Fatalf("propagated id: got %q", b.requestID)
	}
}

func TestCaptureElement_ErrorStatus(t *testing.T) {
	srv := serve(t, &backend{})

	cases := []struct {
		body string
		want int
	}{
		{`{}`, 400},
		{`{"selector":"id:gone"}`, 404},
		{`{not json`, 400},
	}
	for _, tc := range cases {
		resp, body := post(t, srv.URL+"/capture/element", tc.body)
		if resp.StatusCode != tc.want {
			t.Errorf("%s: got %d, want %d", tc.body, resp.StatusCode, tc.want)
		}
		if _, ok := body["error"]; !ok {
			t.Errorf("%s: no error field in %v", tc.body, body)
		}
	}
}

func TestMatchScreen_FailIsStillOK(t *testing.T) {
	b := &backend{}
	srv := serve(t, b)

	resp, body := post(t, srv.URL+"/match/screen", `{"template":"logo.png","min_points":25}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if body["verdict"] != float64(match.Fail) || body["attempts"] != float64(3) {
		t.Fatalf("body: %v", body)
	}
	if b.lastFind.MinPoints != 25 {
		t.Fatalf("min points: got %d", b.lastFind.MinPoints)
	}
}

func TestMatchElement(t *testing.T) {
	srv := serve(t, &backend{})
	resp, body := post(t, srv.URL+"/match/element", `{"selector":"id:card","template":"ref.png","tolerance":2}`)
	if resp.StatusCode != 200 || body["verdict"] != float64(match.Pass) || body["score"] != 0.5 {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
}

func TestResults_Query(t *testing.T) {
	b := &backend{}
	srv := serve(t, b)

	resp, body := get(t, srv.URL+"/results?kind=element&verdict=fail&limit=5")
	if resp.StatusCode != 200 || body["count"] != float64(1) {
		t.Fatalf("got %d %v", resp.StatusCode, body)
	}
	want := viswatch.ResultsRequest{Kind: "element", Verdict: "fail", Limit: 5}
	if b.lastRes != want {
		t.Fatalf("request: got %+v, want %+v", b.lastRes, want)
	}

	resp, body = get(t, srv.URL+"/results/stats")
	if resp.StatusCode != 200 {
		t.Fatalf("stats status: %d", resp.StatusCode)
	}
	if tpl, _ := body["templates"].([]any); len(tpl) != 1 {
		t.Fatalf("stats: %v", body)
	}
}

func TestResults_NoLedger(t *testing.T) {
	srv := serve(t, &backend{noLedger: true})
	resp, _ := get(t, srv.URL+"/results")
	if resp.StatusCode != 404 {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
}
