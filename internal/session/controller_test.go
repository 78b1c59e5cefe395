package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/identity-vault/idvault/pkg/kyc"
)

// fakeService stands in for the verification backend: it issues upload URLs
// pointing back at itself, records what gets PUT to them, and serves a
// canned verify decision.
type fakeService struct {
	mu      sync.Mutex
	uploads map[string][]byte

	verifyStatus int
	verifyBody   map[string]any
	grantBody    func(baseURL string) map[string]any

	// Optional gates holding a request open until closed, for tests that
	// need to act while a call is in flight. The arrived channels close once
	// the gated request is blocking.
	grantGate     chan struct{}
	grantArrived  chan struct{}
	verifyGate    chan struct{}
	verifyArrived chan struct{}

	srv *httptest.Server
}

func newFakeService() *fakeService {
	f := &fakeService{
		uploads:      make(map[string][]byte),
		verifyStatus: http.StatusOK,
		verifyBody: map[string]any{
			"kyc_id":     "abc123",
			"face_match": true,
			"similarity": 94.3,
		},
	}
	f.grantBody = func(baseURL string) map[string]any {
		return map[string]any{
			"kyc_id": "abc123",
			"urls": map[string]string{
				"orig_url":   baseURL + "/upload/orig",
				"face_url":   baseURL + "/upload/face",
				"selfie_url": baseURL + "/upload/selfie",
			},
		}
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeService) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/get-urls":
		if f.grantGate != nil {
			close(f.grantArrived)
			<-f.grantGate
		}
		json.NewEncoder(w).Encode(f.grantBody(f.srv.URL)) //nolint:errcheck
	case r.URL.Path == "/verify":
		if f.verifyGate != nil {
			close(f.verifyArrived)
			<-f.verifyGate
		}
		w.WriteHeader(f.verifyStatus)
		if f.verifyStatus < 400 {
			json.NewEncoder(w).Encode(f.verifyBody) //nolint:errcheck
		}
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploads[r.URL.Path] = data
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeService) uploaded(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[path]
}

func (f *fakeService) close() { f.srv.Close() }

func newTestController(f *fakeService) *Controller {
	return NewController(kyc.New(f.srv.URL), nil)
}

func loadReadySession(t *testing.T, c *Controller) {
	t.Helper()
	s := c.Session()
	if err := s.LoadDocument([]byte("document-jpeg")); err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}
	if err := s.AttachFace([]byte("face-jpeg")); err != nil {
		t.Fatalf("AttachFace() error: %v", err)
	}
}

func TestSubmitDocumentHappyPath(t *testing.T) {
	f := newFakeService()
	defer f.close()
	c := newTestController(f)
	loadReadySession(t, c)

	if err := c.SubmitDocument(context.Background()); err != nil {
		t.Fatalf("SubmitDocument() error: %v", err)
	}

	s := c.Session()
	if s.Stage != StageAwaitingSelfie {
		t.Errorf("Stage = %v, want %v", s.Stage, StageAwaitingSelfie)
	}
	if s.KYCID != "abc123" {
		t.Errorf("KYCID = %q, want abc123", s.KYCID)
	}
	if s.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", s.ErrorMessage)
	}
	if string(f.uploaded("/upload/orig")) != "document-jpeg" {
		t.Errorf("orig upload = %q, want document bytes", f.uploaded("/upload/orig"))
	}
	if string(f.uploaded("/upload/face")) != "face-jpeg" {
		t.Errorf("face upload = %q, want face crop bytes", f.uploaded("/upload/face"))
	}
}

func TestSubmitDocumentRequiresFaceCrop(t *testing.T) {
	f := newFakeService()
	defer f.close()
	c := newTestController(f)
	if err := c.Session().LoadDocument([]byte("doc")); err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}

	err := c.SubmitDocument(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *StageError", err)
	}
	if c.Session().Stage != StageDocumentLoaded {
		t.Errorf("Stage = %v, want unchanged", c.Session().Stage)
	}
	if len(f.uploads) != 0 {
		t.Error("uploads issued despite unmet preconditions")
	}
}

func TestSubmitDocumentMissingTargets(t *testing.T) {
	f := newFakeService()
	defer f.close()
	f.grantBody = func(string) map[string]any {
		return map[string]any{"kyc_id": "abc123"}
	}
	c := newTestController(f)
	loadReadySession(t, c)

	err := c.SubmitDocument(context.Background())
	if !errors.Is(err, kyc.ErrMissingUploadTargets) {
		t.Fatalf("error = %v, want ErrMissingUploadTargets", err)
	}

	s := c.Session()
	if s.Stage != StageDocumentLoaded {
		t.Errorf("Stage = %v, want unchanged %v", s.Stage, StageDocumentLoaded)
	}
	if s.ErrorMessage != MsgUploadFailed {
		t.Errorf("ErrorMessage = %q, want %q", s.ErrorMessage, MsgUploadFailed)
	}
	if s.KYCID != "" || s.Targets != nil {
		t.Error("partial grant state recorded after failed /get-urls")
	}
}

func TestSubmitDocumentRetryAfterFailure(t *testing.T) {
	f := newFakeService()
	defer f.close()
	f.grantBody = func(string) map[string]any {
		return map[string]any{"kyc_id": ""}
	}
	c := newTestController(f)
	loadReadySession(t, c)

	if err := c.SubmitDocument(context.Background()); err == nil {
		t.Fatal("expected first submit to fail")
	}

	// Backend recovers; the same action retries cleanly.
	f.grantBody = func(baseURL string) map[string]any {
		return map[string]any{
			"kyc_id": "retry456",
			"urls": map[string]string{
				"orig_url":   baseURL + "/upload/orig",
				"face_url":   baseURL + "/upload/face",
				"selfie_url": baseURL + "/upload/selfie",
			},
		}
	}
	if err := c.SubmitDocument(context.Background()); err != nil {
		t.Fatalf("retry SubmitDocument() error: %v", err)
	}
	s := c.Session()
	if s.KYCID != "retry456" {
		t.Errorf("KYCID = %q, want the fresh grant's retry456", s.KYCID)
	}
	if s.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared", s.ErrorMessage)
	}
}

func TestSubmitSelfieAndVerifyMatch(t *testing.T) {
	f := newFakeService()
	defer f.close()
	f.verifyBody = map[string]any{
		"kyc_id":     "abc123",
		"face_match": true,
		"similarity": 94.3,
		"status":     "VERIFIED",
		"extracted_data": map[string]string{
			"name": "JANE ROE",
			"dob":  "1990-01-31",
		},
	}
	c := newTestController(f)
	loadReadySession(t, c)
	if err := c.SubmitDocument(context.Background()); err != nil {
		t.Fatalf("SubmitDocument() error: %v", err)
	}
	if err := c.Session().LoadSelfie([]byte("selfie-jpeg")); err != nil {
		t.Fatalf("LoadSelfie() error: %v", err)
	}

	if err := c.SubmitSelfieAndVerify(context.Background()); err != nil {
		t.Fatalf("SubmitSelfieAndVerify() error: %v", err)
	}

	s := c.Session()
	if s.Stage != StageResult {
		t.Errorf("Stage = %v, want %v", s.Stage, StageResult)
	}
	if s.Result == nil || !s.Result.FaceMatch {
		t.Fatalf("Result = %+v, want a positive match", s.Result)
	}
	if s.Result.Similarity != 94.3 {
		t.Errorf("Similarity = %v, want 94.3", s.Result.Similarity)
	}
	if s.Result.ExtractedData == nil || s.Result.ExtractedData.Name != "JANE ROE" {
		t.Errorf("ExtractedData = %+v, want name JANE ROE", s.Result.ExtractedData)
	}
	if string(f.uploaded("/upload/selfie")) != "selfie-jpeg" {
		t.Errorf("selfie upload = %q, want selfie bytes", f.uploaded("/upload/selfie"))
	}
}

func TestSubmitSelfieAndVerifyMismatchIsNotAnError(t *testing.T) {
	f := newFakeService()
	defer f.close()
	f.verifyBody = map[string]any{
		"kyc_id":     "abc123",
		"face_match": false,
		"similarity": 12.0,
	}
	c := newTestController(f)
	loadReadySession(t, c)
	if err := c.SubmitDocument(context.Background()); err != nil {
		t.Fatalf("SubmitDocument() error: %v", err)
	}
	if err := c.Session().LoadSelfie([]byte("selfie")); err != nil {
		t.Fatalf("LoadSelfie() error: %v", err)
	}

	if err := c.SubmitSelfieAndVerify(context.Background()); err != nil {
		t.Fatalf("SubmitSelfieAndVerify() error: %v", err)
	}

	s := c.Session()
	if s.Stage != StageResult {
		t.Errorf("Stage = %v, want %v", s.Stage, StageResult)
	}
	if s.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty for a mismatch", s.ErrorMessage)
	}
	if s.Result == nil || s.Result.FaceMatch {
		t.Errorf("Result = %+v, want a recorded mismatch", s.Result)
	}
}

func TestSubmitSelfieAndVerifyTransportFailure(t *testing.T) {
	f := newFakeService()
	defer f.close()
	f.verifyStatus = http.StatusBadGateway
	c := newTestController(f)
	loadReadySession(t, c)
	if err := c.SubmitDocument(context.Background()); err != nil {
		t.Fatalf("SubmitDocument() error: %v", err)
	}
	if err := c.Session().LoadSelfie([]byte("selfie")); err != nil {
		t.Fatalf("LoadSelfie() error: %v", err)
	}

	if err := c.SubmitSelfieAndVerify(context.Background()); err == nil {
		t.Fatal("expected error for failed verify call")
	}

	s := c.Session()
	if s.Stage != StageResult {
		t.Errorf("Stage = %v, want %v (never stuck in verifying)", s.Stage, StageResult)
	}
	if s.ErrorMessage != MsgVerifyFailed {
		t.Errorf("ErrorMessage = %q, want %q", s.ErrorMessage, MsgVerifyFailed)
	}
	if s.Result != nil {
		t.Errorf("Result = %+v, want nil on transport failure", s.Result)
	}
}

func TestSubmitSelfieAndVerifyPreconditions(t *testing.T) {
	f := newFakeService()
	defer f.close()
	c := newTestController(f)

	err := c.SubmitSelfieAndVerify(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *StageError", err)
	}
	if c.Session().Stage != StageAwaitingDocument {
		t.Errorf("Stage = %v, want unchanged", c.Session().Stage)
	}
}

func TestControllerRestart(t *testing.T) {
	f := newFakeService()
	defer f.close()
	c := newTestController(f)
	loadReadySession(t, c)
	old := c.Session()
	old.KYCID = "abc123"
	old.ErrorMessage = "boom"

	c.Restart()

	s := c.Session()
	if s == old {
		t.Fatal("Restart() reused the old session allocation")
	}
	if s.Stage != StageAwaitingDocument {
		t.Errorf("Stage = %v, want %v", s.Stage, StageAwaitingDocument)
	}
	if s.ID == old.ID {
		t.Error("session ID unchanged after restart")
	}
	if s.Document != nil || s.FaceCrop != nil || s.Selfie != nil {
		t.Error("image buffers survived restart")
	}
	if s.KYCID != "" || s.Targets != nil || s.Result != nil || s.ErrorMessage != "" {
		t.Error("verification state survived restart")
	}
}

func TestSubmitDocumentDiscardedAfterRestart(t *testing.T) {
	f := newFakeService()
	defer f.close()
	f.grantGate = make(chan struct{})
	f.grantArrived = make(chan struct{})
	f.grantBody = func(baseURL string) map[string]any {
		return map[string]any{
			"kyc_id": "stale999",
			"urls": map[string]string{
				"orig_url":   baseURL + "/upload/orig",
				"face_url":   baseURL + "/upload/face",
				"selfie_url": baseURL + "/upload/selfie",
			},
		}
	}
	c := newTestController(f)
	loadReadySession(t, c)

	done := make(chan error, 1)
	go func() {
		done <- c.SubmitDocument(context.Background())
	}()

	// Restart while /get-urls is held open, then let it answer.
	<-f.grantArrived
	c.Restart()
	close(f.grantGate)

	if err := <-done; !errors.Is(err, ErrSessionRestarted) {
		t.Fatalf("SubmitDocument() error = %v, want ErrSessionRestarted", err)
	}

	s := c.Session()
	if s.Stage != StageAwaitingDocument {
		t.Errorf("Stage = %v, want the fresh session untouched", s.Stage)
	}
	if s.KYCID != "" || s.Targets != nil || s.ErrorMessage != "" {
		t.Errorf("stale submit mutated the restarted session: kyc_id=%q targets=%v err=%q",
			s.KYCID, s.Targets, s.ErrorMessage)
	}
	if got := f.uploaded("/upload/orig"); got != nil {
		t.Errorf("stale submit uploaded the document anyway: %q", got)
	}
}

func TestSubmitSelfieAndVerifyDiscardedAfterRestart(t *testing.T) {
	f := newFakeService()
	defer f.close()
	f.verifyGate = make(chan struct{})
	f.verifyArrived = make(chan struct{})
	c := newTestController(f)
	loadReadySession(t, c)
	if err := c.SubmitDocument(context.Background()); err != nil {
		t.Fatalf("SubmitDocument() error: %v", err)
	}
	if err := c.Session().LoadSelfie([]byte("selfie")); err != nil {
		t.Fatalf("LoadSelfie() error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.SubmitSelfieAndVerify(context.Background())
	}()

	// Restart while /verify is held open, then let it answer.
	<-f.verifyArrived
	c.Restart()
	close(f.verifyGate)

	if err := <-done; !errors.Is(err, ErrSessionRestarted) {
		t.Fatalf("SubmitSelfieAndVerify() error = %v, want ErrSessionRestarted", err)
	}

	s := c.Session()
	if s.Stage != StageAwaitingDocument {
		t.Errorf("Stage = %v, want the fresh session untouched", s.Stage)
	}
	if s.Result != nil || s.ErrorMessage != "" {
		t.Errorf("stale verify mutated the restarted session: result=%+v err=%q",
			s.Result, s.ErrorMessage)
	}
}
