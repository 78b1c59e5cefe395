package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/identity-vault/idvault/internal/logging"
	"github.com/identity-vault/idvault/pkg/kyc"
)

// User-facing failure messages. Deliberately generic; the precise cause goes
// to the debug log.
const (
	MsgUploadFailed = "Failed to upload ID documents"
	MsgVerifyFailed = "Verification failed"
)

// ErrSessionRestarted means the session was restarted while an action was in
// flight; the action's results were discarded without touching the new
// session.
var ErrSessionRestarted = errors.New("session restarted during action")

// Controller drives a Session through the wizard's network-backed actions.
// All methods are synchronous; callers that need them off the UI thread wrap
// them in their own dispatch.
//
// Restart swaps in a freshly allocated Session rather than resetting in
// place, so an action that was started before the restart keeps writing to
// its own orphaned struct. Each action re-checks that it still owns the live
// session after every network wait and discards its results otherwise.
type Controller struct {
	client *kyc.Client
	logger *zap.Logger

	mu      sync.Mutex
	session *Session
}

// NewController creates a controller with a fresh session.
func NewController(client *kyc.Client, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client:  client,
		logger:  logger.Named("controller"),
		session: New(),
	}
}

// Session returns the live session.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// owns reports whether s is still the live session.
func (c *Controller) owns(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == s
}

// Restart discards the session and starts over with a new allocation. The
// old session's ID never recurs; in-flight actions against it notice the
// swap and drop their results.
func (c *Controller) Restart() {
	c.mu.Lock()
	old := c.session.ID
	c.session = New()
	c.mu.Unlock()
	c.logger.Info("session restarted", zap.String("old_session_id", old.String()))
}

// SubmitDocument requests upload destinations and transmits the document and
// face crop to them concurrently. On any failure the session keeps its stage
// and records a user-visible error; the cached identifier and targets remain
// so the user can retry the same action.
func (c *Controller) SubmitDocument(ctx context.Context) error {
	s := c.Session()
	if !s.ReadyToSubmit() {
		return &StageError{Action: "submit document", Stage: s.Stage}
	}
	op := logging.WithOperation(c.logger, "controller.submit_document", s.ID.String())

	grant, err := c.client.GetUploadTargets(ctx)
	if !c.owns(s) {
		op.Info("discarding upload targets for restarted session")
		return ErrSessionRestarted
	}
	if err != nil {
		s.ErrorMessage = MsgUploadFailed
		op.Error("get upload targets failed", zap.Error(err))
		return logging.NewOperationError("controller.get_upload_targets", s.ID.String(), err)
	}

	// Identifier and destinations come from one response; set together.
	s.KYCID = grant.KYCID
	s.Targets = grant.URLs
	op.Info("upload targets issued", zap.String("kyc_id", grant.KYCID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.client.Upload(gctx, grant.URLs.OrigURL, s.Document)
	})
	g.Go(func() error {
		return c.client.Upload(gctx, grant.URLs.FaceURL, s.FaceCrop)
	})
	err = g.Wait()
	if !c.owns(s) {
		op.Info("discarding upload outcome for restarted session")
		return ErrSessionRestarted
	}
	if err != nil {
		s.ErrorMessage = MsgUploadFailed
		op.Error("document/face upload failed", zap.Error(err))
		return logging.NewOperationError("controller.upload_document_pair", s.ID.String(), err)
	}

	s.ErrorMessage = ""
	s.Stage = StageAwaitingSelfie
	op.Info("document and face uploaded")
	return nil
}

// SubmitSelfieAndVerify uploads the selfie and requests the match decision.
// The session always reaches StageResult: with the stored result on success
// (a mismatch is a success), or with an error message on transport failure.
func (c *Controller) SubmitSelfieAndVerify(ctx context.Context) error {
	s := c.Session()
	if s.Stage != StageAwaitingSelfie || len(s.Selfie) == 0 || s.Targets == nil || s.KYCID == "" {
		return &StageError{Action: "verify", Stage: s.Stage}
	}
	op := logging.WithOperation(c.logger, "controller.submit_selfie_and_verify", s.ID.String())

	s.Stage = StageVerifying

	err := c.client.Upload(ctx, s.Targets.SelfieURL, s.Selfie)
	if !c.owns(s) {
		op.Info("discarding selfie upload for restarted session")
		return ErrSessionRestarted
	}
	if err != nil {
		s.ErrorMessage = MsgVerifyFailed
		s.Stage = StageResult
		op.Error("selfie upload failed", zap.Error(err))
		return logging.NewOperationError("controller.upload_selfie", s.ID.String(), err)
	}

	result, err := c.client.Verify(ctx, s.KYCID)
	if !c.owns(s) {
		op.Info("discarding verify outcome for restarted session")
		return ErrSessionRestarted
	}
	if err != nil {
		s.ErrorMessage = MsgVerifyFailed
		s.Stage = StageResult
		op.Error("verify call failed", zap.Error(err))
		return logging.NewOperationError("controller.verify", s.ID.String(), err)
	}

	s.Result = result
	s.ErrorMessage = ""
	s.Stage = StageResult
	op.Info("verification complete",
		zap.Bool("face_match", result.FaceMatch),
		zap.Float64("similarity", result.Similarity))
	return nil
}
