// Package session holds the state of one verification attempt and the
// actions that drive it through the wizard stages.
package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/identity-vault/idvault/pkg/kyc"
)

// Stage is the session's position in the linear workflow. It is the single
// source of truth for which fields are populated; field presence is a
// derived invariant, never the control mechanism.
type Stage int

const (
	StageAwaitingDocument Stage = iota
	StageDocumentLoaded
	StageAwaitingSelfie
	StageVerifying
	StageResult
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingDocument:
		return "awaiting_document"
	case StageDocumentLoaded:
		return "document_loaded"
	case StageAwaitingSelfie:
		return "awaiting_selfie"
	case StageVerifying:
		return "verifying"
	case StageResult:
		return "result"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError reports an action invoked with its preconditions unmet. The
// session is never mutated when one is returned.
type StageError struct {
	Action string
	Stage  Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s not allowed in stage %s", e.Action, e.Stage)
}

// Session is the full in-memory state of one verification attempt. It is
// created fresh at startup or restart and discarded wholesale; nothing is
// persisted. A restart allocates a new Session under a new ID, so stale
// asynchronous results can be matched against both and dropped.
type Session struct {
	ID    uuid.UUID
	Stage Stage

	Document []byte
	FaceCrop []byte
	Selfie   []byte

	// KYCID and Targets are set together, atomically, from one successful
	// /get-urls response, or not at all.
	KYCID   string
	Targets *kyc.UploadTargets

	Result       *kyc.VerifyResult
	ErrorMessage string
}

// New creates a fresh session at the initial stage.
func New() *Session {
	return &Session{ID: uuid.New(), Stage: StageAwaitingDocument}
}

// LoadDocument stores the raw document image bytes and advances the stage.
func (s *Session) LoadDocument(data []byte) error {
	if s.Stage != StageAwaitingDocument || len(data) == 0 {
		return &StageError{Action: "load document", Stage: s.Stage}
	}
	s.Document = data
	s.Stage = StageDocumentLoaded
	return nil
}

// AttachFace stores the rasterized face crop produced from the document.
func (s *Session) AttachFace(face []byte) error {
	if s.Stage != StageDocumentLoaded || len(s.Document) == 0 || len(face) == 0 {
		return &StageError{Action: "attach face", Stage: s.Stage}
	}
	s.FaceCrop = face
	return nil
}

// ClearFace discards the face crop, returning to the pre-crop sub-state.
func (s *Session) ClearFace() error {
	if s.Stage != StageDocumentLoaded {
		return &StageError{Action: "clear face", Stage: s.Stage}
	}
	s.FaceCrop = nil
	return nil
}

// LoadSelfie stores the selfie image bytes, replacing any previous selfie.
// May be repeated any number of times before verification.
func (s *Session) LoadSelfie(data []byte) error {
	if s.Stage != StageAwaitingSelfie || len(data) == 0 {
		return &StageError{Action: "load selfie", Stage: s.Stage}
	}
	s.Selfie = data
	return nil
}

// ReadyToSubmit reports whether the document + face pair can be submitted.
func (s *Session) ReadyToSubmit() bool {
	return s.Stage == StageDocumentLoaded && len(s.Document) > 0 && len(s.FaceCrop) > 0
}
