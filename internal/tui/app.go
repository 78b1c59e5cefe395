// Package tui implements the interactive verification wizard.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/identity-vault/idvault/internal/session"
	"github.com/identity-vault/idvault/pkg/kyc"
)

// submitDoneMsg carries the outcome of the document + face submission.
type submitDoneMsg struct {
	sid uuid.UUID
	err error
}

// verifyDoneMsg carries the outcome of the selfie upload + verify call.
type verifyDoneMsg struct {
	sid uuid.UUID
	err error
}

// App is the root Bubbletea model. It owns the workflow controller and a
// display snapshot of the session; while a network action is in flight the
// view reads only the snapshot, and asynchronous results tagged with a
// stale session ID are dropped.
type App struct {
	controller *session.Controller
	version    string

	document    fileStepModel
	selfie      fileStepModel
	cropper     cropperModel
	cropperOpen bool

	// Session snapshot, refreshed after every mutating message.
	stage        session.Stage
	ready        bool
	selfieLoaded bool
	errMsg       string
	kycID        string
	result       *kyc.VerifyResult

	busy      bool
	busyLabel string
	statusMsg string
	copied    bool

	width  int
	height int
	frame  int // logo shimmer animation frame
}

// NewApp creates a new TUI application around a workflow controller.
func NewApp(ctrl *session.Controller, version string) App {
	a := App{
		controller: ctrl,
		version:    version,
		document:   newFileStepModel(stepDocument),
		selfie:     newFileStepModel(stepSelfie),
	}
	a.syncSession()
	return a
}

func (a App) Init() tea.Cmd {
	return shimmerTickCmd()
}

// syncSession refreshes the display snapshot from the live session.
func (a *App) syncSession() {
	s := a.controller.Session()
	a.stage = s.Stage
	a.ready = s.ReadyToSubmit()
	a.selfieLoaded = len(s.Selfie) > 0
	a.errMsg = s.ErrorMessage
	a.kycID = s.KYCID
	a.result = s.Result
	a.document.sid = s.ID
	a.selfie.sid = s.ID
}

func (a *App) restart() {
	a.controller.Restart()
	a.document = newFileStepModel(stepDocument)
	a.selfie = newFileStepModel(stepSelfie)
	size := tea.WindowSizeMsg{Width: a.width, Height: a.height}
	a.document, _ = a.document.Update(size)
	a.selfie, _ = a.selfie.Update(size)
	a.cropperOpen = false
	a.busy = false
	a.statusMsg = ""
	a.copied = false
	a.syncSession()
}

func (a App) currentID() uuid.UUID {
	return a.controller.Session().ID
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.document, _ = a.document.Update(msg)
		a.selfie, _ = a.selfie.Update(msg)
		if a.cropperOpen {
			a.cropper, _ = a.cropper.Update(msg)
		}
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case fileLoadedMsg:
		if msg.sid != a.currentID() {
			return a, nil
		}
		return a.handleFileLoaded(msg), nil

	case cropResultMsg:
		a.cropperOpen = false
		if msg.err != nil {
			a.statusMsg = msg.err.Error()
			return a, nil
		}
		if err := a.controller.Session().AttachFace(msg.face); err != nil {
			a.statusMsg = err.Error()
			return a, nil
		}
		a.statusMsg = ""
		a.syncSession()
		return a, nil

	case submitDoneMsg:
		if msg.sid != a.currentID() {
			return a, nil
		}
		a.busy = false
		a.syncSession()
		return a, nil

	case verifyDoneMsg:
		if msg.sid != a.currentID() {
			return a, nil
		}
		a.busy = false
		a.syncSession()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleFileLoaded(msg fileLoadedMsg) App {
	s := a.controller.Session()
	switch msg.kind {
	case stepDocument:
		if msg.err != nil {
			a.document.setError(msg.err)
			return a
		}
		if err := s.LoadDocument(msg.data); err != nil {
			a.document.setError(err)
			return a
		}
		a.document.setLoaded(msg.path, msg.img)
	case stepSelfie:
		if msg.err != nil {
			a.selfie.setError(msg.err)
			return a
		}
		if err := s.LoadSelfie(msg.data); err != nil {
			a.selfie.setError(err)
			return a
		}
		a.selfie.setLoaded(msg.path, msg.img)
	}
	a.syncSession()
	return a
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}

	// No input while an action is in flight; submissions never overlap and
	// the session-id guard drops results for a restarted session.
	if a.busy {
		if key == "ctrl+r" {
			a.restart()
		}
		return a, nil
	}

	if key == "ctrl+r" {
		a.restart()
		return a, nil
	}

	// Cropper modal captures all keys while open.
	if a.cropperOpen {
		var cmd tea.Cmd
		a.cropper, cmd = a.cropper.Update(msg)
		if a.cropper.cancelled {
			a.cropperOpen = false
		}
		return a, cmd
	}

	switch a.stage {
	case session.StageAwaitingDocument:
		var cmd tea.Cmd
		a.document, cmd = a.document.Update(msg)
		return a, cmd

	case session.StageDocumentLoaded:
		return a.handleDocumentLoadedKey(key)

	case session.StageAwaitingSelfie:
		return a.handleSelfieKey(msg)

	case session.StageVerifying:
		return a, nil

	case session.StageResult:
		return a.handleResultKey(key)
	}
	return a, nil
}

func (a App) handleDocumentLoadedKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return a, tea.Quit
	case "f":
		return a.openCropper()
	case "enter", "s":
		if !a.ready {
			return a.openCropper()
		}
		return a.beginSubmit()
	}
	return a, nil
}

func (a App) openCropper() (tea.Model, tea.Cmd) {
	if a.document.img == nil {
		return a, nil
	}
	if a.ready {
		// Re-cropping discards the previous artifact first.
		if err := a.controller.Session().ClearFace(); err != nil {
			a.statusMsg = err.Error()
			return a, nil
		}
		a.syncSession()
	}
	cropper, err := newCropperModel(a.document.img, a.width, a.height)
	if err != nil {
		a.statusMsg = err.Error()
		return a, nil
	}
	a.cropper = cropper
	a.cropperOpen = true
	a.statusMsg = ""
	return a, nil
}

func (a App) beginSubmit() (tea.Model, tea.Cmd) {
	a.busy = true
	a.busyLabel = "Uploading document and face..."
	a.statusMsg = ""
	ctrl := a.controller
	sid := a.currentID()
	return a, func() tea.Msg {
		err := ctrl.SubmitDocument(context.Background())
		return submitDoneMsg{sid: sid, err: err}
	}
}

func (a App) handleSelfieKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Enter on an empty prompt with a selfie loaded kicks off verification;
	// typing a new path first replaces the selfie instead.
	if msg.String() == "enter" && strings.TrimSpace(a.selfie.path) == "" && a.selfieLoaded {
		return a.beginVerify()
	}
	var cmd tea.Cmd
	a.selfie, cmd = a.selfie.Update(msg)
	return a, cmd
}

func (a App) beginVerify() (tea.Model, tea.Cmd) {
	a.busy = true
	a.busyLabel = "Biometric analysis in progress..."
	a.statusMsg = ""
	ctrl := a.controller
	sid := a.currentID()
	return a, func() tea.Msg {
		err := ctrl.SubmitSelfieAndVerify(context.Background())
		return verifyDoneMsg{sid: sid, err: err}
	}
}

func (a App) handleResultKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		a.restart()
		return a, nil
	case "c":
		if a.kycID != "" {
			clipboard.WriteAll(a.kycID) //nolint:errcheck // best-effort copy
			a.copied = true
		}
		return a, nil
	}
	return a, nil
}

func (a App) View() string {
	// Header: centered shimmer logo + tagline
	logo := renderShimmerLogo(a.frame)
	header := centerLine(logo, a.width)
	header += "\n" + centerLine(metaStyle.Render("BIOMETRIC VERIFICATION NODE "+a.version), a.width)

	stepper := centerLine(a.renderStepper(), a.width)

	var body string
	switch {
	case a.cropperOpen:
		body = a.cropper.View()
	case a.busy || a.stage == session.StageVerifying:
		body = a.busyView()
	case a.stage == session.StageAwaitingDocument:
		body = a.document.View()
	case a.stage == session.StageDocumentLoaded:
		body = a.documentLoadedView()
	case a.stage == session.StageAwaitingSelfie:
		body = a.selfieView()
	case a.stage == session.StageResult:
		body = resultView(a.result, a.errMsg, a.kycID, a.copied, a.width)
	}

	status := ""
	if a.statusMsg != "" {
		status = " " + errBannerStyle.Render(truncStr(a.statusMsg, max(a.width-2, 20)))
	}

	help := " " + a.helpBar()

	// Chrome budget: header(2) + stepper(1) + status(1) + help(1) = 5 lines + body
	chrome := 5
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, stepper, body, status, help)
}

func (a App) busyView() string {
	label := a.busyLabel
	if label == "" {
		label = "Working..."
	}
	var sb strings.Builder
	sb.WriteString(spinnerFrame(a.frame) + " " + normalStyle.Render(label) + "\n\n")
	sb.WriteString(dimStyle.Render("Comparing facial structures and validating authenticity."))
	return card(sb.String(), a.width)
}

func (a App) documentLoadedView() string {
	var sb strings.Builder
	if a.document.preview != "" {
		sb.WriteString(a.document.preview + "\n")
		sb.WriteString(metaStyle.Render(a.document.fileName) + "\n\n")
	}
	if a.ready {
		sb.WriteString(matchStyle.Render("Extraction successful") + "\n")
		sb.WriteString(dimStyle.Render("Your biometric data is ready to submit to the vault.") + "\n")
	} else {
		sb.WriteString(selectedStyle.Render("Biometric Scan") + "\n")
		sb.WriteString(dimStyle.Render("Extract the facial region from your document to continue.") + "\n")
	}
	if a.errMsg != "" {
		sb.WriteString("\n" + errBannerStyle.Render(a.errMsg) + "\n")
	}
	return card(sb.String(), a.width)
}

func (a App) selfieView() string {
	out := a.selfie.View()
	if a.errMsg != "" {
		out += "\n " + errBannerStyle.Render(a.errMsg)
	}
	return out
}

// stepperStates resolves the four progress bubbles from the stage snapshot.
type stepState int

const (
	stepIdle stepState = iota
	stepActive
	stepComplete
)

func (a App) stepperStates() [4]stepState {
	var states [4]stepState

	// ID
	switch {
	case a.stage == session.StageAwaitingDocument:
		states[0] = stepActive
	default:
		states[0] = stepComplete
	}
	// Face
	switch {
	case a.stage == session.StageDocumentLoaded && !a.ready:
		states[1] = stepActive
	case a.ready || a.stage >= session.StageAwaitingSelfie:
		states[1] = stepComplete
	}
	// Selfie
	switch {
	case a.stage == session.StageAwaitingSelfie || a.stage == session.StageVerifying:
		states[2] = stepActive
	case a.stage == session.StageResult:
		states[2] = stepComplete
	}
	// Done
	if a.stage == session.StageResult {
		states[3] = stepComplete
	}
	return states
}

func (a App) renderStepper() string {
	labels := [4]string{"ID", "Face", "Selfie", "Done"}
	states := a.stepperStates()

	parts := make([]string, 0, len(labels))
	for i, label := range labels {
		var bubble, text string
		switch states[i] {
		case stepComplete:
			bubble = stepDoneStyle.Render("✓")
			text = stepDoneStyle.Render(label)
		case stepActive:
			bubble = stepActiveStyle.Render("●")
			text = stepActiveStyle.Render(label)
		default:
			bubble = stepIdleStyle.Render("○")
			text = stepIdleStyle.Render(label)
		}
		parts = append(parts, bubble+" "+text)
	}
	sep := stepIdleStyle.Render(" ── ")
	return strings.Join(parts, sep)
}

func (a App) helpBar() string {
	quit := helpEntry("ctrl+c", "quit")
	restart := helpEntry("ctrl+r", "restart")

	if a.cropperOpen {
		return helpEntry("←↓↑→", "pan") + "  " + helpEntry("+/-", "zoom") + "  " +
			helpEntry("enter", "confirm") + "  " + helpEntry("esc", "cancel")
	}
	if a.busy || a.stage == session.StageVerifying {
		return restart + "  " + quit
	}

	switch a.stage {
	case session.StageAwaitingDocument:
		return helpEntry("enter", "load file") + "  " + restart + "  " + quit
	case session.StageDocumentLoaded:
		if a.ready {
			return helpEntry("s", "submit") + "  " + helpEntry("f", "re-crop") + "  " + restart + "  " + helpEntry("q", "quit")
		}
		return helpEntry("f", "extract face") + "  " + restart + "  " + helpEntry("q", "quit")
	case session.StageAwaitingSelfie:
		if a.selfieLoaded {
			return helpEntry("enter", "verify & finish") + "  " + helpEntry("type path", "retake") + "  " + restart + "  " + quit
		}
		return helpEntry("enter", "load selfie") + "  " + restart + "  " + quit
	case session.StageResult:
		return helpEntry("r", "restart") + "  " + helpEntry("c", "copy ref") + "  " + helpEntry("q", "quit")
	}
	return quit
}

func centerLine(s string, width int) string {
	pad := (width - lipgloss.Width(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s
}
