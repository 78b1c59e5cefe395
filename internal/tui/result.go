package tui

import (
	"fmt"
	"strings"

	"github.com/identity-vault/idvault/pkg/kyc"
)

// resultView renders the terminal screen: a match decision, a mismatch, or
// an error banner when the verify action failed in transport. The user
// always lands here, never on a stuck spinner.
func resultView(result *kyc.VerifyResult, errMsg, kycID string, copied bool, width int) string {
	var sb strings.Builder

	switch {
	case result != nil && result.FaceMatch:
		sb.WriteString(matchStyle.Render("IDENTITY VERIFIED") + "\n")
		sb.WriteString(similarityStyle.Render(fmt.Sprintf("%.1f%% match", result.Similarity)) + "\n\n")
		sb.WriteString(dimStyle.Render("Biometric comparison confirmed your identity.") + "\n")
		sb.WriteString(renderExtracted(result.ExtractedData))

	case result != nil:
		sb.WriteString(mismatchStyle.Render("ACCESS DENIED") + "\n")
		sb.WriteString(dimStyle.Render(fmt.Sprintf("%.1f%% similarity — below the match threshold.", result.Similarity)) + "\n\n")
		sb.WriteString(dimStyle.Render("The selfie does not match the face on the ID.") + "\n")
		sb.WriteString(dimStyle.Render("Try again in better lighting.") + "\n")

	default:
		sb.WriteString(mismatchStyle.Render("VERIFICATION INCOMPLETE") + "\n")
	}

	if errMsg != "" {
		sb.WriteString("\n" + errBannerStyle.Render(errMsg) + "\n")
	}

	if kycID != "" {
		sb.WriteString("\n" + metaStyle.Render("ref ") + normalStyle.Render(kycID))
		if copied {
			sb.WriteString("  " + accentStyle.Render("copied"))
		}
		sb.WriteString("\n")
	}

	return card(sb.String(), width)
}

// renderExtracted shows the identity fields the service pulled off the
// document. Absent data is simply omitted.
func renderExtracted(data *kyc.ExtractedData) string {
	if data == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n" + metaStyle.Render("── VERIFIED IDENTITY DATA ──") + "\n")
	rows := []struct{ label, value string }{
		{"Full Name", data.Name},
		{"Date of Birth", data.DOB},
		{"Document ID", data.IDNumber},
	}
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		sb.WriteString(fieldLabelStyle.Render(fmt.Sprintf("%-14s", row.label)) + " " +
			fieldValueStyle.Render(row.value) + "\n")
	}
	return sb.String()
}
