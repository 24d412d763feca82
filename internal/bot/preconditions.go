package bot

import (
	"fmt"
	"strings"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/platform"
)

// PreconditionError lists every host check that failed before start.
type PreconditionError struct {
	Issues []string
}

func (e *PreconditionError) Error() string {
	return "preconditions not met: " + strings.Join(e.Issues, "; ")
}

// CheckPreconditions verifies the host OS and screen resolution against
// want. It returns a *PreconditionError naming every failing check, or nil.
func CheckPreconditions(env platform.Environment, screen platform.Screen, want config.PreconditionsConfig) error {
	var issues []string

	if want.OS != "" {
		got, err := env.OS()
		switch {
		case err != nil:
			issues = append(issues, fmt.Sprintf("OS could not be determined: %v", err))
		case !strings.EqualFold(got, want.OS):
			issues = append(issues, "OS must be "+displayOS(want.OS))
		}
	}

	if want.Width > 0 && want.Height > 0 {
		w, h, err := screen.Size()
		switch {
		case err != nil:
			issues = append(issues, fmt.Sprintf("Resolution could not be determined: %v", err))
		case w != want.Width || h != want.Height:
			issues = append(issues, fmt.Sprintf("Resolution must be %dx%d (got %dx%d)", want.Width, want.Height, w, h))
		}
	}

	if len(issues) > 0 {
		return &PreconditionError{Issues: issues}
	}
	return nil
}

func displayOS(name string) string {
	switch strings.ToLower(name) {
	case "windows":
		return "Windows"
	case "darwin":
		return "macOS"
	case "linux":
		return "Linux"
	default:
		return name
	}
}
