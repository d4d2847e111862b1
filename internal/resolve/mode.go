package resolve

import (
	"fmt"
	"io"

	"squadron-stats/internal/constants"
)

// ForMode builds the strategy named by a configuration string.
func ForMode(mode string, autoAcceptScore float64, in io.Reader, out io.Writer) (Strategy, error) {
	switch mode {
	case "interactive":
		return NewInteractive(in, out, constants.CandidateDisplayLimit), nil
	case "auto-top":
		return AutoTop{MinScore: autoAcceptScore}, nil
	case "auto-create":
		return AutoCreate{}, nil
	case "auto-skip":
		return AutoSkip{}, nil
	default:
		return nil, fmt.Errorf("unknown resolution mode %q", mode)
	}
}
