package obras

import (
	"errors"

	"github.com/hazyhaar/obras/ingest"
	"github.com/hazyhaar/obras/workbook"
)

var (
	// ErrNoAllowedTeams means the workbook holds no entry of a tracked team.
	ErrNoAllowedTeams = errors.New("obras: no entry of the tracked teams found in the workbook")
	// ErrNoRemote means no remote workbook source is configured.
	ErrNoRemote = errors.New("obras: remote source not configured")
)

// Rejected reports whether err comes from the workbook content itself, so
// importing the same bytes again would fail the same way.
func Rejected(err error) bool {
	return errors.Is(err, ErrNoAllowedTeams) ||
		errors.Is(err, ingest.ErrNoUsableSheet) ||
		errors.Is(err, workbook.ErrUnsupportedFormat) ||
		errors.Is(err, workbook.ErrTooLarge)
}
