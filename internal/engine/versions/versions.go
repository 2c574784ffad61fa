package versions

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dar-workers/internal/common/errors"
	"dar-workers/internal/models"
)

// Version describes one selectable snapshot of an application.
type Version struct {
	Version        string     `json:"version"`
	IterationIndex int        `json:"iterationIndex"`
	DateSubmitted  *time.Time `json:"dateSubmitted,omitempty"`
	IsCurrent      bool       `json:"isCurrent"`
}

// List returns the versions userType may select, oldest first. The base
// submission is "<major>.0" and each visible iteration adds a minor version.
func List(app *models.Application, userType models.UserType) []Version {
	major := app.MajorVersion
	if major == 0 {
		major = 1
	}
	out := []Version{{
		Version:        fmt.Sprintf("%d.0", major),
		IterationIndex: -1,
		DateSubmitted:  app.DateSubmitted,
	}}
	for i, it := range app.AmendmentIterations {
		if _, ok := visible(it, userType); !ok {
			continue
		}
		out = append(out, Version{
			Version:        fmt.Sprintf("%d.%d", major, i+1),
			IterationIndex: i,
			DateSubmitted:  it.DateSubmitted,
		})
	}
	out[len(out)-1].IsCurrent = true
	return out
}

// Resolve maps a version string to an iteration index for Project. An empty
// version resolves to the latest version userType may see.
func Resolve(app *models.Application, userType models.UserType, version string) (int, error) {
	available := List(app, userType)
	if version == "" {
		return available[len(available)-1].IterationIndex, nil
	}
	parts := strings.Split(version, ".")
	if len(parts) != 2 {
		return 0, errors.NewValidationError(fmt.Sprintf("malformed version %q", version))
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return 0, errors.NewValidationError(fmt.Sprintf("malformed version %q", version))
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return 0, errors.NewValidationError(fmt.Sprintf("malformed version %q", version))
	}
	for _, v := range available {
		if v.Version == version {
			return v.IterationIndex, nil
		}
	}
	return 0, errors.NewNotFoundError("version", version)
}
