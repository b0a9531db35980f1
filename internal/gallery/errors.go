package gallery

import (
	"errors"
	"fmt"
)

var ErrMissingListing = errors.New("listing id is required")

type Stage string

const (
	StageUpload Stage = "upload"
	StageCommit Stage = "commit"
)

// UploadError reports which step of a commit failed. It unwraps to the
// store error, which callers show to the user as is.
type UploadError struct {
	Stage    Stage
	Filename string // set for StageUpload
	Path     string // set for StageUpload
	Err      error
}

func (e *UploadError) Error() string {
	if e.Stage == StageUpload {
		return fmt.Sprintf("upload %s: %v", e.Filename, e.Err)
	}
	return fmt.Sprintf("commit images: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
