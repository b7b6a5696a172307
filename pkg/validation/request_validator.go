package validation

import (
	"strconv"
	"strings"

	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/pkg/models"
)

// MissingParamsMessage is returned when container or path is absent
const MissingParamsMessage = "Missing required query parameters. Expected: container, path."

// ValidateProcessRequest checks the required parameters and the folder index
func ValidateProcessRequest(req models.ProcessRequest) error {
	if req.Container == "" || req.Path == "" {
		return apperrors.NewValidationError(MissingParamsMessage, nil)
	}
	if _, _, err := ParseFolderIndex(req.FolderIDIdx); err != nil {
		return err
	}
	return nil
}

// ParseFolderIndex parses folder_id_idx; ok is false when it was not given
func ParseFolderIndex(raw string) (idx int, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	idx, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, apperrors.NewValidationError("folder_id_idx must be an integer", err)
	}
	return idx, true, nil
}
