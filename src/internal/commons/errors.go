package commons

import "errors"

// Store-level failures. Services translate these into domain errors.
var ErrRecordNotFound = errors.New("Record not found")
var ErrVersionConflict = errors.New("Version conflict")
var ErrDuplicateReference = errors.New("Duplicate reference")
