package backup

import "errors"

// ErrPathEscapesArchive is returned when a tar entry's name would extract
// outside the restore target directory.
var ErrPathEscapesArchive = errors.New("backup: archive entry escapes target directory")

// ErrEntryTooLarge is returned when a single archive entry exceeds
// maxExtractedSize, guarding restore against decompression bombs.
var ErrEntryTooLarge = errors.New("backup: archive entry exceeds maximum extracted size")
