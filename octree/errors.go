package octree

// Error types, retrievable with errors.Type from
// github.com/aukilabs/go-tooling/pkg/errors.
//
// Construction returns ErrTypeInvalidRecordType and ErrTypeInvalidConfig
// errors. The other types are raised as panics: they denote a caller bug.
const (
	ErrTypeInvalidRecordType = "octree-invalid-record-type"
	ErrTypeInvalidConfig     = "octree-invalid-config"
	ErrTypeNotRoot           = "octree-not-root"
	ErrTypeNotAware          = "octree-not-aware"
	ErrTypeOutOfBounds       = "octree-out-of-bounds"
)
