package cascache

import (
	"errors"
	"fmt"
)

// Sentinel errors for the public API. Their string identities
// match the externally-documented error codes (InterfaceType,
// SerializeFailed, DeserializeFailed, CorruptFile, BreakerOpen,
// LockTimeout); callers should match with errors.Is, not string
// comparison.
var (
	// ErrInterfaceType is returned by New when the caller's type parameter
	// is an interface (or a pointer to one): the coordinator needs a
	// concrete type name to scope FormattedKey.
	ErrInterfaceType = errors.New("cascache: InterfaceType: T must be a concrete type")

	// ErrSerializeFailed wraps a Serializer.Serialize failure.
	ErrSerializeFailed = errors.New("cascache: SerializeFailed")

	// ErrDeserializeFailed wraps a Serializer.Deserialize failure.
	ErrDeserializeFailed = errors.New("cascache: DeserializeFailed")

	// ErrCorruptFile is the identity for a file-tier record that failed its
	// header/length checks. The file tier does not return it: such a file
	// is deleted and the read is reported as a miss.
	ErrCorruptFile = errors.New("cascache: CorruptFile")

	// ErrBreakerOpen is the identity for an open distributed-tier circuit
	// breaker. The adapter itself returns distributed.ErrBreakerOpen, which
	// the coordinator treats as a tier miss on reads and reports inside
	// DeleteError.DistErr on Delete; this value is not returned.
	ErrBreakerOpen = errors.New("cascache: BreakerOpen")

	// ErrLockTimeout is returned by TryAcquireLock when the hold could not
	// be taken before the caller's timeout elapsed.
	ErrLockTimeout = errors.New("cascache: LockTimeout")
)

// DeleteError reports a failed Delete. Per the error-handling discipline,
// L3 deletion failures must be surfaced (not swallowed) since a failed
// distributed delete risks the key resurrecting through read-through.
// Delete sets only DistErr: L1/L2 delete failures are logged, not
// recorded here, so MemoryErr and FileErr are nil in errors it returns.
type DeleteError struct {
	Key       string
	DistErr   error
	MemoryErr error
	FileErr   error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("cascache: delete %q failed: dist=%v mem=%v file=%v",
		e.Key, e.DistErr, e.MemoryErr, e.FileErr)
}

func (e *DeleteError) Unwrap() []error {
	errs := make([]error, 0, 3)
	if e.DistErr != nil {
		errs = append(errs, e.DistErr)
	}
	if e.MemoryErr != nil {
		errs = append(errs, e.MemoryErr)
	}
	if e.FileErr != nil {
		errs = append(errs, e.FileErr)
	}
	return errs
}
