package mm

import "pios/kernel"

var (
	// ErrAlign is returned when an address or size violates the alignment
	// required by an operation.
	ErrAlign = &kernel.Error{Module: "mm", Message: "address is not aligned to the required granule"}

	// ErrOverflow is returned when a value falls outside its legal numeric range.
	ErrOverflow = &kernel.Error{Module: "mm", Message: "value out of range"}

	// ErrInvalid is returned for an illegal state transition.
	ErrInvalid = &kernel.Error{Module: "mm", Message: "invalid state transition"}

	// ErrNoFrame is returned when no physical frame of the requested size is free.
	ErrNoFrame = &kernel.Error{Module: "mm", Message: "out of physical frames"}

	// ErrNoPage is returned when no virtual page of the requested size is free.
	ErrNoPage = &kernel.Error{Module: "mm", Message: "out of virtual pages"}

	// ErrUnsupported is returned for requests whose shape is not supported,
	// such as an unknown block size.
	ErrUnsupported = &kernel.Error{Module: "mm", Message: "unsupported request"}

	// ErrNotInitialized is returned when a subsystem is used before its Init.
	ErrNotInitialized = &kernel.Error{Module: "mm", Message: "subsystem not initialized"}

	// ErrAlreadyInitialized is returned by a second call to a one-shot Init.
	ErrAlreadyInitialized = &kernel.Error{Module: "mm", Message: "subsystem already initialized"}
)
