package msgq

type registryError struct {
	code   string
	msg    string
	parent error
}

func (e *registryError) Error() string { return e.code + ": " + e.msg }

func (e *registryError) Unwrap() error { return e.parent }

var (
	// ErrNotFound is the root of every "absent" outcome. Callers that only care
	// whether something was there match against it.
	ErrNotFound error = &registryError{code: "E_NO_SUCH", msg: "not found"}

	ErrNoSuchService  error = &registryError{code: "E_NO_SUCH", msg: "no such service", parent: ErrNotFound}
	ErrRegistryClosed error = &registryError{code: "E_CLOSED", msg: "registry is gone", parent: ErrNotFound}
	ErrNotAccepted    error = &registryError{code: "E_NO_SUCH", msg: "request was never accepted", parent: ErrNotFound}

	// ErrRejected means the destination took the request but did not recognize
	// its payload.
	ErrRejected error = &registryError{code: "E_REJECTED", msg: "destination did not recognize this request"}

	// ErrVanished means the destination was unregistered before answering.
	ErrVanished error = &registryError{code: "E_VANISHED", msg: "destination vanished before answering"}

	ErrCanceled           error = &registryError{code: "E_CANCELED", msg: "request canceled"}
	ErrUnexpectedResponse error = &registryError{code: "E_TYPE", msg: "unexpected response type"}
)
