package kernel

import "msgqueue/internal/msgq"

const KernelService = "kernel"

var Operations = Ops(
	Broadcast{},
	RequestShutdown{},
	Lookup{},
	Status{},
)

//Kernel message payload types

// Boot is broadcast to every service that declares it once Run starts.
type Boot struct {
}

type RequestShutdown struct {
	ExitCode int `json:"exitcode,omitempty"`
}

type Broadcast struct {
	Payload any
}

// Lookup resolves a service name; the reply is a LookupResult.
type Lookup struct {
	Name string
}

type LookupResult struct {
	ID    msgq.ServiceID
	Found bool
}

// Status asks for a snapshot of all services; the reply is a []ServiceView.
type Status struct {
}
