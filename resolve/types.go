package resolve

import "github.com/dnsscience/resolve/internal/answer"

// AddressResult, ServiceResult, and TxtResult are the typed results this
// package's resolve operations return. They are defined in internal/answer
// (the component that builds them) and aliased here since the answer
// processor that constructs a result and the public API that returns it
// are meant to agree on its shape without a conversion pass in between.
type (
	AddressResult = answer.AddressResult
	ServiceResult = answer.ServiceResult
	TxtResult     = answer.TxtResult
)
