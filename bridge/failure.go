package bridge

import (
	"encoding/json"

	"github.com/callbridge/callbridge/domain/entities"
	"github.com/callbridge/callbridge/domain/errors"
)

// Status classifies a HostFailure. Hosts are not expected to branch on it.
type Status string

// StatusGenericFailure is the only classification the bridge produces.
const StatusGenericFailure Status = "GenericFailure"

// HostFailure is the terminal form of a failure crossing back to the host.
type HostFailure struct {
	// Detail is the structured view of the first categorized error in the chain.
	Detail *entities.ErrorDetail `json:"detail,omitempty"`

	// Status is always StatusGenericFailure.
	Status Status `json:"status"`

	// Message is the flattened, multi-line cause chain.
	Message string `json:"message"`
}

func (f *HostFailure) Error() string {
	if f == nil {
		return ""
	}
	return f.Message
}

// ToJSON serializes the HostFailure to JSON bytes.
// Returns nil if serialization fails (which should never happen for this type).
func (f *HostFailure) ToJSON() []byte {
	data, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return data
}

// Translate converts err into a HostFailure. The message lists the outermost
// context first and the root cause last. Translate always succeeds; a nil err
// yields a failure with an empty message, and a non-nil *HostFailure is
// returned as is. A typed nil *HostFailure is treated like a nil err.
func Translate(err error) *HostFailure {
	if f, ok := err.(*HostFailure); ok {
		if f != nil {
			return f
		}
		err = nil
	}
	return &HostFailure{
		Status:  StatusGenericFailure,
		Message: errors.Trace(err),
		Detail:  errors.ToErrorDetail(err),
	}
}
