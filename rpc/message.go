// message.go
package rpc

// MoveType selects a motion request's kind.
type MoveType uint8

const (
	MoveForward MoveType = iota
	MoveBackward
	MoveSpinCW
	MoveSpinCCW
)

// SenseKind selects what a SenseRequest asks for.
type SenseKind uint8

const (
	SenseObstacle SenseKind = iota
	SenseLine
	SenseDistance
)

// Message is the tagged union carried by the wire envelope. Every
// variant below implements it; Tag identifies the variant on the wire.
type Message interface {
	Tag() byte
}

const (
	tagMoveRequest byte = iota + 1
	tagLookRequest
	tagLookDirectionRequest
	tagLookDirectionResponse
	tagSenseRequest
	tagSenseResponse
	tagStatusResponse
)

// MoveRequest commands a Mover operation.
type MoveRequest struct {
	Kind  MoveType
	Speed uint8
}

func (MoveRequest) Tag() byte { return tagMoveRequest }

// LookRequest commands Looker.look_at(h, v).
type LookRequest struct {
	H float32
	V float32
}

func (LookRequest) Tag() byte { return tagLookRequest }

// LookDirectionRequest asks for the last commanded look direction.
type LookDirectionRequest struct{}

func (LookDirectionRequest) Tag() byte { return tagLookDirectionRequest }

// LookDirectionResponse answers LookDirectionRequest.
type LookDirectionResponse struct {
	H float32
	V float32
}

func (LookDirectionResponse) Tag() byte { return tagLookDirectionResponse }

// SenseRequest asks for one sensor reading kind.
type SenseRequest struct {
	What SenseKind
}

func (SenseRequest) Tag() byte { return tagSenseRequest }

// SenseResponse answers a SenseRequest. Exactly one of the two payload
// fields (Bools for obstacle/line, DistanceMM for distance) is
// meaningful, selected by Kind.
type SenseResponse struct {
	Kind      SenseKind
	Bools     [2]bool
	DistanceMM float32
}

func (SenseResponse) Tag() byte { return tagSenseResponse }

// StatusResponse answers any command that has no value payload of its
// own (MoveRequest, LookRequest), or carries an error for any request.
type StatusResponse struct {
	OK      bool
	Message string
}

func (StatusResponse) Tag() byte { return tagStatusResponse }

// Success is the canonical positive StatusResponse.
func Success() StatusResponse { return StatusResponse{OK: true} }

// Failure builds an error StatusResponse carrying msg.
func Failure(msg string) StatusResponse { return StatusResponse{OK: false, Message: msg} }
