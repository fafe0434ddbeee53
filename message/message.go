package message

// Tags separate protocol traffic from collective traffic on the same peer pair.
const (
	TagValue   = 1
	TagBarrier = 2
)

type ReqMsg struct {
	Sender int    // Sender's rank.
	Tag    int    // TagValue or TagBarrier.
	Args   []byte // Encode payload message to bytes by encoding/gob.
}

// Value is the only payload the protocols exchange: one flag, digit, value or
// sentinel per message.
type Value struct {
	V int
}
