package domain

// Delivery is one record taken off the send-mail topic, before decoding.
type Delivery struct {
	Payload   []byte
	EventID   string
	Source    string
	Topic     string
	Partition int32
	Offset    int64
}
