package models

// ActivityReason describes why the owner is considered active
type ActivityReason string

const (
	ActivityOutgoingMessage ActivityReason = "outgoing message"
	ActivityReadReceipt     ActivityReason = "read receipt"
	ActivityAutoReplySent   ActivityReason = "auto-reply sent"
)

// ActivitySignal is delivered whenever the account owner acted
type ActivitySignal struct {
	Reason ActivityReason
}

// IncomingMessage is a new message received by the account.
// ReplyHandle is opaque to the engine; the sender that produced the message knows how to use it.
type IncomingMessage struct {
	SenderID    UserID
	Private     bool
	MessageID   int
	ReplyHandle any
}

// ActivitySource names an update kind that can count as owner activity
type ActivitySource string

const (
	SourceOutgoing ActivitySource = "outgoing"
	SourceRead     ActivitySource = "read"
)
