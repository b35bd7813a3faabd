package webhook

// Kind is the event type of a decoded webhook.
type Kind uint8

const (
	// KindTelephony is a call outcome; "text" carries call metadata
	// (UNIQ, LINK, PHONE, DURATION, call_status, call_result).
	KindTelephony Kind = iota + 1
	// KindMessage is a plain note; "text" is the message body.
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindTelephony:
		return "telephony"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Classify returns KindMessage when "text" is a plain string and
// KindTelephony otherwise, including when it is absent.
func Classify(f Flat) Kind {
	if f.Get("text").IsString() {
		return KindMessage
	}
	return KindTelephony
}
