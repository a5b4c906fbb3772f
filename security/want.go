package security

// Want is the unmet transport need of the most recent engine
// operation. It is the one piece of session state that can steer the
// reactor's readiness interest away from the transport default.
type Want uint8

const (
	WantNone Want = iota
	WantRead
	WantWrite
)

func (w Want) String() string {
	switch w {
	case WantRead:
		return "read"
	case WantWrite:
		return "write"
	}
	return "none"
}
