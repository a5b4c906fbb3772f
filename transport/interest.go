package transport

// Interest is the set of I/O directions a connection asks the
// reactor to wait for before re-invoking it.
type Interest uint8

const (
	ReadInterest Interest = 1 << iota
	WriteInterest
)

func (i Interest) Reads() bool {
	return i&ReadInterest != 0
}

func (i Interest) Writes() bool {
	return i&WriteInterest != 0
}

func (i Interest) String() string {
	switch {
	case i.Reads() && i.Writes():
		return "read|write"
	case i.Reads():
		return "read"
	case i.Writes():
		return "write"
	}
	return "none"
}
