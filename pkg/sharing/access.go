package sharing

// Access is the level of a grant: read or write.
type Access int

const (
	// AccessRead grants the ability to read an entry and its subtree.
	AccessRead Access = iota

	// AccessWrite grants the ability to modify an entry and its subtree.
	AccessWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return "unknown"
	}
}
