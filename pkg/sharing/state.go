package sharing

// FileShareState is the outbound grant state of one child entry: which
// principals hold read access and which hold write access. Both slices are
// sorted and never nil.
type FileShareState struct {
	ReadAccess  []string
	WriteAccess []string
}

// EmptyFileShareState is the state of an entry nobody has been granted
// access to.
func EmptyFileShareState() FileShareState {
	return FileShareState{ReadAccess: []string{}, WriteAccess: []string{}}
}

// IsEmpty reports whether no principal holds any access.
func (s FileShareState) IsEmpty() bool {
	return len(s.ReadAccess) == 0 && len(s.WriteAccess) == 0
}
