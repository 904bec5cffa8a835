package fs

import "strings"

// Path is a slash-delimited absolute path whose first segment is the owning
// principal's name, e.g. "/alice/docs/report.pdf".
//
// Paths are plain strings rather than segment slices: they are used as map
// keys throughout the sharing layer, and a string compares and hashes
// without allocation. All helpers operate on the canonical form produced by
// NewPath ("/" + segments joined by "/", no empty segments).
type Path string

// NewPath canonicalizes s into an absolute Path. Empty and duplicate
// slashes are dropped; the empty string and "/" both canonicalize to "/".
func NewPath(s string) Path {
	return Path("/" + strings.Join(splitSegments(s), "/"))
}

// Join builds a canonical path from segments.
func Join(segments ...string) Path {
	return NewPath(strings.Join(segments, "/"))
}

func splitSegments(s string) []string {
	parts := strings.Split(s, "/")
	segments := parts[:0:len(parts)]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// Segments returns the path's segments, nil for the root path.
func (p Path) Segments() []string {
	return splitSegments(string(p))
}

// IsRoot reports whether p is the bare root "/".
func (p Path) IsRoot() bool {
	return len(p.Segments()) == 0
}

// Owner returns the first segment: the principal owning the tree the path
// points into. Empty for the root path.
func (p Path) Owner() string {
	segments := p.Segments()
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

// Base returns the last segment, or "" for the root path.
func (p Path) Base() string {
	segments := p.Segments()
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Parent returns the path with the last segment removed. The parent of the
// root is the root.
func (p Path) Parent() Path {
	segments := p.Segments()
	if len(segments) == 0 {
		return NewPath("")
	}
	return Path("/" + strings.Join(segments[:len(segments)-1], "/"))
}

// Resolve appends name (itself possibly multi-segment) to p.
func (p Path) Resolve(name string) Path {
	return NewPath(string(p) + "/" + name)
}

// ResolvePath appends another path to p.
func (p Path) ResolvePath(other Path) Path {
	return p.Resolve(string(other))
}

func (p Path) String() string {
	return string(NewPath(string(p)))
}
