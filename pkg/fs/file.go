package fs

import (
	"context"

	"github.com/kestrelfs/kestrel/pkg/blocks"
)

// File is a handle to one resolved file or directory.
//
// A handle is a snapshot: it captures the content address the path resolved
// to at lookup time, so reads through it see a consistent tree even while
// concurrent writers advance the owner's root. Mutating methods re-walk the
// live tree from the root and return fresh handles; the receiver is never
// updated in place.
type File struct {
	store    *Store
	owner    string
	key      []byte
	writable bool
	path     Path
	dir      bool
	size     uint64
	cid      blocks.Cid
}

// Name returns the final path segment.
func (f *File) Name() string {
	return f.path.Base()
}

// Path returns the file's absolute path.
func (f *File) Path() Path {
	return f.path
}

// IsDir reports whether the handle refers to a directory.
func (f *File) IsDir() bool {
	return f.dir
}

// Size returns the plaintext size in bytes (zero for directories).
func (f *File) Size() uint64 {
	return f.size
}

// Writable reports whether the capability behind this handle grants write.
func (f *File) Writable() bool {
	return f.writable
}

// Child looks up an immediate child by name. A missing child is reported as
// ok=false with no error.
func (f *File) Child(ctx context.Context, name string) (*File, bool, error) {
	if !f.dir {
		return nil, false, &StoreError{Code: ErrNotDirectory, Message: "not a directory", Path: f.path}
	}

	node, err := f.store.loadNode(ctx, f.key, f.cid, f.path)
	if err != nil {
		return nil, false, err
	}

	ref, ok := node.Children[name]
	if !ok {
		return nil, false, nil
	}

	return f.childHandle(name, ref), true, nil
}

// Children enumerates the immediate children, sorted by name.
func (f *File) Children(ctx context.Context) ([]*File, error) {
	if !f.dir {
		return nil, &StoreError{Code: ErrNotDirectory, Message: "not a directory", Path: f.path}
	}

	node, err := f.store.loadNode(ctx, f.key, f.cid, f.path)
	if err != nil {
		return nil, err
	}

	children := make([]*File, 0, len(node.Children))
	for _, name := range sortedNames(node) {
		children = append(children, f.childHandle(name, node.Children[name]))
	}

	return children, nil
}

func (f *File) childHandle(name string, ref childRef) *File {
	return &File{
		store:    f.store,
		owner:    f.owner,
		key:      f.key,
		writable: f.writable,
		path:     f.path.Resolve(name),
		dir:      ref.Dir,
		size:     ref.Size,
		cid:      ref.Cid,
	}
}

// ReadAll returns the full decrypted content of a regular file.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	if f.dir {
		return nil, &StoreError{Code: ErrIsDirectory, Message: "is a directory", Path: f.path}
	}

	return f.store.openContent(ctx, f.key, f.cid, f.path)
}

// Mkdir creates a child directory under this directory and returns a fresh
// handle to the updated parent (not the child — callers re-fetch the child
// by name). Creating a directory that already exists is a no-op; a regular
// file in the way is an error. Idempotent.
func (f *File) Mkdir(ctx context.Context, name string) (*File, error) {
	if err := f.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &StoreError{Code: ErrInvalidArgument, Message: "empty directory name", Path: f.path}
	}

	emptyCid, err := f.store.sealNode(ctx, f.key, newDirNode())
	if err != nil {
		return nil, err
	}

	err = f.store.updateDir(ctx, f.owner, f.key, f.path, func(node *dirNode) error {
		if existing, ok := node.Children[name]; ok {
			if !existing.Dir {
				return &StoreError{Code: ErrNotDirectory, Message: "name taken by a file", Path: f.path.Resolve(name)}
			}
			return nil
		}
		node.Children[name] = childRef{Cid: emptyCid, Dir: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return f.refresh(ctx, f.path)
}

// WriteNew uploads data as a child file of this directory, replacing any
// existing file of the same name, and returns a fresh handle to the updated
// parent.
func (f *File) WriteNew(ctx context.Context, name string, data []byte) (*File, error) {
	if err := f.checkMutable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &StoreError{Code: ErrInvalidArgument, Message: "empty file name", Path: f.path}
	}

	contentCid, err := f.store.sealContent(ctx, f.key, data)
	if err != nil {
		return nil, err
	}

	err = f.store.updateDir(ctx, f.owner, f.key, f.path, func(node *dirNode) error {
		if existing, ok := node.Children[name]; ok && existing.Dir {
			return &StoreError{Code: ErrIsDirectory, Message: "name taken by a directory", Path: f.path.Resolve(name)}
		}
		node.Children[name] = childRef{Cid: contentCid, Size: uint64(len(data))}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return f.refresh(ctx, f.path)
}

// Overwrite replaces this file's content in place and returns a fresh
// handle. The single root-pointer swap behind the update is the unit of
// atomicity: readers see the old content or the new, never a mix.
func (f *File) Overwrite(ctx context.Context, data []byte) (*File, error) {
	if f.dir {
		return nil, &StoreError{Code: ErrIsDirectory, Message: "is a directory", Path: f.path}
	}
	if err := f.checkMutable(); err != nil {
		return nil, err
	}

	contentCid, err := f.store.sealContent(ctx, f.key, data)
	if err != nil {
		return nil, err
	}

	name := f.path.Base()

	err = f.store.updateDir(ctx, f.owner, f.key, f.path.Parent(), func(node *dirNode) error {
		if _, ok := node.Children[name]; !ok {
			return &StoreError{Code: ErrNotFound, Message: "file no longer exists", Path: f.path}
		}
		node.Children[name] = childRef{Cid: contentCid, Size: uint64(len(data))}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return f.refresh(ctx, f.path)
}

func (f *File) checkMutable() error {
	if !f.writable {
		return &StoreError{Code: ErrReadOnly, Message: "no write capability", Path: f.path}
	}
	return nil
}

// refresh re-resolves p against the live tree after a commit.
func (f *File) refresh(ctx context.Context, p Path) (*File, error) {
	fresh, ok, err := f.store.resolveWithKey(ctx, f.owner, f.key, p, f.writable)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &StoreError{Code: ErrNotFound, Message: "path vanished after commit", Path: p}
	}
	return fresh, nil
}
