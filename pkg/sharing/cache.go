// Package sharing tracks, per directory, which remote principals have been
// granted read or write access to each child entry.
//
// Grants are persisted in a shadow directory tree inside the same encrypted
// store as the data itself, rooted at
//
//	/<owner>/.capabilitycache/outbound/<mirrored real path>/sharedWith.cbor
//
// The shadow tree is sparse: a directory gets a shadow node the first time a
// grant below it is written, and an absent shadow node always means "no
// shares", never an error. Records are replaced wholesale on every mutation;
// the store's single overwrite call is the unit of atomicity and concurrent
// writers to the same record race last-writer-wins (a documented hazard this
// layer deliberately does not lock away).
package sharing

import (
	"context"

	"github.com/kestrelfs/kestrel/pkg/fs"
)

const (
	// RecordFileName is the per-directory shadow file holding the
	// serialized Record.
	RecordFileName = "sharedWith.cbor"

	// capabilityCacheDirName is the hidden top-level directory under the
	// owner's root that holds all capability cache state.
	capabilityCacheDirName = ".capabilitycache"

	// outboundDirName distinguishes grants we handed out from capability
	// state cached for other reasons.
	outboundDirName = "outbound"
)

// Retriever resolves a path to a file handle, loading it from the store if
// it exists. A miss is ok=false with no error. Sessions derive this from
// their PathTrie so the cache shares the session's capability view.
type Retriever func(ctx context.Context, p fs.Path) (*fs.File, bool, error)

// Transform is a pure function from one record to its successor. It must be
// side-effect free: ApplyAndCommit may be given the same input again if a
// retry layer is ever added above it.
type Transform func(*Record) *Record

// Cache answers "who has access to this subtree" queries and persists grant
// mutations. One Cache exists per signed-in principal, constructed at
// session start; it is the sole writer of the owner's shadow tree.
type Cache struct {
	retriever Retriever
	cacheBase fs.Path
	owner     string
}

// NewCache creates the sharing cache for owner. All store access goes
// through the retriever and the file handles it returns.
func NewCache(retriever Retriever, owner string) *Cache {
	return &Cache{
		retriever: retriever,
		cacheBase: fs.Join(owner, capabilityCacheDirName, outboundDirName),
		owner:     owner,
	}
}

// GetSharedWith returns the grant state of the entry at p. Lookups never
// materialize shadow state: a missing shadow directory or record file reads
// as the empty state.
func (c *Cache) GetSharedWith(ctx context.Context, p fs.Path) (FileShareState, error) {
	p = fs.NewPath(string(p))

	record, found, err := c.retrieve(ctx, p.Parent())
	if err != nil {
		return FileShareState{}, err
	}
	if !found {
		return EmptyFileShareState(), nil
	}

	return record.Get(p.Base()), nil
}

// GetAllDescendantShares returns every non-empty record found in or below
// start, keyed by the real path of the directory each record describes.
//
// Two sources contribute: the record in start's parent's shadow directory,
// filtered down to start's own name, and the full shadow subtree mirroring
// start itself. Results merge by plain union — a directory's record lives
// at exactly one shadow path, so the key sets cannot collide.
func (c *Cache) GetAllDescendantShares(ctx context.Context, start fs.Path) (map[fs.Path]*Record, error) {
	start = fs.NewPath(string(start))

	parent, found, err := c.retriever(ctx, c.cacheBase.ResolvePath(start.Parent()))
	if err != nil {
		return nil, err
	}
	if !found {
		return map[fs.Path]*Record{}, nil
	}

	name := start.Base()
	out := map[fs.Path]*Record{}

	recordFile, found, err := parent.Child(ctx, RecordFileName)
	if err != nil {
		return nil, err
	}
	if found {
		record, err := c.parseRecordFile(ctx, recordFile)
		if err != nil {
			return nil, err
		}
		if filtered, ok := record.Filter(name); ok {
			out[start.Parent()] = filtered
		}
	}

	subdir, found, err := parent.Child(ctx, name)
	if err != nil {
		return nil, err
	}
	if found {
		descendants, err := c.descend(ctx, subdir, start)
		if err != nil {
			return nil, err
		}
		for dir, record := range descendants {
			out[dir] = record
		}
	}

	return out, nil
}

// descend walks one shadow node. node mirrors the real path at realPath:
// a shadow directory requires recursion into each child, a sharedWith.cbor
// leaf is the record of the directory containing it, and anything else
// means the shadow tree is corrupt.
func (c *Cache) descend(ctx context.Context, node *fs.File, realPath fs.Path) (map[fs.Path]*Record, error) {
	if !node.IsDir() {
		if node.Name() != RecordFileName {
			return nil, &fs.StoreError{
				Code:    fs.ErrCorrupted,
				Message: "invalid sharing cache node",
				Path:    node.Path(),
			}
		}

		record, err := c.parseRecordFile(ctx, node)
		if err != nil {
			return nil, err
		}
		if record.IsEmpty() {
			return map[fs.Path]*Record{}, nil
		}
		return map[fs.Path]*Record{realPath.Parent(): record}, nil
	}

	children, err := node.Children(ctx)
	if err != nil {
		return nil, err
	}

	out := map[fs.Path]*Record{}
	for _, child := range children {
		sub, err := c.descend(ctx, child, realPath.Resolve(child.Name()))
		if err != nil {
			return nil, err
		}
		// Union without collision checks: each directory's record has
		// exactly one shadow location, so subtrees can't repeat keys.
		for dir, record := range sub {
			out[dir] = record
		}
	}

	return out, nil
}

// GetAllReadShares flattens GetAllDescendantShares into full child path →
// principals holding read access.
func (c *Cache) GetAllReadShares(ctx context.Context, start fs.Path) (map[fs.Path][]string, error) {
	return c.flattenShares(ctx, start, (*Record).ReadShares)
}

// GetAllWriteShares flattens GetAllDescendantShares into full child path →
// principals holding write access.
func (c *Cache) GetAllWriteShares(ctx context.Context, start fs.Path) (map[fs.Path][]string, error) {
	return c.flattenShares(ctx, start, (*Record).WriteShares)
}

func (c *Cache) flattenShares(ctx context.Context, start fs.Path, project func(*Record) map[string][]string) (map[fs.Path][]string, error) {
	records, err := c.GetAllDescendantShares(ctx, start)
	if err != nil {
		return nil, err
	}

	out := map[fs.Path][]string{}
	for dir, record := range records {
		for child, names := range project(record) {
			out[dir.Resolve(child)] = names
		}
	}

	return out, nil
}

// ApplyAndCommit is the sole mutation primitive: it materializes the shadow
// location for p's parent directory if needed, loads the current record,
// applies transform, and overwrites the record file with the result.
//
// The overwrite is a single store call and is the unit of atomicity. There
// is no locking: two concurrent commits on the same record may both read
// the same prior state, and the later overwrite silently wins.
func (c *Cache) ApplyAndCommit(ctx context.Context, p fs.Path, transform Transform) (bool, error) {
	p = fs.NewPath(string(p))

	file, current, err := c.retrieveWithFileOrCreate(ctx, p.Parent())
	if err != nil {
		return false, err
	}

	updated := transform(current)

	raw, err := updated.Serialize()
	if err != nil {
		return false, err
	}

	if _, err := file.Overwrite(ctx, raw); err != nil {
		return false, err
	}

	return true, nil
}

// AddSharedWith records that names were granted access on the entry at p.
func (c *Cache) AddSharedWith(ctx context.Context, access Access, p fs.Path, names []string) (bool, error) {
	p = fs.NewPath(string(p))
	return c.ApplyAndCommit(ctx, p, func(current *Record) *Record {
		return current.Add(access, p.Base(), names)
	})
}

// RemoveSharedWith records that names lost the given access on the entry
// at p.
func (c *Cache) RemoveSharedWith(ctx context.Context, access Access, p fs.Path, names []string) (bool, error) {
	p = fs.NewPath(string(p))
	return c.ApplyAndCommit(ctx, p, func(current *Record) *Record {
		return current.Remove(access, p.Base(), names)
	})
}

// ClearSharedWith drops every grant on the entry at p. The record file
// itself persists, possibly empty.
func (c *Cache) ClearSharedWith(ctx context.Context, p fs.Path) (bool, error) {
	p = fs.NewPath(string(p))
	return c.ApplyAndCommit(ctx, p, func(current *Record) *Record {
		return current.Clear(p.Base())
	})
}

// retrieve loads the record for the real directory dir, without creating
// anything.
func (c *Cache) retrieve(ctx context.Context, dir fs.Path) (*Record, bool, error) {
	file, found, err := c.retriever(ctx, c.cacheBase.ResolvePath(dir).Resolve(RecordFileName))
	if err != nil || !found {
		return nil, false, err
	}

	record, err := c.parseRecordFile(ctx, file)
	if err != nil {
		return nil, false, err
	}

	return record, true, nil
}

func (c *Cache) parseRecordFile(ctx context.Context, file *fs.File) (*Record, error) {
	raw, err := file.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	record, err := ParseRecord(raw)
	if err != nil {
		return nil, &fs.StoreError{
			Code:    fs.ErrCorrupted,
			Message: "malformed sharing record",
			Path:    file.Path(),
		}
	}

	return record, nil
}

// initializeCache materializes the cache base directories under the owner's
// root and returns the outbound root.
func (c *Cache) initializeCache(ctx context.Context) (*fs.File, error) {
	userRoot, found, err := c.retriever(ctx, fs.NewPath(c.owner))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &fs.StoreError{Code: fs.ErrNotFound, Message: "owner root not found", Path: fs.NewPath(c.owner)}
	}

	cacheRoot, err := c.getOrMkdir(ctx, userRoot, capabilityCacheDirName)
	if err != nil {
		return nil, err
	}

	return c.getOrMkdir(ctx, cacheRoot, outboundDirName)
}

// getOrMkdir returns the named child directory of parent, creating it first
// if absent. The creation call returns the updated parent, so the child is
// always re-fetched rather than assumed. Idempotent.
func (c *Cache) getOrMkdir(ctx context.Context, parent *fs.File, name string) (*fs.File, error) {
	child, found, err := parent.Child(ctx, name)
	if err != nil {
		return nil, err
	}
	if found {
		if !child.IsDir() {
			return nil, &fs.StoreError{
				Code:    fs.ErrCorrupted,
				Message: "invalid sharing cache node",
				Path:    child.Path(),
			}
		}
		return child, nil
	}

	updated, err := parent.Mkdir(ctx, name)
	if err != nil {
		return nil, err
	}

	child, found, err = updated.Child(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &fs.StoreError{Code: fs.ErrNotFound, Message: "directory vanished after creation", Path: updated.Path().Resolve(name)}
	}

	return child, nil
}

func (c *Cache) getOrMkdirs(ctx context.Context, parent *fs.File, segments []string) (*fs.File, error) {
	current := parent
	for _, segment := range segments {
		next, err := c.getOrMkdir(ctx, current, segment)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// retrieveWithFileOrCreate resolves the record file for the real directory
// dir, lazily creating the whole shadow chain and an empty record file on
// first touch.
func (c *Cache) retrieveWithFileOrCreate(ctx context.Context, dir fs.Path) (*fs.File, *Record, error) {
	cacheRoot, found, err := c.retriever(ctx, c.cacheBase)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		cacheRoot, err = c.initializeCache(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	parent, err := c.getOrMkdirs(ctx, cacheRoot, dir.Segments())
	if err != nil {
		return nil, nil, err
	}

	file, found, err := parent.Child(ctx, RecordFileName)
	if err != nil {
		return nil, nil, err
	}
	if found {
		record, err := c.parseRecordFile(ctx, file)
		if err != nil {
			return nil, nil, err
		}
		return file, record, nil
	}

	empty := NewRecord()
	raw, err := empty.Serialize()
	if err != nil {
		return nil, nil, err
	}

	updated, err := parent.WriteNew(ctx, RecordFileName, raw)
	if err != nil {
		return nil, nil, err
	}

	file, found, err = updated.Child(ctx, RecordFileName)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, &fs.StoreError{Code: fs.ErrNotFound, Message: "record file vanished after creation", Path: updated.Path().Resolve(RecordFileName)}
	}

	return file, empty, nil
}
