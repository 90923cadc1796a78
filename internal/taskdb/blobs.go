package taskdb

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matflow/wkshp/internal/electronic"
	"github.com/matflow/wkshp/internal/monitoring"
)

// GridFS bucket names and the calc keys referencing them.
const (
	BandStructureBucket = "bandstructure_fs"
	DosBucket           = "dos_fs"

	BandStructureIDKey = "bandstructure_fs_id"
	DosIDKey           = "dos_fs_id"
)

// BlobFetcher returns the stored bytes for a blob id.
type BlobFetcher interface {
	Fetch(ctx context.Context, id interface{}) ([]byte, error)
}

// GridFSStore fetches blobs from one GridFS bucket.
type GridFSStore struct {
	name   string
	bucket *gridfs.Bucket
}

// NewGridFSStore opens the bucket called name in db.
func NewGridFSStore(db *mongo.Database, name string) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %s: %w", name, err)
	}
	return &GridFSStore{name: name, bucket: bucket}, nil
}

// Fetch downloads the whole file with the given id. A deadline on ctx is
// applied as the bucket read deadline.
func (s *GridFSStore) Fetch(ctx context.Context, id interface{}) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	n, err := s.bucket.DownloadToStream(id, &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: download %v: %w", s.name, id, err)
	}
	monitoring.Logf("taskdb: fetched %d bytes from %s", n, s.name)
	return buf.Bytes(), nil
}

// Inflate zlib-decompresses data.
func Inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return out, nil
}

// FetchJSON fetches the blob under id and decompresses it.
func FetchJSON(ctx context.Context, store BlobFetcher, id interface{}) ([]byte, error) {
	data, err := store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return Inflate(data)
}

func fetchTaskBlob(ctx context.Context, t *Task, key string, store BlobFetcher) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%s: no task", key)
	}
	id, err := t.BlobID(key)
	if err != nil {
		return nil, err
	}
	return FetchJSON(ctx, store, id)
}

// LoadBandStructure decodes the band structure referenced by the nscf line task.
func LoadBandStructure(ctx context.Context, tasks *TaskSet, store BlobFetcher) (*electronic.BandStructureSymmLine, error) {
	payload, err := fetchTaskBlob(ctx, tasks.NSCFLine, BandStructureIDKey, store)
	if err != nil {
		return nil, err
	}
	return electronic.BandStructureFromJSON(payload)
}

// LoadDos decodes the DOS referenced by the nscf uniform task.
func LoadDos(ctx context.Context, tasks *TaskSet, store BlobFetcher) (*electronic.Dos, error) {
	payload, err := fetchTaskBlob(ctx, tasks.NSCFUniform, DosIDKey, store)
	if err != nil {
		return nil, err
	}
	return electronic.DosFromJSON(payload)
}

// BandStructure opens dbFile, finds the latest band-structure tasks and
// loads the nscf line band structure from the bandstructure_fs bucket.
func BandStructure(ctx context.Context, dbFile string) (*electronic.BandStructureSymmLine, error) {
	s, tasks, err := openLatest(ctx, dbFile)
	if err != nil {
		return nil, err
	}
	defer s.Close(ctx)

	store, err := NewGridFSStore(s.DB, BandStructureBucket)
	if err != nil {
		return nil, err
	}
	return LoadBandStructure(ctx, tasks, store)
}

// Dos opens dbFile, finds the latest band-structure tasks and loads the nscf
// uniform DOS from the dos_fs bucket.
func Dos(ctx context.Context, dbFile string) (*electronic.Dos, error) {
	s, tasks, err := openLatest(ctx, dbFile)
	if err != nil {
		return nil, err
	}
	defer s.Close(ctx)

	store, err := NewGridFSStore(s.DB, DosBucket)
	if err != nil {
		return nil, err
	}
	return LoadDos(ctx, tasks, store)
}

func openLatest(ctx context.Context, dbFile string) (*Session, *TaskSet, error) {
	s, err := TaskCollection(ctx, dbFile)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := LatestTasks(ctx, s.Collection)
	if err != nil {
		s.Close(ctx)
		return nil, nil, err
	}
	return s, tasks, nil
}
