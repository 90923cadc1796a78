package taskdb

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matflow/wkshp/internal/config"
	"github.com/matflow/wkshp/internal/monitoring"
	"github.com/matflow/wkshp/internal/tasklabel"
	"github.com/matflow/wkshp/internal/testutil"
)

// fakeCollection answers FindOne over in-memory documents, honouring the
// task_label filter and an _id sort.
type fakeCollection struct {
	docs    []bson.D
	queries []string
}

func (f *fakeCollection) FindOne(_ context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	label := lookup(filter.(bson.D), "task_label").(string)
	f.queries = append(f.queries, label)

	desc := false
	for _, o := range opts {
		if s, ok := o.Sort.(bson.D); ok && len(s) == 1 && s[0].Key == "_id" && s[0].Value == -1 {
			desc = true
		}
	}

	var best bson.D
	var bestID primitive.ObjectID
	for _, doc := range f.docs {
		if lookup(doc, "task_label") != label {
			continue
		}
		id := lookup(doc, "_id").(primitive.ObjectID)
		cmp := bytes.Compare(id[:], bestID[:])
		if best == nil || (desc && cmp > 0) || (!desc && cmp < 0) {
			best, bestID = doc, id
		}
	}
	if best == nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(best, nil, nil)
}

func lookup(d bson.D, key string) interface{} {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

type fakeBlobs map[primitive.ObjectID][]byte

func (b fakeBlobs) Fetch(_ context.Context, id interface{}) ([]byte, error) {
	oid, ok := id.(primitive.ObjectID)
	if !ok {
		return nil, gridfs.ErrFileNotFound
	}
	data, ok := b[oid]
	if !ok {
		return nil, gridfs.ErrFileNotFound
	}
	return data, nil
}

func oidAt(sec int64) primitive.ObjectID {
	return primitive.NewObjectIDFromTimestamp(time.Unix(sec, 0))
}

func taskDoc(id primitive.ObjectID, label string, calc bson.D) bson.D {
	doc := bson.D{
		{Key: "_id", Value: id},
		{Key: "task_label", Value: label},
		{Key: "formula_pretty", Value: "Si"},
	}
	if calc != nil {
		doc = append(doc, bson.E{Key: "calcs_reversed", Value: bson.A{calc}})
	}
	return doc
}

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func TestLatestTasks_PicksHighestID(t *testing.T) {
	ids := map[string]primitive.ObjectID{}
	var docs []bson.D
	for i, label := range tasklabel.BandStructure {
		older := oidAt(int64(1000 + i))
		newest := oidAt(int64(5000 + i))
		middle := oidAt(int64(3000 + i))
		ids[label] = newest
		// Insert out of order so the fake cannot rely on position.
		docs = append(docs,
			taskDoc(middle, label, nil),
			taskDoc(newest, label, nil),
			taskDoc(older, label, nil),
		)
	}
	docs = append(docs, taskDoc(oidAt(9999), "elastic deformation 1", nil))

	coll := &fakeCollection{docs: docs}
	set, err := LatestTasks(context.Background(), coll)
	require.NoError(t, err)

	assert.Equal(t, tasklabel.BandStructure, coll.queries)
	for _, label := range tasklabel.BandStructure {
		got := set.Get(label)
		require.NotNil(t, got, label)
		assert.Equal(t, ids[label], got.ID, label)
		assert.Equal(t, label, got.TaskLabel)
		assert.Equal(t, "Si", got.FormulaPretty)
		assert.NotEmpty(t, got.Raw)
	}
	assert.Nil(t, set.Get("elastic deformation 1"))
}

func TestLatestTask_Missing(t *testing.T) {
	coll := &fakeCollection{docs: []bson.D{taskDoc(oidAt(1), tasklabel.Static, nil)}}

	_, err := LatestTask(context.Background(), coll, tasklabel.NSCFLine)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments), "got %v", err)

	_, err = LatestTasks(context.Background(), coll)
	assert.True(t, errors.Is(err, mongo.ErrNoDocuments), "got %v", err)
}

// finderFunc adapts a function to Finder.
type finderFunc func(filter interface{}) *mongo.SingleResult

func (f finderFunc) FindOne(_ context.Context, filter interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
	return f(filter)
}

func TestLatestTask_NonObjectID(t *testing.T) {
	tests := []struct {
		name string
		id   interface{}
		want string
	}{
		{"string", "mp-149-static", "mp-149-static"},
		{"int32", int32(17), "17"},
		{"object id", oidAt(7), oidAt(7).Hex()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := finderFunc(func(interface{}) *mongo.SingleResult {
				return mongo.NewSingleResultFromDocument(bson.D{
					{Key: "_id", Value: tt.id},
					{Key: "task_label", Value: tasklabel.Static},
				}, nil, nil)
			})

			task, err := LatestTask(context.Background(), f, tasklabel.Static)
			require.NoError(t, err)
			assert.Equal(t, tt.id, task.ID)
			assert.Equal(t, tt.want, task.IDString())
		})
	}
}

func TestTaskBlobID(t *testing.T) {
	blobID := oidAt(42)
	coll := &fakeCollection{docs: []bson.D{
		taskDoc(oidAt(1), tasklabel.NSCFLine, bson.D{{Key: BandStructureIDKey, Value: blobID}}),
		taskDoc(oidAt(2), tasklabel.Static, nil),
		taskDoc(oidAt(3), tasklabel.NSCFUniform, bson.D{{Key: "output", Value: "x"}}),
	}}
	ctx := context.Background()

	line, err := LatestTask(ctx, coll, tasklabel.NSCFLine)
	require.NoError(t, err)
	id, err := line.BlobID(BandStructureIDKey)
	require.NoError(t, err)
	assert.Equal(t, blobID, id)

	static, err := LatestTask(ctx, coll, tasklabel.Static)
	require.NoError(t, err)
	_, err = static.BlobID(BandStructureIDKey)
	assert.ErrorIs(t, err, ErrNoCalcs)

	uniform, err := LatestTask(ctx, coll, tasklabel.NSCFUniform)
	require.NoError(t, err)
	_, err = uniform.BlobID(DosIDKey)
	assert.ErrorIs(t, err, ErrNoBlobID)
}

func TestInflate(t *testing.T) {
	payload := []byte(`{"efermi": 1.5}`)
	got, err := Inflate(testutil.Deflate(t, payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = Inflate([]byte("not zlib data"))
	assert.ErrorIs(t, err, zlib.ErrHeader)
}

const bandsPayload = `{
  "efermi": 5.5,
  "kpoints": [[0, 0, 0], [0.5, 0, 0.5]],
  "bands": {"1": [[-5.8, -3.1], [6.1, 6.6]]},
  "labels_dict": {"X": [0.5, 0, 0.5]},
  "lattice_rec": {"matrix": [[1, 0, 0], [0, 1, 0], [0, 0, 1]]},
  "is_spin_polarized": false
}`

const dosPayload = `{"efermi": 5.6, "energies": [0, 1, 2], "densities": {"1": [0, 1, 0]}}`

func fixture(t *testing.T) (*TaskSet, fakeBlobs) {
	t.Helper()
	bsID, dosID := oidAt(100), oidAt(200)
	coll := &fakeCollection{docs: []bson.D{
		taskDoc(oidAt(1), tasklabel.StructureOptimization, bson.D{}),
		taskDoc(oidAt(2), tasklabel.Static, bson.D{}),
		taskDoc(oidAt(3), tasklabel.NSCFLine, bson.D{{Key: BandStructureIDKey, Value: bsID}}),
		taskDoc(oidAt(4), tasklabel.NSCFUniform, bson.D{{Key: DosIDKey, Value: dosID}}),
	}}
	set, err := LatestTasks(context.Background(), coll)
	require.NoError(t, err)
	return set, fakeBlobs{
		bsID:  testutil.Deflate(t, []byte(bandsPayload)),
		dosID: testutil.Deflate(t, []byte(dosPayload)),
	}
}

func TestLoadBandStructure(t *testing.T) {
	set, blobs := fixture(t)

	bs, err := LoadBandStructure(context.Background(), set, blobs)
	require.NoError(t, err)
	assert.Equal(t, 5.5, bs.Efermi)
	assert.Len(t, bs.Kpoints, 2)
	assert.Equal(t, 2, bs.NumBands())
	assert.False(t, bs.IsMetal())
}

func TestLoadDos(t *testing.T) {
	set, blobs := fixture(t)

	dos, err := LoadDos(context.Background(), set, blobs)
	require.NoError(t, err)
	assert.Equal(t, 5.6, dos.Efermi)
	assert.Equal(t, []float64{0, 1, 2}, dos.Energies)
	assert.Equal(t, []float64{0, 1, 0}, dos.TotalDensities())
}

func TestLoadBlob_Errors(t *testing.T) {
	set, blobs := fixture(t)
	ctx := context.Background()

	_, err := LoadDos(ctx, set, fakeBlobs{})
	assert.ErrorIs(t, err, gridfs.ErrFileNotFound)

	corrupt := fakeBlobs{}
	for id := range blobs {
		corrupt[id] = []byte("garbage")
	}
	_, err = LoadBandStructure(ctx, set, corrupt)
	assert.ErrorIs(t, err, zlib.ErrHeader)

	_, err = LoadBandStructure(ctx, &TaskSet{}, blobs)
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	admin := "admin"
	creds := &config.Credentials{
		Host: "db.example", Port: 27018, Database: "vasp", Collection: "tasks",
		AdminUser: &admin, AdminPassword: "pw",
	}

	plain := clientOptions(creds, false)
	assert.Equal(t, []string{"db.example:27018"}, plain.Hosts)
	assert.Nil(t, plain.Auth)

	authed := clientOptions(creds, true)
	require.NotNil(t, authed.Auth)
	assert.Equal(t, "admin", authed.Auth.Username)
	assert.Equal(t, "pw", authed.Auth.Password)
	assert.Equal(t, "vasp", authed.Auth.AuthSource)

	// A present but empty admin_user still authenticates.
	empty := ""
	creds.AdminUser = &empty
	authed = clientOptions(creds, creds.HasAdmin())
	require.NotNil(t, authed.Auth)
	assert.Equal(t, "", authed.Auth.Username)
}

func TestTaskCollection_ScopesToNamedCollection(t *testing.T) {
	path := testutil.WriteJSON(t, t.TempDir(), "db.json", config.Credentials{
		Host: "127.0.0.1", Port: 27017, Database: "wkshp", Collection: "tasks",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// mongo.Connect does not dial, so no server is needed here.
	s, err := TaskCollection(ctx, path)
	require.NoError(t, err)
	defer s.Close(ctx)

	assert.Equal(t, "wkshp", s.DB.Name())
	assert.Equal(t, "tasks", s.Collection.Name())
	assert.Equal(t, "wkshp", s.Collection.Database().Name())

	db, err := OpenDatabase(ctx, path)
	require.NoError(t, err)
	defer db.Close(ctx)
	assert.Equal(t, "wkshp", db.DB.Name())
}

func TestTaskCollection_MissingFile(t *testing.T) {
	_, err := TaskCollection(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
