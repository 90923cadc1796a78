package taskdb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matflow/wkshp/internal/monitoring"
	"github.com/matflow/wkshp/internal/tasklabel"
)

var (
	// ErrNoCalcs is returned when a task has an empty or missing calcs_reversed list.
	ErrNoCalcs = errors.New("task has no calcs_reversed entries")
	// ErrNoBlobID is returned when the latest calc does not reference a blob.
	ErrNoBlobID = errors.New("calc has no blob id")
)

// Finder is the query surface used from a task collection.
// *mongo.Collection satisfies it.
type Finder interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// Task is a calculation record. Raw keeps the full document; only the fields
// used for lookups and summaries are decoded. ID holds whatever _id type the
// collection uses, usually a primitive.ObjectID.
type Task struct {
	ID            interface{} `bson:"_id"`
	TaskLabel     string      `bson:"task_label"`
	TaskID        interface{} `bson:"task_id,omitempty"`
	FormulaPretty string      `bson:"formula_pretty,omitempty"`

	Raw bson.Raw `bson:"-"`
}

// IDString formats ID for display: hex for ObjectIDs, fmt's default otherwise.
func (t *Task) IDString() string {
	if oid, ok := t.ID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(t.ID)
}

// BlobID returns calcs_reversed[0][key] from the raw document.
func (t *Task) BlobID(key string) (interface{}, error) {
	calcs, ok := t.Raw.Lookup("calcs_reversed").ArrayOK()
	if !ok {
		return nil, fmt.Errorf("task %s (%s): %w", t.IDString(), t.TaskLabel, ErrNoCalcs)
	}
	values, err := calcs.Values()
	if err != nil {
		return nil, fmt.Errorf("task %s: read calcs_reversed: %w", t.IDString(), err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("task %s (%s): %w", t.IDString(), t.TaskLabel, ErrNoCalcs)
	}
	first, ok := values[0].DocumentOK()
	if !ok {
		return nil, fmt.Errorf("task %s: calcs_reversed[0] is %s, not a document", t.IDString(), values[0].Type)
	}
	v, err := first.LookupErr(key)
	if err != nil {
		return nil, fmt.Errorf("task %s (%s) %s: %w", t.IDString(), t.TaskLabel, key, ErrNoBlobID)
	}

	var id interface{}
	if err := v.Unmarshal(&id); err != nil {
		return nil, fmt.Errorf("task %s: decode %s: %w", t.IDString(), key, err)
	}
	return id, nil
}

// LatestTask returns the most recently inserted task with the given label,
// i.e. the one with the greatest _id. A missing task yields mongo.ErrNoDocuments.
func LatestTask(ctx context.Context, f Finder, label string) (*Task, error) {
	filter := bson.D{{Key: "task_label", Value: label}}
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})

	raw, err := f.FindOne(ctx, filter, opts).Raw()
	if err != nil {
		return nil, fmt.Errorf("find latest %q task: %w", label, err)
	}

	var t Task
	if err := bson.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode %q task: %w", label, err)
	}
	t.Raw = raw
	return &t, nil
}

// TaskSet holds the latest task for each band-structure stage.
type TaskSet struct {
	StructureOptimization *Task
	Static                *Task
	NSCFLine              *Task
	NSCFUniform           *Task
}

// Get returns the task stored under label, or nil.
func (s *TaskSet) Get(label string) *Task {
	switch label {
	case tasklabel.StructureOptimization:
		return s.StructureOptimization
	case tasklabel.Static:
		return s.Static
	case tasklabel.NSCFLine:
		return s.NSCFLine
	case tasklabel.NSCFUniform:
		return s.NSCFUniform
	}
	return nil
}

func (s *TaskSet) set(label string, t *Task) {
	switch label {
	case tasklabel.StructureOptimization:
		s.StructureOptimization = t
	case tasklabel.Static:
		s.Static = t
	case tasklabel.NSCFLine:
		s.NSCFLine = t
	case tasklabel.NSCFUniform:
		s.NSCFUniform = t
	}
}

// LatestTasks fetches the latest task for each of the four band-structure
// labels. The first failing lookup is returned.
func LatestTasks(ctx context.Context, f Finder) (*TaskSet, error) {
	var set TaskSet
	for _, label := range tasklabel.BandStructure {
		t, err := LatestTask(ctx, f, label)
		if err != nil {
			return nil, err
		}
		monitoring.Logf("taskdb: latest %q task is %s", label, t.IDString())
		set.set(label, t)
	}
	return &set, nil
}
