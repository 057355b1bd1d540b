package pipeline

import (
	"maps"
	"slices"
	"sync"

	"github.com/pkg/errors"
)

// Constructor creates a stage with its declared default options.
type Constructor func() Stage

// StageType describes a registered stage type.
type StageType struct {
	ID          string
	Description string
	New         Constructor
}

// Registry maps stage type ids to constructors. It is populated explicitly at start up.
type Registry struct {
	mu    sync.RWMutex
	types map[string]StageType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]StageType)}
}

// Register adds a stage type. It fails with ErrDuplicateType if id is taken.
func (r *Registry) Register(id, description string, ctor Constructor) error {
	if id == "" || ctor == nil {
		return errors.Wrap(ErrInvalidStage, "stage type needs an id and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[id]; ok {
		return errors.Wrap(ErrDuplicateType, id)
	}
	r.types[id] = StageType{ID: id, Description: description, New: ctor}

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(id, description string, ctor Constructor) {
	err := r.Register(id, description, ctor)
	if err != nil {
		panic(err)
	}
}

// Lookup returns the stage type registered under id.
func (r *Registry) Lookup(id string) (StageType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typ, ok := r.types[id]

	return typ, ok
}

// New creates a stage of type id and applies values to its options.
// Unknown option names are ignored; a missing required option returns ErrConfig.
func (r *Registry) New(id string, values map[string]any) (Stage, error) {
	typ, ok := r.Lookup(id)
	if !ok {
		return nil, errors.Wrap(ErrUnknownStageType, id)
	}
	stage := typ.New()
	err := validateStage(stage)
	if err != nil {
		return nil, errors.Wrapf(err, "stage type %s", id)
	}
	err = stage.Options().Apply(values)
	if err != nil {
		return nil, errors.Wrapf(err, "stage type %s", id)
	}

	return stage, nil
}

// NewNode creates a node holding a stage of type typ.
func (r *Registry) NewNode(nodeID, typ string, values map[string]any) (*Node, error) {
	stage, err := r.New(typ, values)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create node %s", nodeID)
	}

	return NewNode(nodeID, typ, stage)
}

// Types returns the registered stage types sorted by id.
func (r *Registry) Types() []StageType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]StageType, 0, len(r.types))
	for _, id := range slices.Sorted(maps.Keys(r.types)) {
		res = append(res, r.types[id])
	}

	return res
}
