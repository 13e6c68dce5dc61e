/*
	Package workspace holds the named layers a curation session works on and the control
	panels that drive label transfer and export.  It is independent of any user interface:
	a host registers observers for layer changes and calls the Controls methods in response
	to user actions.
*/
package workspace

import (
	"errors"
	"fmt"
	"sync"

	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
)

// LayerKind distinguishes what a layer holds.
type LayerKind uint8

const (
	ImageLayer LayerKind = iota
	LabelsLayer
	PointsLayer
)

func (k LayerKind) String() string {
	switch k {
	case ImageLayer:
		return "image"
	case LabelsLayer:
		return "labels"
	case PointsLayer:
		return "points"
	default:
		return fmt.Sprintf("unknown layer kind %d", k)
	}
}

// ParseLayerKind returns the kind for a name produced by LayerKind.String.
func ParseLayerKind(s string) (LayerKind, error) {
	for _, k := range []LayerKind{ImageLayer, LabelsLayer, PointsLayer} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown layer kind %q", s)
}

// Layer is a named volume or point set.  Image and label layers hold a Volume while
// point layers hold Points.  Version is incremented each time the layer is modified
// through Workspace.Update.
type Layer struct {
	Name    string
	Kind    LayerKind
	Volume  *npil.Volume
	Points  *labels.PointSet
	Version uint64
}

var (
	ErrLayerNotFound = errors.New("Could not find selected layers")
	ErrLayerExists   = errors.New("layer already exists")
)

// LayerObserver is notified after layers are added or removed.
type LayerObserver interface {
	OnLayersChanged()
}

// Workspace is an ordered collection of uniquely named layers.  It is safe for
// concurrent use; modifications of layer data must go through Update so that they hold
// exclusive access for their duration.
type Workspace struct {
	sync.RWMutex
	layers    []*Layer
	observers []LayerObserver
}

func New() *Workspace {
	return new(Workspace)
}

// Subscribe registers an observer for layer insertions and removals.
func (w *Workspace) Subscribe(o LayerObserver) {
	w.Lock()
	w.observers = append(w.observers, o)
	w.Unlock()
}

func (w *Workspace) notify() {
	w.RLock()
	observers := append([]LayerObserver(nil), w.observers...)
	w.RUnlock()
	for _, o := range observers {
		o.OnLayersChanged()
	}
}

func (w *Workspace) find(name string) int {
	for i, layer := range w.layers {
		if layer.Name == name {
			return i
		}
	}
	return -1
}

// Add appends a layer.  A point layer without points gets an empty point set.
func (w *Workspace) Add(layer *Layer) error {
	if layer == nil || layer.Name == "" {
		return fmt.Errorf("layer must have a name")
	}
	switch layer.Kind {
	case ImageLayer, LabelsLayer:
		if layer.Volume == nil {
			return fmt.Errorf("%s layer %q has no volume", layer.Kind, layer.Name)
		}
	case PointsLayer:
		if layer.Points == nil {
			layer.Points = labels.NewPointSet()
		}
	default:
		return fmt.Errorf("layer %q: %s", layer.Name, layer.Kind)
	}
	w.Lock()
	if w.find(layer.Name) >= 0 {
		w.Unlock()
		return fmt.Errorf("%q: %w", layer.Name, ErrLayerExists)
	}
	w.layers = append(w.layers, layer)
	w.Unlock()

	npil.Debugf("Added %s layer %q\n", layer.Kind, layer.Name)
	w.notify()
	return nil
}

// Remove deletes the named layer.
func (w *Workspace) Remove(name string) error {
	w.Lock()
	i := w.find(name)
	if i < 0 {
		w.Unlock()
		return fmt.Errorf("%q: %w", name, ErrLayerNotFound)
	}
	w.layers = append(w.layers[:i], w.layers[i+1:]...)
	w.Unlock()

	npil.Debugf("Removed layer %q\n", name)
	w.notify()
	return nil
}

// Get returns the named layer.  The returned layer must not be modified except within
// Update.
func (w *Workspace) Get(name string) (*Layer, error) {
	w.RLock()
	defer w.RUnlock()
	i := w.find(name)
	if i < 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrLayerNotFound)
	}
	return w.layers[i], nil
}

// Layers returns the layers in insertion order.
func (w *Workspace) Layers() []*Layer {
	w.RLock()
	defer w.RUnlock()
	return append([]*Layer(nil), w.layers...)
}

// Names returns the names of layers of the given kind in insertion order.
func (w *Workspace) Names(kind LayerKind) []string {
	w.RLock()
	defer w.RUnlock()
	var names []string
	for _, layer := range w.layers {
		if layer.Kind == kind {
			names = append(names, layer.Name)
		}
	}
	return names
}

func (w *Workspace) resolve(names []string) ([]*Layer, error) {
	layers := make([]*Layer, len(names))
	for i, name := range names {
		j := w.find(name)
		if j < 0 {
			return nil, fmt.Errorf("%q: %w", name, ErrLayerNotFound)
		}
		layers[i] = w.layers[j]
	}
	return layers, nil
}

// Update runs fn with exclusive access to the named layers, given in the same order.
// If fn succeeds, the version of each layer is incremented.
func (w *Workspace) Update(names []string, fn func(layers []*Layer) error) error {
	w.Lock()
	defer w.Unlock()
	layers, err := w.resolve(names)
	if err != nil {
		return err
	}
	if err := fn(layers); err != nil {
		return err
	}
	for _, layer := range layers {
		layer.Version++
	}
	return nil
}

// View runs fn with shared read access to the named layers.
func (w *Workspace) View(names []string, fn func(layers []*Layer) error) error {
	w.RLock()
	defer w.RUnlock()
	layers, err := w.resolve(names)
	if err != nil {
		return err
	}
	return fn(layers)
}
