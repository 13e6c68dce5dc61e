package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/janelia-flyem/neuropil/imageio"
	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
)

// Default layer names created by Setup.
const (
	ImagesName = "Images"
	LabelsName = "Labels"
	PointsName = "Points"
)

// MutationRecorder receives an event for each successful label mutation or export.
type MutationRecorder interface {
	RecordMutation(labels.Event) error
}

// Curator implements Controls with a transfer panel and a save panel over one workspace.
type Curator struct {
	ws       *Workspace
	Transfer *TransferPanel
	Save     *SavePanel

	// serializes requests so a selection and its action are not interleaved
	mu       sync.Mutex
	recorder MutationRecorder
}

// NewCurator returns a Curator subscribed to the workspace.  The recorder may be nil.
func NewCurator(ws *Workspace, recorder MutationRecorder) *Curator {
	c := &Curator{
		ws:       ws,
		Transfer: NewTransferPanel(ws),
		Save:     NewSavePanel(ws),
		recorder: recorder,
	}
	ws.Subscribe(c)
	return c
}

// Workspace returns the workspace the curator operates on.
func (c *Curator) Workspace() *Workspace {
	return c.ws
}

func (c *Curator) record(e labels.Event) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordMutation(e); err != nil {
		npil.Errorf("Unable to record %s mutation %s: %v\n", e.EventType(), e.MutationID(), err)
	}
}

// OnLayersChanged refreshes the layer choices of both panels.
func (c *Curator) OnLayersChanged() {
	c.Transfer.Refresh()
	c.Save.Refresh()
}

// OnTransferRequested selects the requested layers and runs the transfer.
func (c *Curator) OnTransferRequested(req TransferRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transfer.Select(req)
	result, err := c.Transfer.Transfer()
	if err != nil {
		return err
	}
	c.record(labels.NewTransferEvent(req.From, req.To, result.NumPoints, result.Delta))
	return nil
}

// OnSaveRequested selects the requested layer and directory and exports the layer.
func (c *Curator) OnSaveRequested(req SaveRequest) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Save.Select(req.Layer)
	c.Save.SetDirectory(req.Directory)
	result, err := c.Save.Save(context.Background())
	if err != nil {
		return 0, err
	}
	c.record(labels.NewExportEvent(result.Layer, result.Directory, result.NumFiles))
	return result.NumFiles, nil
}

// Relabel replaces the named label layer with its dense relabeling.
func (c *Curator) Relabel(name string) (labels.Mapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var mapping labels.Mapping
	err := c.ws.Update([]string{name}, func(layers []*Layer) error {
		if err := checkKind(layers[0], LabelsLayer); err != nil {
			return err
		}
		layers[0].Volume, mapping = labels.Normalize(layers[0].Volume)
		return nil
	})
	if err != nil {
		return mapping, err
	}
	npil.Infof("Relabeled layer %q: %s\n", name, mapping)
	c.record(labels.NewRelabelEvent(name, mapping))
	return mapping, nil
}

// Setup loads an intensity volume and a label volume and returns a workspace with the
// layers "Images", "Labels" and an empty point layer "Points".
func Setup(imagePath, labelsPath string) (*Workspace, error) {
	images, err := imageio.Load(imagePath)
	if err != nil {
		return nil, fmt.Errorf("Failed to load images: %w", err)
	}
	npil.Infof("Loaded images %q: %s\n", imagePath, images)
	lbls, err := imageio.Load(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("Failed to load labels: %w", err)
	}
	npil.Infof("Loaded labels %q: %s\n", labelsPath, lbls)

	ws := New()
	for _, layer := range []*Layer{
		{Name: ImagesName, Kind: ImageLayer, Volume: images},
		{Name: LabelsName, Kind: LabelsLayer, Volume: lbls},
		{Name: PointsName, Kind: PointsLayer},
	} {
		if err := ws.Add(layer); err != nil {
			return nil, err
		}
	}
	return ws, nil
}
