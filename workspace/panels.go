package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/janelia-flyem/neuropil/imageio"
	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
)

var (
	ErrMissingSelection = errors.New("Please select all required layers")
	ErrNoPoints         = errors.New("No points found in point layer")
	ErrSameLayer        = errors.New("From and To must be different label layers")
	ErrWrongKind        = errors.New("layer has the wrong kind for this operation")
)

// TransferRequest names the layers for a point-driven label transfer.
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Points string `json:"points"`
}

// SaveRequest names a label layer and where to export it.  An empty Directory keeps
// the panel's current directory.
type SaveRequest struct {
	Layer     string `json:"layer"`
	Directory string `json:"directory,omitempty"`
}

// Controls is the interface a host calls in response to user actions.
type Controls interface {
	OnLayersChanged()
	OnTransferRequested(TransferRequest) error
	OnSaveRequested(SaveRequest) (int, error)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// keepOrFirst retains a selection that is still among the choices, otherwise selects the
// first choice, if any.
func keepOrFirst(choices []string, current string) string {
	if contains(choices, current) {
		return current
	}
	if len(choices) == 0 {
		return ""
	}
	return choices[0]
}

func checkKind(layer *Layer, kind LayerKind) error {
	if layer.Kind != kind {
		return fmt.Errorf("%q is a %s layer, need %s: %w", layer.Name, layer.Kind, kind, ErrWrongKind)
	}
	return nil
}

// TransferPanel selects a source label layer, a destination label layer and a point
// layer, and moves the labels under the points from source to destination.
type TransferPanel struct {
	ws *Workspace

	mu          sync.Mutex
	labelNames  []string
	pointNames  []string
	sel         TransferRequest
	lastMessage string
}

// TransferResult reports a completed transfer.
type TransferResult struct {
	Request   TransferRequest
	NumPoints int
	Delta     labels.Delta
	Message   string
}

func NewTransferPanel(ws *Workspace) *TransferPanel {
	p := &TransferPanel{ws: ws}
	p.Refresh()
	return p
}

// Refresh reloads the layer choices from the workspace.
func (p *TransferPanel) Refresh() {
	labelNames := p.ws.Names(LabelsLayer)
	pointNames := p.ws.Names(PointsLayer)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labelNames = labelNames
	p.pointNames = pointNames
	p.sel.From = keepOrFirst(labelNames, p.sel.From)
	p.sel.To = keepOrFirst(labelNames, p.sel.To)
	p.sel.Points = keepOrFirst(pointNames, p.sel.Points)
}

// LabelChoices returns the label layers available as From or To.
func (p *TransferPanel) LabelChoices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.labelNames...)
}

// PointChoices returns the available point layers.
func (p *TransferPanel) PointChoices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pointNames...)
}

// Selection returns the current choices.
func (p *TransferPanel) Selection() TransferRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sel
}

// Select sets the current choices.  Names are not checked until Transfer.
func (p *TransferPanel) Select(req TransferRequest) {
	p.mu.Lock()
	p.sel = req
	p.mu.Unlock()
}

// Message returns the status message of the last transfer attempt.
func (p *TransferPanel) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMessage
}

func (p *TransferPanel) setMessage(msg string) {
	p.mu.Lock()
	p.lastMessage = msg
	p.mu.Unlock()
}

// Transfer moves labels for the current selection and clears the point layer.  Nothing is
// modified if a selection is missing, a layer cannot be found, or the point layer is empty.
func (p *TransferPanel) Transfer() (result TransferResult, err error) {
	req := p.Selection()
	result.Request = req
	defer func() {
		if err != nil {
			p.setMessage(err.Error())
			npil.Infof("Transfer not done: %v\n", err)
		} else {
			p.setMessage(result.Message)
			npil.Infof("%s\n", result.Message)
		}
	}()
	if req.From == "" || req.To == "" || req.Points == "" {
		return result, ErrMissingSelection
	}
	if req.From == req.To {
		return result, ErrSameLayer
	}
	err = p.ws.Update([]string{req.From, req.To, req.Points}, func(layers []*Layer) error {
		src, dst, pts := layers[0], layers[1], layers[2]
		if err := checkKind(src, LabelsLayer); err != nil {
			return err
		}
		if err := checkKind(dst, LabelsLayer); err != nil {
			return err
		}
		if err := checkKind(pts, PointsLayer); err != nil {
			return err
		}
		result.NumPoints = pts.Points.Len()
		if result.NumPoints == 0 {
			return ErrNoPoints
		}
		delta, err := labels.Transfer(src.Volume, dst.Volume, pts.Points)
		if err != nil {
			return err
		}
		result.Delta = delta
		return nil
	})
	if err != nil {
		return result, err
	}
	result.Message = fmt.Sprintf("Labels transferred from '%s' to '%s' and points cleared", req.From, req.To)
	return result, nil
}

// SavePanel selects a label layer and a directory, and exports the layer as PNG slices.
type SavePanel struct {
	ws *Workspace

	mu          sync.Mutex
	labelNames  []string
	layer       string
	dir         string
	lastMessage string
}

// SaveResult reports a completed export.
type SaveResult struct {
	Layer     string
	Directory string
	NumFiles  int
	Message   string
}

func NewSavePanel(ws *Workspace) *SavePanel {
	p := &SavePanel{ws: ws, dir: imageio.DefaultExportDir}
	p.Refresh()
	return p
}

// Refresh reloads the label layer choices from the workspace.
func (p *SavePanel) Refresh() {
	labelNames := p.ws.Names(LabelsLayer)
	p.mu.Lock()
	p.labelNames = labelNames
	p.layer = keepOrFirst(labelNames, p.layer)
	p.mu.Unlock()
}

// LayerChoices returns the label layers that can be saved.
func (p *SavePanel) LayerChoices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.labelNames...)
}

// Select sets the layer to save.
func (p *SavePanel) Select(layer string) {
	p.mu.Lock()
	p.layer = layer
	p.mu.Unlock()
}

// Layer returns the selected layer.
func (p *SavePanel) Layer() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layer
}

// SetDirectory sets the export destination, a local directory or a bucket reference.
func (p *SavePanel) SetDirectory(dir string) {
	if dir == "" {
		return
	}
	p.mu.Lock()
	p.dir = dir
	p.mu.Unlock()
}

func (p *SavePanel) Directory() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dir
}

// DisplayDirectory returns the directory shortened to at most 30 characters, keeping
// the tail of long paths after a leading "...".
func (p *SavePanel) DisplayDirectory() string {
	return shortenPath(p.Directory(), 30)
}

func shortenPath(path string, max int) string {
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-(max-3):]
}

// Message returns the status message of the last save attempt.
func (p *SavePanel) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastMessage
}

// Save exports the selected layer into the current directory, creating it if needed.
func (p *SavePanel) Save(ctx context.Context) (result SaveResult, err error) {
	p.mu.Lock()
	result.Layer, result.Directory = p.layer, p.dir
	p.mu.Unlock()
	defer func() {
		msg := result.Message
		if err != nil {
			msg = err.Error()
			npil.Errorf("Save not done: %v\n", err)
		} else {
			npil.Infof("%s\n", msg)
		}
		p.mu.Lock()
		p.lastMessage = msg
		p.mu.Unlock()
	}()
	if result.Layer == "" {
		return result, ErrMissingSelection
	}
	err = p.ws.View([]string{result.Layer}, func(layers []*Layer) error {
		if err := checkKind(layers[0], LabelsLayer); err != nil {
			return err
		}
		sink, err := imageio.OpenSink(ctx, result.Directory)
		if err != nil {
			return err
		}
		defer sink.Close()
		result.NumFiles, err = imageio.ExportSlicesTo(ctx, layers[0].Volume, sink)
		return err
	})
	if err != nil {
		return result, err
	}
	result.Message = fmt.Sprintf("Saved %d PNG files to %s", result.NumFiles, result.Directory)
	return result, nil
}
