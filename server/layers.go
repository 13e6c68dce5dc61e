package server

import (
	"fmt"
	"os"
	"time"

	"github.com/janelia-flyem/neuropil/imageio"
	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/storage"
	"github.com/janelia-flyem/neuropil/workspace"
)

// LoadLayers adds the configured startup layers to the workspace.  Image and label layers
// are read with imageio.Load and point layers from CSV files.
func LoadLayers(ws *workspace.Workspace, configs []LayerConfig) error {
	for _, lc := range configs {
		kind, err := workspace.ParseLayerKind(lc.Kind)
		if err != nil {
			return fmt.Errorf("layer %q: %v", lc.Name, err)
		}
		layer := &workspace.Layer{Name: lc.Name, Kind: kind}
		if kind == workspace.PointsLayer {
			f, err := os.Open(lc.Path)
			if err != nil {
				return fmt.Errorf("layer %q: %v", lc.Name, err)
			}
			layer.Points, err = labels.ParsePoints(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("layer %q: %v", lc.Name, err)
			}
		} else if layer.Volume, err = imageio.Load(lc.Path); err != nil {
			return fmt.Errorf("layer %q: %v", lc.Name, err)
		}
		if err := ws.Add(layer); err != nil {
			return err
		}
		npil.Infof("Loaded %s layer %q from %s\n", kind, lc.Name, lc.Path)
	}
	return nil
}

// checkpoint writes every layer of the workspace to the store.
func (s *Server) checkpoint() ([]string, error) {
	var names []string
	now := time.Now()
	for _, layer := range s.ws.Layers() {
		name := layer.Name
		err := s.ws.View([]string{name}, func(layers []*workspace.Layer) error {
			l := layers[0]
			rec := storage.LayerRecord{
				Name:    l.Name,
				Kind:    l.Kind.String(),
				Version: l.Version,
				Saved:   now,
				Volume:  l.Volume,
			}
			if l.Kind == workspace.PointsLayer {
				rec.Points = l.Points.Points()
			}
			return s.store.PutLayer(rec)
		})
		if err != nil {
			return names, fmt.Errorf("unable to checkpoint layer %q: %v", name, err)
		}
		names = append(names, name)
	}
	npil.Infof("Checkpointed %d layers to %s\n", len(names), s.store)
	return names, nil
}

// restore replaces workspace layers with their checkpoints, adding any that are missing.
func (s *Server) restore() ([]string, error) {
	names, err := s.store.LayerNames()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		rec, err := s.store.GetLayer(name)
		if err != nil {
			return nil, err
		}
		kind, err := workspace.ParseLayerKind(rec.Kind)
		if err != nil {
			return nil, fmt.Errorf("checkpoint of layer %q: %v", name, err)
		}
		if _, err := s.ws.Get(name); err != nil {
			// Past the checkpointed version so cached slices of an earlier layer
			// with this name are never served.
			layer := &workspace.Layer{Name: name, Kind: kind, Volume: rec.Volume, Version: rec.Version + 1}
			if kind == workspace.PointsLayer {
				layer.Points = labels.NewPointSet(rec.Points...)
			}
			if err := s.ws.Add(layer); err != nil {
				return nil, err
			}
			continue
		}
		err = s.ws.Update([]string{name}, func(layers []*workspace.Layer) error {
			l := layers[0]
			if l.Kind != kind {
				return fmt.Errorf("checkpoint of %q is a %s layer but workspace has %s", name, kind, l.Kind)
			}
			if kind == workspace.PointsLayer {
				l.Points = labels.NewPointSet(rec.Points...)
			} else {
				l.Volume = rec.Volume
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	npil.Infof("Restored %d layers from %s\n", len(names), s.store)
	return names, nil
}
