package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rs/cors"
	"github.com/wblakecaldwell/profiler"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/neuropil/imageio"
	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/storage"
	"github.com/janelia-flyem/neuropil/workspace"
)

const WebHelp = `
API for neuropil label curation (%s)
=====================================

GET  /api/help
GET  /api/server/info
GET  /api/layers
GET  /api/layers/<name>/points
POST /api/layers/<name>/points     {"points": [[z, y, x], ...]}
GET  /api/layers/<name>/slice/<z>  16-bit grayscale PNG of slice z
GET  /api/layers/<name>/raw[?compression=snappy|lz4|gzip]
POST /api/layers/<name>/relabel    relabel to 1..N in place
POST /api/transfer                 {"from": "A", "to": "B", "points": "Points"}
POST /api/save                     {"layer": "A", "directory": "saved_labels_png"}
POST /api/checkpoint
POST /api/restore
GET  /api/mutations
`

func (s *Server) initRoutes() {
	s.root = web.New()
	corsOpts := cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}
	s.root.Use(cors.New(corsOpts).Handler)
	s.root.Use(logRequests)

	s.root.Get("/profiler/info.html", profiler.MemStatsHTMLHandler)
	s.root.Get("/profiler/info", profiler.ProfilingInfoJSONHandler)
	s.root.Get("/profiler/start", profiler.StartProfilingHandler)
	s.root.Get("/profiler/stop", profiler.StopProfilingHandler)

	api := web.New()
	if s.auth != nil {
		api.Use(s.auth.isAuthorized)
	}
	api.Get(WebAPIPath+"help", s.helpHandler)
	api.Get(WebAPIPath+"server/info", s.serverInfoHandler)
	api.Get(WebAPIPath+"layers", s.layersHandler)
	api.Get(WebAPIPath+"layers/:name/points", s.getPointsHandler)
	api.Post(WebAPIPath+"layers/:name/points", s.postPointsHandler)
	api.Get(WebAPIPath+"layers/:name/slice/:z", s.sliceHandler)
	api.Get(WebAPIPath+"layers/:name/raw", s.rawHandler)
	api.Post(WebAPIPath+"layers/:name/relabel", s.relabelHandler)
	api.Post(WebAPIPath+"transfer", s.transferHandler)
	api.Post(WebAPIPath+"save", s.saveHandler)
	api.Post(WebAPIPath+"checkpoint", s.checkpointHandler)
	api.Post(WebAPIPath+"restore", s.restoreHandler)
	api.Get(WebAPIPath+"mutations", s.mutationsHandler)
	s.root.Handle(WebAPIPath+"*", api)
}

// logRequests is middleware that logs each request and its duration.
func logRequests(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		timedLog := npil.NewTimeLog()
		h.ServeHTTP(w, r)
		timedLog.Debugf("HTTP %s: %s", r.Method, r.URL)
	}
	return http.HandlerFunc(fn)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		npil.Errorf("Unable to write JSON response to %s: %v\n", r.URL.Path, err)
	}
}

// writeControlError maps curation errors to HTTP status codes.
func writeControlError(w http.ResponseWriter, r *http.Request, err error) {
	var shapeErr *labels.ShapeError
	var rangeErr *labels.RangeError
	switch {
	case errors.Is(err, workspace.ErrLayerNotFound), errors.Is(err, storage.ErrNotStored):
		writeError(w, r, http.StatusNotFound, "%v", err)
	case errors.Is(err, workspace.ErrMissingSelection),
		errors.Is(err, workspace.ErrNoPoints),
		errors.Is(err, workspace.ErrSameLayer),
		errors.Is(err, workspace.ErrWrongKind),
		errors.Is(err, labels.ErrPointDims),
		errors.As(err, &shapeErr),
		errors.As(err, &rangeErr):
		BadRequest(w, r, "%v", err)
	default:
		writeError(w, r, http.StatusInternalServerError, "%v", err)
	}
}

func (s *Server) helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, WebHelp, npil.Version)
}

func (s *Server) serverInfoHandler(w http.ResponseWriter, r *http.Request) {
	layers := s.ws.Layers()
	var numBytes uint64
	for _, layer := range layers {
		if layer.Volume != nil {
			numBytes += uint64(layer.Volume.NumVoxels() * layer.Volume.DataType().Bytes())
		}
	}
	info := map[string]interface{}{
		"Version":     npil.Version.String(),
		"Host":        s.config.Server.Host,
		"Note":        s.config.Server.Note,
		"Uptime":      humanize.Time(s.started),
		"Layers":      len(layers),
		"LayerBytes":  npil.ByteSize(numBytes),
		"Checkpoint":  s.store.String(),
		"StoreIO":     storage.StoreIOStats(),
		"Engines":     storage.EnginesAvailable(),
		"SliceCache":  s.cache.stats(),
		"KafkaTopic":  storage.KafkaMutationTopic(),
		"SaveDefault": s.curator.Save.Directory(),
	}
	writeJSON(w, r, info)
}

type layerInfo struct {
	Name      string
	Kind      string
	Shape     []int          `json:",omitempty"`
	DataType  *npil.DataType `json:",omitempty"`
	Version   uint64
	NumPoints int `json:",omitempty"`
}

func (s *Server) layersHandler(w http.ResponseWriter, r *http.Request) {
	var infos []layerInfo
	for _, layer := range s.ws.Layers() {
		name := layer.Name
		s.ws.View([]string{name}, func(layers []*workspace.Layer) error {
			l := layers[0]
			info := layerInfo{Name: l.Name, Kind: l.Kind.String(), Version: l.Version}
			if l.Volume != nil {
				dtype := l.Volume.DataType()
				info.Shape = l.Volume.Shape()
				info.DataType = &dtype
			}
			if l.Points != nil {
				info.NumPoints = l.Points.Len()
			}
			infos = append(infos, info)
			return nil
		})
	}
	if infos == nil {
		infos = []layerInfo{}
	}
	writeJSON(w, r, infos)
}

type pointsBody struct {
	Points [][]float64 `json:"points"`
}

func (s *Server) getPointsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	var body pointsBody
	err := s.ws.View([]string{name}, func(layers []*workspace.Layer) error {
		if layers[0].Kind != workspace.PointsLayer {
			return fmt.Errorf("%q: %w", name, workspace.ErrWrongKind)
		}
		body.Points = layers[0].Points.Points()
		return nil
	})
	if err != nil {
		writeControlError(w, r, err)
		return
	}
	if body.Points == nil {
		body.Points = [][]float64{}
	}
	writeJSON(w, r, body)
}

func (s *Server) postPointsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, "unable to read request body: %v", err)
		return
	}
	var body pointsBody
	if err := decodeValidated(pointsRequestSchema, data, &body); err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	err = s.ws.Update([]string{name}, func(layers []*workspace.Layer) error {
		if layers[0].Kind != workspace.PointsLayer {
			return fmt.Errorf("%q: %w", name, workspace.ErrWrongKind)
		}
		layers[0].Points = labels.NewPointSet(body.Points...)
		return nil
	})
	if err != nil {
		writeControlError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]int{"NumPoints": len(body.Points)})
}

func (s *Server) sliceHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	z, err := strconv.Atoi(c.URLParams["z"])
	if err != nil {
		BadRequest(w, r, "bad slice index %q", c.URLParams["z"])
		return
	}
	var png []byte
	err = s.ws.View([]string{name}, func(layers []*workspace.Layer) error {
		l := layers[0]
		if l.Volume == nil {
			return fmt.Errorf("%q has no volume: %w", name, workspace.ErrWrongKind)
		}
		var encErr error
		png, encErr = s.cache.get(name, l.Version, z, func() ([]byte, error) {
			return imageio.EncodeSlicePNG(l.Volume, z)
		})
		return encErr
	})
	if err != nil {
		if errors.Is(err, workspace.ErrWrongKind) || errors.Is(err, workspace.ErrLayerNotFound) {
			writeControlError(w, r, err)
		} else {
			BadRequest(w, r, "%v", err)
		}
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) rawHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	compress, err := npil.ParseCompression(r.URL.Query().Get("compression"))
	if err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	var data []byte
	err = s.ws.View([]string{name}, func(layers []*workspace.Layer) error {
		if layers[0].Volume == nil {
			return fmt.Errorf("%q has no volume: %w", name, workspace.ErrWrongKind)
		}
		var serErr error
		data, serErr = npil.SerializeVolume(layers[0].Volume, compress, npil.CRC32)
		return serErr
	})
	if err != nil {
		writeControlError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) relabelHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	mapping, err := s.curator.Relabel(c.URLParams["name"])
	if err != nil {
		writeControlError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"NumLabels": mapping.Len(), "Message": mapping.String()})
}

func (s *Server) transferHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, "unable to read request body: %v", err)
		return
	}
	var req workspace.TransferRequest
	if err := decodeValidated(transferRequestSchema, data, &req); err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	if err := s.curator.OnTransferRequested(req); err != nil {
		writeControlError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]string{"Message": s.curator.Transfer.Message()})
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, "unable to read request body: %v", err)
		return
	}
	var req workspace.SaveRequest
	if err := decodeValidated(saveRequestSchema, data, &req); err != nil {
		BadRequest(w, r, "%v", err)
		return
	}
	n, err := s.curator.OnSaveRequested(req)
	if err != nil {
		writeControlError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"NumFiles": n, "Message": s.curator.Save.Message()})
}

func (s *Server) checkpointHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.checkpoint()
	if err != nil {
		writeControlError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"Layers": names})
}

func (s *Server) restoreHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.restore()
	if err != nil {
		writeControlError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"Layers": names})
}

func (s *Server) mutationsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.journal.WriteJSON(w); err != nil {
		npil.Errorf("Unable to write mutations: %v\n", err)
	}
}
