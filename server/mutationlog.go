package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/janelia-flyem/protolog"

	"github.com/janelia-flyem/neuropil/labels"
	"github.com/janelia-flyem/neuropil/npil"
	"github.com/janelia-flyem/neuropil/storage"
)

const (
	jsonMsgTypeID   uint16 = 1 // used for protolog
	failedMsgTypeID uint16 = 2

	journalFilename = "mutations.plog"
	failedFilename  = "kafka-failed.plog"
)

// MutationRecord is the journaled form of a label mutation.
type MutationRecord struct {
	Action string
	Event  labels.Event
}

// MutationLog is an append-only journal of label mutations.  Records are written as JSON
// to a protolog file if a journal directory is configured, otherwise kept in memory, and
// published to kafka when a producer is connected.
type MutationLog struct {
	sync.Mutex
	dir    string
	f      *os.File
	failed *os.File
	mem    [][]byte
}

// OpenMutationLog opens or creates the journal in dir.  An empty dir gives an in-memory log.
func OpenMutationLog(dir string) (*MutationLog, error) {
	m := &MutationLog{dir: dir}
	if dir == "" {
		return m, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create mutation journal directory %q: %v", dir, err)
	}
	var err error
	m.f, err = os.OpenFile(filepath.Join(dir, journalFilename), os.O_APPEND|os.O_CREATE|os.O_RDWR|os.O_SYNC, 0644)
	if err != nil {
		return nil, err
	}
	npil.Infof("Journaling mutations to %s\n", m.f.Name())
	return m, nil
}

// RecordMutation journals the event and publishes it to kafka.
func (m *MutationLog) RecordMutation(e labels.Event) error {
	jsondata, err := json.Marshal(MutationRecord{Action: e.EventType(), Event: e})
	if err != nil {
		return err
	}
	m.Lock()
	if m.f == nil {
		m.mem = append(m.mem, jsondata)
	} else {
		w := protolog.NewTypedWriter(jsonMsgTypeID, m.f)
		_, err = w.Write(jsondata)
	}
	m.Unlock()
	if err != nil {
		return fmt.Errorf("unable to journal mutation %s: %v", e.MutationID(), err)
	}
	return storage.KafkaProduceMsg(jsondata, storage.KafkaMutationTopic())
}

// StoreFailedMsg keeps a message that kafka could not deliver in the journal directory.
func (m *MutationLog) StoreFailedMsg(topic string, msg []byte) {
	m.Lock()
	defer m.Unlock()
	if m.dir == "" {
		npil.Criticalf("unable to store failed kafka message to topic %q because no journal is configured\n", topic)
		return
	}
	if m.failed == nil {
		f, err := os.OpenFile(filepath.Join(m.dir, failedFilename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			npil.Criticalf("unable to store failed kafka message to topic %q: %v\n", topic, err)
			return
		}
		m.failed = f
	}
	w := protolog.NewTypedWriter(failedMsgTypeID, m.failed)
	if _, err := w.Write(msg); err != nil {
		npil.Criticalf("unable to store failed kafka message to topic %q: %v\n", topic, err)
	}
}

// WriteJSON streams the journaled mutations as a JSON array.
func (m *MutationLog) WriteJSON(w io.Writer) error {
	m.Lock()
	defer m.Unlock()
	if _, err := w.Write([]byte("[")); err != nil {
		return err
	}
	numMutations := 0
	writeRecord := func(jsondata []byte) error {
		if numMutations != 0 {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		numMutations++
		_, err := w.Write(jsondata)
		return err
	}
	if m.f == nil {
		for _, jsondata := range m.mem {
			if err := writeRecord(jsondata); err != nil {
				return err
			}
		}
	} else {
		if _, err := m.f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("unable to seek to beginning of mutation journal: %v", err)
		}
		r := protolog.NewReader(m.f)
		for {
			typeID, jsondata, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("bad mutation journal: %v", err)
			}
			if typeID != jsonMsgTypeID {
				npil.Criticalf("Unknown message type in mutation log: %s\n", string(jsondata))
				continue
			}
			if err := writeRecord(jsondata); err != nil {
				return err
			}
		}
	}
	_, err := w.Write([]byte("]"))
	return err
}

// Close closes the journal files.
func (m *MutationLog) Close() error {
	m.Lock()
	defer m.Unlock()
	var err error
	if m.failed != nil {
		err = m.failed.Close()
		m.failed = nil
	}
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
