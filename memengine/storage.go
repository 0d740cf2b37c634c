package memengine

import (
	"encoding/json"
	"strconv"

	"github.com/machinefabric/strand-go/capi"
)

// DownloadManifest resolves a dataset's manifest without opening a
// transfer session.
func (e *Engine) DownloadManifest(ref capi.NodeRef, cid string, cb capi.Callback, token uint64) capi.Status {
	return e.manifestOf(ref, cid, cb, token)
}

// StorageFetch resolves a manifest from local storage.
func (e *Engine) StorageFetch(ref capi.NodeRef, cid string, cb capi.Callback, token uint64) capi.Status {
	return e.manifestOf(ref, cid, cb, token)
}

func (e *Engine) manifestOf(ref capi.NodeRef, cid string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if cid == "" {
		return capi.StatusError
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		_, m, ok := n.store.get(cid)
		if !ok {
			cb(capi.StatusError, []byte("dataset not found: "+cid), token)
			return
		}
		doc, err := json.Marshal(m)
		if err != nil {
			cb(capi.StatusError, []byte("failed to encode manifest: "+err.Error()), token)
			return
		}
		cb(capi.StatusOK, doc, token)
	}()
	return capi.StatusOK
}

func (e *Engine) StorageExists(ref capi.NodeRef, cid string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if cid == "" {
		return capi.StatusError
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		cb(capi.StatusOK, []byte(strconv.FormatBool(n.store.exists(cid))), token)
	}()
	return capi.StatusOK
}

func (e *Engine) StorageDelete(ref capi.NodeRef, cid string, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	if cid == "" {
		return capi.StatusError
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		if !n.store.remove(cid) {
			cb(capi.StatusError, []byte("dataset not found: "+cid), token)
			return
		}
		e.log.Debug().Str("cid", cid).Msg("dataset deleted")
		cb(capi.StatusOK, nil, token)
	}()
	return capi.StatusOK
}

func (e *Engine) StorageList(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		doc, err := json.Marshal(n.store.list())
		if err != nil {
			cb(capi.StatusError, []byte("failed to encode manifest list: "+err.Error()), token)
			return
		}
		cb(capi.StatusOK, doc, token)
	}()
	return capi.StatusOK
}

func (e *Engine) StorageSpace(ref capi.NodeRef, cb capi.Callback, token uint64) capi.Status {
	n, st := e.guard(ref, cb)
	if st != capi.StatusOK {
		return st
	}
	go func() {
		if msg := n.notReady(); msg != nil {
			cb(capi.StatusError, msg, token)
			return
		}
		doc, err := json.Marshal(n.store.space())
		if err != nil {
			cb(capi.StatusError, []byte("failed to encode space info: "+err.Error()), token)
			return
		}
		cb(capi.StatusOK, doc, token)
	}()
	return capi.StatusOK
}
