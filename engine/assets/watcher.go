package assets

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/prismgfx/prism/engine/core"
)

// ShaderWatcher reports modified SPIR-V binaries in a shader directory so
// the renderer can pick up recompiled shaders without restarting.
type ShaderWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)
	done     chan struct{}
}

func NewShaderWatcher(dir string, onChange func(path string)) (*ShaderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	sw := &ShaderWatcher{
		watcher:  watcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go sw.run()

	core.LogInfo("watching %s for shader changes", dir)
	return sw, nil
}

func (sw *ShaderWatcher) run() {
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if strings.ToLower(filepath.Ext(event.Name)) != ".spv" {
				continue
			}
			core.LogDebug("shader changed: %s", event.Name)
			sw.onChange(event.Name)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher error: %s", err)
		case <-sw.done:
			return
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
