package heapdump

import (
	"github.com/btraceio/heapdump/pkg/config"
)

// OptionsFromConfig builds engine Options from the application's
// heap_engine config section, filling in DefaultOptions for anything the
// config leaves zero-valued so a bare, unconfigured section still yields
// usable defaults.
func OptionsFromConfig(c config.HeapEngineConfig) Options {
	opts := DefaultOptions()
	if c.IndexDir != "" {
		opts.IndexDir = c.IndexDir
	}
	if c.LRUCapacity > 0 {
		opts.LRUCapacity = c.LRUCapacity
	}
	opts.EagerRetained = c.EagerRetained
	if c.HybridTopN > 0 {
		opts.HybridTopN = c.HybridTopN
	}
	if c.LeakThresholdMB > 0 {
		opts.LeakThresholdMB = c.LeakThresholdMB
	}
	return opts
}
