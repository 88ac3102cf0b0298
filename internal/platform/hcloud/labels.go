package hcloud

import (
	"strconv"
)

// Labels the adapter keeps on the resources it manages.
const (
	labelManaged  = "vcdflow.io/managed"
	labelImage    = "vcdflow.io/image"
	labelName     = "vcdflow.io/name"
	labelCPU      = "vcdflow.io/cpu"
	labelMemoryMB = "vcdflow.io/memory-mb"
)

// withLabel returns a copy of labels with key set to value.
func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

// intLabel returns the integer value of key, or zero.
func intLabel(labels map[string]string, key string) int {
	n, err := strconv.Atoi(labels[key])
	if err != nil {
		return 0
	}
	return n
}
