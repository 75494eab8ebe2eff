package container

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
)

// BuildRunArgs translates def into `run` arguments for the runtime CLI,
// excluding the binary itself. Every label is attached so fixtures can be told
// apart from unrelated containers. extra is inserted right after the labels.
//
// Host directories for volumes are checked (and created when requested)
// before any argument is returned, so a bad volume never reaches the runtime.
func BuildRunArgs(def *Definition, labels map[string]string, extra ...string) ([]string, error) {
	args := []string{"run"}

	for _, k := range slices.Sorted(maps.Keys(labels)) {
		args = append(args, "--label", k+"="+labels[k])
	}

	args = append(args, extra...)

	for _, containerPort := range def.ContainerPorts() {
		hostPort := def.PublishedPorts[containerPort]
		if hostPort > 0 {
			args = append(args, "-p", strconv.Itoa(hostPort)+":"+strconv.Itoa(containerPort))
		} else {
			args = append(args, "-p", strconv.Itoa(containerPort))
		}
	}

	for _, v := range def.Volumes {
		spec, err := volumeSpec(v)
		if err != nil {
			return nil, err
		}
		args = append(args, "-v", spec)
	}

	for _, k := range slices.Sorted(maps.Keys(def.Environment)) {
		args = append(args, "-e", k+"="+def.Environment[k])
	}

	if def.RemoveAfterCompletion {
		args = append(args, "--rm")
	}
	if def.WorkingDir != "" {
		args = append(args, "-w", def.WorkingDir)
	}
	if def.Network != "" {
		args = append(args, "--network="+def.Network)
	}
	if def.NetworkAlias != "" {
		args = append(args, "--network-alias="+def.NetworkAlias)
	}

	// Custom options, image and command must stay last: everything after the
	// image is the container's own command line.
	args = append(args, def.CustomOptions...)
	args = append(args, def.image)
	args = append(args, def.command...)
	return args, nil
}

func volumeSpec(v Volume) (string, error) {
	if v.MountPoint == "" {
		return "", ErrEmptyMountPoint
	}
	if v.HostPath == "" {
		return v.MountPoint, nil
	}

	location, err := filepath.Abs(v.HostPath)
	if err != nil {
		return "", &VolumeError{Path: v.HostPath, Err: err}
	}
	if err := ensureMountable(location, v.CreateIfMissing); err != nil {
		return "", err
	}
	return location + ":" + v.MountPoint, nil
}

func ensureMountable(location string, create bool) error {
	_, err := os.Stat(location)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return &VolumeError{Path: location, Err: err}
	}
	if !create {
		return &VolumeError{Path: location, Err: fmt.Errorf("no file or directory at %s", location)}
	}
	if err := os.MkdirAll(location, 0755); err != nil {
		return &VolumeError{Path: location, Err: fmt.Errorf("unable to create directory: %w", err)}
	}
	return nil
}
