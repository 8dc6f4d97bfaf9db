/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package opencl

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"k8s.io/klog/v2"
)

// defaultLibraryNames returns the names of the OpenCL library tried when none is configured.
func defaultLibraryNames() []string {
	if runtime.GOOS == "darwin" {
		return []string{"/System/Library/Frameworks/OpenCL.framework/OpenCL"}
	}
	return []string{"libOpenCL.so.1", "libOpenCL.so"}
}

// librarySearchPaths returns the directories searched for the OpenCL library, in addition to the ones searched
// by the dynamic loader itself.
func librarySearchPaths() []string {
	var paths []string
	varNames := []string{"LD_LIBRARY_PATH"}
	if runtime.GOOS == "darwin" {
		varNames = []string{"DYLD_LIBRARY_PATH", "LD_LIBRARY_PATH"}
	}
	for _, varName := range varNames {
		for _, ldPath := range strings.Split(os.Getenv(varName), string(os.PathListSeparator)) {
			if ldPath == "" || !filepath.IsAbs(ldPath) {
				// No empty or relative paths.
				continue
			}
			paths = append(paths, ldPath)
		}
	}
	if runtime.GOOS == "linux" {
		for _, dir := range ldConfDirs("/etc/ld.so.conf") {
			if !slices.Contains(paths, dir) {
				paths = append(paths, dir)
			}
		}
	}
	return paths
}

// ldConfDirs returns the directories configured in an ld.so.conf formatted file: one directory per line, "#"
// comments, and "include <glob>..." directives, where relative globs are relative to the including file.
// Files that can't be read are skipped, and each file is read at most once.
func ldConfDirs(confFile string) []string {
	r := &ldConfReader{visited: make(map[string]bool)}
	r.read(confFile)
	return r.dirs
}

type ldConfReader struct {
	visited map[string]bool
	dirs    []string
}

func (r *ldConfReader) read(confFile string) {
	if r.visited[confFile] {
		return
	}
	r.visited[confFile] = true
	contents, err := os.ReadFile(confFile)
	if err != nil {
		klog.V(1).Infof("opencl: skipping library paths from %q: %v", confFile, err)
		return
	}
	for lineNum, line := range strings.Split(string(contents), "\n") {
		line, _, _ = strings.Cut(line, "#")
		fields := strings.Fields(line)
		switch {
		case len(fields) == 0:
		case fields[0] == "include":
			for _, pattern := range fields[1:] {
				if !filepath.IsAbs(pattern) {
					pattern = filepath.Join(filepath.Dir(confFile), pattern)
				}
				matches, err := filepath.Glob(pattern)
				if err != nil {
					klog.Warningf("opencl: %s:%d: bad include pattern %q: %v", confFile, lineNum+1, pattern, err)
					continue
				}
				for _, match := range matches {
					r.read(match)
				}
			}
		case fields[0] == "hwcap":
			// Hardware capability lines of old glibc versions name no directory.
		case filepath.IsAbs(fields[0]):
			if !slices.Contains(r.dirs, fields[0]) {
				r.dirs = append(r.dirs, fields[0])
			}
		default:
			klog.V(2).Infof("opencl: %s:%d: ignoring %q", confFile, lineNum+1, line)
		}
	}
}

// libraryCandidates returns the paths (or bare names, to be resolved by the dynamic loader) to try loading, in
// order, for the given runtime configuration.
func libraryCandidates(config string, searchPaths []string) []string {
	names := defaultLibraryNames()
	if config != "" {
		names = []string{config}
	} else if fromEnv := os.Getenv(LibraryEnv); fromEnv != "" {
		names = []string{fromEnv}
	}
	var candidates []string
	for _, name := range names {
		if filepath.IsAbs(name) {
			candidates = append(candidates, name)
			continue
		}
		candidates = append(candidates, name)
		if strings.ContainsRune(name, filepath.Separator) {
			// Relative paths are not searched.
			continue
		}
		for _, dir := range searchPaths {
			candidate := filepath.Join(dir, name)
			if !slices.Contains(candidates, candidate) {
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}
